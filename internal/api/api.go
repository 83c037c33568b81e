// Package api exposes the processed transactions over a small read-only HTTP
// surface for the dashboard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

const shutdownTimeout = 5 * time.Second

// ErrorResponse is the body returned for any non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Server serves query endpoints over a Store.
type Server struct {
	store  *store.Store
	logger *zap.SugaredLogger
	limit  int
}

// New creates a Server. limit caps the transactions returned per request and
// per dashboard snapshot.
func New(st *store.Store, logger *zap.SugaredLogger, limit int) *Server {
	return &Server{store: st, logger: logger, limit: limit}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /transactions", s.handleTransactions)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	return s.logRequests(mux)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTransactions supports category, status and limit query parameters.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := s.limit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	txs, err := s.store.Query(store.Filter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Limit:    limit,
	})
	if err != nil {
		s.logger.Errorw("transaction query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]store.SnapshotTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, store.ToSnapshotTransaction(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": out,
		"count":        len(out),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.GetSummary()
	if err != nil {
		s.logger.Errorw("summary query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleDashboard returns the same document ExportSnapshot writes to disk.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.BuildSnapshot(s.limit)
	if err != nil {
		s.logger.Errorw("snapshot build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}
