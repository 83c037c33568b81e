package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, zap.NewNop().Sugar())
	require.NoError(t, st.EnsureSchema())
	return New(st, zap.NewNop().Sugar(), 100), st
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	mk := func(id, phone, amount, category string, status model.TxStatus, day int) model.Transaction {
		a, _ := decimal.NewFromString(amount)
		return model.Transaction{
			ID: id, Phone: phone, Amount: a, Category: category, Status: status,
			Date:        time.Date(2023, 6, day, 12, 0, 0, 0, time.UTC),
			Description: "seeded",
		}
	}
	_, err := st.LoadBatch([]model.Transaction{
		mk("tx_1", "+256701111111", "1000", "payment", model.StatusSuccess, 1),
		mk("tx_2", "+256702222222", "250", "airtime", model.StatusSuccess, 2),
		mk("tx_3", "+256703333333", "50000", "transfer", model.StatusFailed, 3),
	}, "run_seed")
	require.NoError(t, err)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv.Router(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestTransactionsFilters(t *testing.T) {
	srv, st := newTestServer(t)
	seed(t, st)
	router := srv.Router()

	var body struct {
		Transactions []store.SnapshotTransaction `json:"transactions"`
		Count        int                         `json:"count"`
	}

	rec := get(t, router, "/transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "tx_3", body.Transactions[0].ID, "newest first")

	rec = get(t, router, "/transactions?category=airtime")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "tx_2", body.Transactions[0].ID)

	rec = get(t, router, "/transactions?status=failed")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "tx_3", body.Transactions[0].ID)

	rec = get(t, router, "/transactions?limit=2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestTransactionsRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv.Router(), "/transactions?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv.Router(), "/transactions?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	srv, st := newTestServer(t)
	seed(t, st)

	rec := get(t, srv.Router(), "/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 3, sum.TotalCount)
	assert.Equal(t, 3, sum.DistinctPhones)
	assert.Equal(t, 1, sum.CategoryDistribution["transfer"])
}

func TestDashboard(t *testing.T) {
	srv, st := newTestServer(t)
	seed(t, st)

	rec := get(t, srv.Router(), "/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap store.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 3, snap.Summary.TotalTransactions)
	assert.InDelta(t, 51250.0, snap.Summary.TotalVolume, 1e-9)
	assert.Len(t, snap.Transactions, 3)
	assert.NotEmpty(t, snap.LastUpdated)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
