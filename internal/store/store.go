// Package store persists transactions, run bookkeeping, and quality metrics
// in an embedded SQLite database. Loads are idempotent upserts keyed by
// transaction ID: replaying a batch converges on the same stored state
// instead of duplicating rows.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

const timeLayout = time.RFC3339

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		phone TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT,
		status TEXT,
		description TEXT,
		sender TEXT,
		recipient TEXT,
		parsed_at TEXT,
		cleaned_at TEXT,
		categorized_at TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS run_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT UNIQUE NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		status TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		loaded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		source TEXT,
		error TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS quality_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		metric_name TEXT NOT NULL,
		metric_value REAL,
		metric_type TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES run_log (run_id)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		description TEXT,
		keywords TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_phone ON transactions(phone)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
	`CREATE INDEX IF NOT EXISTS idx_run_log_run_id ON run_log(run_id)`,
}

// Store wraps a single SQLite connection for the duration of a run.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Open creates the database file's directory if needed and opens the store.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating database dir")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}

	logger.Infow("connected to database", "path", path)
	return New(db, logger), nil
}

// New wraps an existing database handle. Callers own closing the handle via
// Close.
func New(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist. Safe to
// call on every run.
func (s *Store) EnsureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}
	s.logger.Debugw("schema ensured")
	return nil
}

// SeedCategories records the configured category taxonomy in the lookup
// table. Existing rows are left untouched.
func (s *Store) SeedCategories(rules config.RuleSet) error {
	for _, rule := range rules.Categories {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO categories (name, description, keywords) VALUES (?, ?, ?)`,
			rule.Name, rule.Description, strings.Join(rule.Keywords, ","),
		)
		if err != nil {
			return errors.Wrapf(err, "seeding category %s", rule.Name)
		}
	}
	return nil
}

// BeginRun inserts a RunRecord in running state. A duplicate run ID violates
// the uniqueness invariant and fails loudly.
func (s *Store) BeginRun(runID, source string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_log (run_id, start_time, status, source) VALUES (?, ?, ?, ?)`,
		runID, s.now().Format(timeLayout), string(model.RunRunning), source,
	)
	if err != nil {
		return errors.Wrapf(err, "creating run log %s", runID)
	}
	s.logger.Infow("run started", "run_id", runID, "source", source)
	return nil
}

// FinalizeRun marks a run completed with its final counts. Never called for
// a run that was not begun.
func (s *Store) FinalizeRun(runID string, processed, loaded, failed int) error {
	_, err := s.db.Exec(
		`UPDATE run_log SET end_time = ?, status = ?, processed = ?, loaded = ?, failed = ? WHERE run_id = ?`,
		s.now().Format(timeLayout), string(model.RunCompleted), processed, loaded, failed, runID,
	)
	if err != nil {
		return errors.Wrapf(err, "finalizing run %s", runID)
	}
	return nil
}

// FailRun marks a run failed with a human-readable reason.
func (s *Store) FailRun(runID, reason string) error {
	_, err := s.db.Exec(
		`UPDATE run_log SET end_time = ?, status = ?, error = ? WHERE run_id = ?`,
		s.now().Format(timeLayout), string(model.RunFailed), reason, runID,
	)
	if err != nil {
		return errors.Wrapf(err, "marking run %s failed", runID)
	}
	return nil
}

// GetRun reads back one run record.
func (s *Store) GetRun(runID string) (model.RunRecord, error) {
	var rec model.RunRecord
	var startTime, endTime, status, source, runErr sql.NullString

	row := s.db.QueryRow(
		`SELECT run_id, start_time, end_time, status, processed, loaded, failed, source, error
		 FROM run_log WHERE run_id = ?`, runID)
	err := row.Scan(&rec.RunID, &startTime, &endTime, &status,
		&rec.Processed, &rec.Loaded, &rec.Failed, &source, &runErr)
	if err != nil {
		return model.RunRecord{}, errors.Wrapf(err, "reading run %s", runID)
	}

	rec.Status = model.RunStatus(status.String)
	rec.SourceFile = source.String
	rec.Error = runErr.String
	if startTime.Valid {
		rec.StartTime, _ = time.Parse(timeLayout, startTime.String)
	}
	if endTime.Valid {
		rec.EndTime, _ = time.Parse(timeLayout, endTime.String)
	}
	return rec, nil
}

// RecordMetric appends one quality metric observation for a run.
func (s *Store) RecordMetric(m model.QualityMetric) error {
	_, err := s.db.Exec(
		`INSERT INTO quality_metrics (run_id, metric_name, metric_value, metric_type) VALUES (?, ?, ?, ?)`,
		m.RunID, m.Name, m.Value, m.MetricType,
	)
	if err != nil {
		return errors.Wrapf(err, "recording metric %s", m.Name)
	}
	return nil
}
