package store

import (
	"database/sql"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// Filter narrows a transaction query. Zero values mean "no constraint".
type Filter struct {
	Category string
	Status   string
	Limit    int
}

// Summary aggregates the stored transaction set, computed fresh from rows on
// every call.
type Summary struct {
	TotalCount           int
	TotalVolume          float64
	AverageAmount        float64
	DistinctPhones       int
	CategoryDistribution map[string]int
	StatusDistribution   map[string]int
}

// Query returns stored transactions matching the filter, newest first.
func (s *Store) Query(f Filter) ([]model.Transaction, error) {
	query := `SELECT id, date, phone, amount, category, status, description,
		sender, recipient, parsed_at, cleaned_at, categorized_at
		FROM transactions WHERE 1=1`
	var args []any

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY date DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (model.Transaction, error) {
	var tx model.Transaction
	var date string
	var amount float64
	var category, status, description, sender, recipient sql.NullString
	var parsedAt, cleanedAt, categorizedAt sql.NullString

	err := rows.Scan(&tx.ID, &date, &tx.Phone, &amount, &category, &status,
		&description, &sender, &recipient, &parsedAt, &cleanedAt, &categorizedAt)
	if err != nil {
		return model.Transaction{}, errors.Wrap(err, "scanning transaction")
	}

	tx.Date, _ = time.Parse(timeLayout, date)
	tx.Amount = decimal.NewFromFloat(amount)
	tx.Category = category.String
	tx.Status = model.TxStatus(status.String)
	tx.Description = description.String
	tx.Sender = sender.String
	tx.Recipient = recipient.String
	tx.ParsedAt = parseNullableTime(parsedAt)
	tx.CleanedAt = parseNullableTime(cleanedAt)
	tx.CategorizedAt = parseNullableTime(categorizedAt)
	return tx, nil
}

func parseNullableTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, v.String)
	return t
}

// GetSummary computes aggregate statistics over all stored transactions.
func (s *Store) GetSummary() (Summary, error) {
	sum := Summary{
		CategoryDistribution: make(map[string]int),
		StatusDistribution:   make(map[string]int),
	}

	row := s.db.QueryRow(`SELECT COUNT(*),
		COALESCE(SUM(amount), 0),
		COALESCE(AVG(amount), 0),
		COUNT(DISTINCT phone)
		FROM transactions`)
	if err := row.Scan(&sum.TotalCount, &sum.TotalVolume, &sum.AverageAmount, &sum.DistinctPhones); err != nil {
		return Summary{}, errors.Wrap(err, "computing summary")
	}
	sum.TotalVolume = round2(sum.TotalVolume)
	sum.AverageAmount = round2(sum.AverageAmount)

	if err := s.scanDistribution(
		`SELECT category, COUNT(*) FROM transactions GROUP BY category ORDER BY COUNT(*) DESC`,
		sum.CategoryDistribution,
	); err != nil {
		return Summary{}, err
	}
	if err := s.scanDistribution(
		`SELECT status, COUNT(*) FROM transactions GROUP BY status`,
		sum.StatusDistribution,
	); err != nil {
		return Summary{}, err
	}

	return sum, nil
}

func (s *Store) scanDistribution(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return errors.Wrap(err, "querying distribution")
	}
	defer rows.Close()

	for rows.Next() {
		var key sql.NullString
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return errors.Wrap(err, "scanning distribution")
		}
		into[key.String] = count
	}
	return rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Snapshot is the denormalized JSON document the dashboard consumes.
type Snapshot struct {
	Summary              SnapshotSummary       `json:"summary"`
	Transactions         []SnapshotTransaction `json:"transactions"`
	Categories           []string              `json:"categories"`
	CategoryDistribution map[string]int        `json:"categoryDistribution"`
	StatusDistribution   map[string]int        `json:"statusDistribution"`
	LastUpdated          string                `json:"lastUpdated"`
}

// SnapshotSummary carries the dashboard's headline numbers.
type SnapshotSummary struct {
	TotalTransactions  int     `json:"totalTransactions"`
	TotalVolume        float64 `json:"totalVolume"`
	AverageTransaction float64 `json:"averageTransaction"`
	ActiveUsers        int     `json:"activeUsers"`
}

// SnapshotTransaction is one transaction row in the snapshot.
type SnapshotTransaction struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Phone       string  `json:"phone"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
	Sender      string  `json:"sender,omitempty"`
	Recipient   string  `json:"recipient,omitempty"`
}

// ToSnapshotTransaction converts a stored transaction to its dashboard
// representation.
func ToSnapshotTransaction(tx model.Transaction) SnapshotTransaction {
	amount, _ := tx.Amount.Float64()
	return SnapshotTransaction{
		ID:          tx.ID,
		Date:        tx.Date.Format(timeLayout),
		Phone:       tx.Phone,
		Amount:      amount,
		Category:    tx.Category,
		Status:      string(tx.Status),
		Description: tx.Description,
		Sender:      tx.Sender,
		Recipient:   tx.Recipient,
	}
}

// BuildSnapshot assembles the dashboard document from the current summary
// and a capped slice of recent transactions.
func (s *Store) BuildSnapshot(limit int) (Snapshot, error) {
	summary, err := s.GetSummary()
	if err != nil {
		return Snapshot{}, err
	}

	txs, err := s.Query(Filter{Limit: limit})
	if err != nil {
		return Snapshot{}, err
	}

	snapTxs := make([]SnapshotTransaction, 0, len(txs))
	for _, tx := range txs {
		snapTxs = append(snapTxs, ToSnapshotTransaction(tx))
	}

	// Categories ordered by descending count, matching the distribution.
	categories := make([]string, 0, len(summary.CategoryDistribution))
	for cat := range summary.CategoryDistribution {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		ci, cj := summary.CategoryDistribution[categories[i]], summary.CategoryDistribution[categories[j]]
		if ci != cj {
			return ci > cj
		}
		return categories[i] < categories[j]
	})

	return Snapshot{
		Summary: SnapshotSummary{
			TotalTransactions:  summary.TotalCount,
			TotalVolume:        summary.TotalVolume,
			AverageTransaction: summary.AverageAmount,
			ActiveUsers:        summary.DistinctPhones,
		},
		Transactions:         snapTxs,
		Categories:           categories,
		CategoryDistribution: summary.CategoryDistribution,
		StatusDistribution:   summary.StatusDistribution,
		LastUpdated:          s.now().Format(timeLayout),
	}, nil
}

// ExportSnapshot writes the dashboard document to path. The write goes
// through a temp file and rename so the dashboard never reads a partially
// written snapshot.
func (s *Store) ExportSnapshot(path string, limit int) (Snapshot, error) {
	snap, err := s.BuildSnapshot(limit)
	if err != nil {
		return Snapshot{}, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "marshaling snapshot")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Snapshot{}, errors.Wrap(err, "creating output dir")
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "creating temp snapshot")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Snapshot{}, errors.Wrap(err, "writing snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Snapshot{}, errors.Wrap(err, "closing snapshot")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Snapshot{}, errors.Wrap(err, "replacing snapshot")
	}

	s.logger.Infow("snapshot exported", "path", path, "transactions", len(snap.Transactions))
	return snap, nil
}
