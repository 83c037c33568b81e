package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(db, zap.NewNop().Sugar())
	require.NoError(t, s.EnsureSchema())
	return s
}

func testTx(id, phone, amount string) model.Transaction {
	a, _ := decimal.NewFromString(amount)
	return model.Transaction{
		ID:          id,
		Date:        time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		Phone:       phone,
		Amount:      a,
		Description: "pay for shop",
		Status:      model.StatusSuccess,
		Category:    "payment",
		ParsedAt:    time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		CleanedAt:   time.Date(2023, 1, 2, 0, 0, 1, 0, time.UTC),
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureSchema())
	require.NoError(t, s.EnsureSchema())
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)

	outcome, err := s.Upsert(testTx("tx_1", "+256701234567", "1000.50"))
	require.NoError(t, err)
	assert.Equal(t, UpsertInserted, outcome)

	// Same ID again: full-field update, no new row.
	changed := testTx("tx_1", "+256701234567", "2000.00")
	changed.Category = "transfer"
	outcome, err = s.Upsert(changed)
	require.NoError(t, err)
	assert.Equal(t, UpsertUpdated, outcome)

	txs, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "2000", txs[0].Amount.String())
	assert.Equal(t, "transfer", txs[0].Category)
}

func TestLoadBatchIdempotent(t *testing.T) {
	s := newTestStore(t)

	batch := []model.Transaction{
		testTx("tx_1", "+256701111111", "100"),
		testTx("tx_2", "+256702222222", "200"),
		testTx("tx_3", "+256703333333", "300"),
	}

	first, err := s.LoadBatch(batch, "run_a")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Loaded)
	assert.Equal(t, 0, first.Failed)

	second, err := s.LoadBatch(batch, "run_b")
	require.NoError(t, err)
	assert.Equal(t, 3, second.Loaded)

	txs, err := s.Query(Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, 3, "replaying a batch must not add rows")
}

func TestLoadBatchSkipsEmptyID(t *testing.T) {
	s := newTestStore(t)

	batch := []model.Transaction{
		testTx("tx_1", "+256701111111", "100"),
		testTx("", "+256702222222", "200"),
	}

	result, err := s.LoadBatch(batch, "run_a")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, 1, result.Failed)
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := newTestStore(t)

	a := testTx("tx_a", "+256701111111", "100")
	a.Date = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	b := testTx("tx_b", "+256702222222", "200")
	b.Date = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	b.Category = "transfer"
	b.Status = model.StatusPending
	c := testTx("tx_c", "+256703333333", "300")
	c.Date = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.LoadBatch([]model.Transaction{a, b, c}, "run_a")
	require.NoError(t, err)

	all, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"tx_b", "tx_c", "tx_a"},
		[]string{all[0].ID, all[1].ID, all[2].ID}, "newest first")

	payments, err := s.Query(Filter{Category: "payment"})
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	pending, err := s.Query(Filter{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "tx_b", pending[0].ID)

	limited, err := s.Query(Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "tx_b", limited[0].ID)
}

func TestGetSummary(t *testing.T) {
	s := newTestStore(t)

	a := testTx("tx_a", "+256701111111", "100.50")
	b := testTx("tx_b", "+256701111111", "200.50") // same phone
	c := testTx("tx_c", "+256703333333", "300")
	c.Category = "transfer"
	c.Status = model.StatusFailed

	_, err := s.LoadBatch([]model.Transaction{a, b, c}, "run_a")
	require.NoError(t, err)

	sum, err := s.GetSummary()
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalCount)
	assert.InDelta(t, 601.0, sum.TotalVolume, 1e-9)
	assert.InDelta(t, 200.33, sum.AverageAmount, 1e-9)
	assert.Equal(t, 2, sum.DistinctPhones)
	assert.Equal(t, 2, sum.CategoryDistribution["payment"])
	assert.Equal(t, 1, sum.CategoryDistribution["transfer"])
	assert.Equal(t, 2, sum.StatusDistribution["success"])
	assert.Equal(t, 1, sum.StatusDistribution["failed"])
}

func TestGetSummaryEmptyStore(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalCount)
	assert.Equal(t, 0.0, sum.TotalVolume)
	assert.Empty(t, sum.CategoryDistribution)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BeginRun("run_1", "data/raw/momo.xml"))

	rec, err := s.GetRun("run_1")
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, rec.Status)
	assert.Equal(t, "data/raw/momo.xml", rec.SourceFile)
	assert.False(t, rec.StartTime.IsZero())

	require.NoError(t, s.FinalizeRun("run_1", 10, 8, 2))

	rec, err = s.GetRun("run_1")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, rec.Status)
	assert.Equal(t, 10, rec.Processed)
	assert.Equal(t, 8, rec.Loaded)
	assert.Equal(t, 2, rec.Failed)
	assert.False(t, rec.EndTime.IsZero())
}

func TestBeginRunRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BeginRun("run_1", "a.xml"))
	err := s.BeginRun("run_1", "b.xml")
	require.Error(t, err, "duplicate run_id must fail loudly")
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BeginRun("run_1", "a.xml"))
	require.NoError(t, s.FailRun("run_1", "document failed to parse"))

	rec, err := s.GetRun("run_1")
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, rec.Status)
	assert.Equal(t, "document failed to parse", rec.Error)
}

func TestRecordMetric(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.BeginRun("run_1", "a.xml"))

	require.NoError(t, s.RecordMetric(model.QualityMetric{
		RunID: "run_1", Name: "success_rate", Value: 0.95, MetricType: "ratio",
	}))
}

func TestSeedCategories(t *testing.T) {
	s := newTestStore(t)

	rules := config.DefaultRules()
	require.NoError(t, s.SeedCategories(rules))
	// Re-seeding leaves existing rows untouched.
	require.NoError(t, s.SeedCategories(rules))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count))
	assert.Equal(t, len(rules.Categories), count)
}

func TestExportSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadBatch([]model.Transaction{
		testTx("tx_1", "+256701111111", "1000.50"),
		testTx("tx_2", "+256702222222", "500"),
	}, "run_a")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "dashboard.json")
	snap, err := s.ExportSnapshot(path, 1000)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Summary.TotalTransactions)
	assert.InDelta(t, 1500.5, snap.Summary.TotalVolume, 1e-9)
	assert.Equal(t, 2, snap.Summary.ActiveUsers)
	assert.Len(t, snap.Transactions, 2)
	assert.Equal(t, []string{"payment"}, snap.Categories)
	assert.NotEmpty(t, snap.LastUpdated)

	// The file on disk round-trips to the same document.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fromDisk Snapshot
	require.NoError(t, json.Unmarshal(data, &fromDisk))
	assert.Equal(t, snap.Summary, fromDisk.Summary)
}

func TestExportSnapshotCapsTransactions(t *testing.T) {
	s := newTestStore(t)

	batch := []model.Transaction{
		testTx("tx_1", "+256701111111", "100"),
		testTx("tx_2", "+256702222222", "200"),
		testTx("tx_3", "+256703333333", "300"),
	}
	_, err := s.LoadBatch(batch, "run_a")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dashboard.json")
	snap, err := s.ExportSnapshot(path, 2)
	require.NoError(t, err)
	assert.Len(t, snap.Transactions, 2)
	assert.Equal(t, 3, snap.Summary.TotalTransactions)
}
