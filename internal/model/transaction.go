package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the canonical lifecycle state of a mobile-money transaction.
type TxStatus string

const (
	StatusSuccess TxStatus = "success"
	StatusFailed  TxStatus = "failed"
	StatusPending TxStatus = "pending"
	StatusUnknown TxStatus = "unknown"
)

// DefaultCategory is assigned when no categorization rule matches.
const DefaultCategory = "other"

// RawElement is the untyped field bag extracted from one XML element.
// Values are raw strings exactly as found in the source; any field may be
// absent. RawElements do not outlive the extraction stage.
type RawElement struct {
	Fields     map[string]string
	ParsedAt   time.Time
	RawExcerpt string // truncated source fragment for audit
}

// Get returns the raw value for a logical field, or "" if absent.
func (e RawElement) Get(field string) string {
	return e.Fields[field]
}

// Has reports whether a logical field was resolved during extraction.
func (e RawElement) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Transaction is a normalized, categorized mobile-money transaction.
// A Transaction that reaches the store always has a non-empty ID, a phone
// beginning with "+", a positive amount within configured bounds, and a
// non-zero date.
type Transaction struct {
	ID          string
	Date        time.Time
	Phone       string // canonical international form, "+<prefix><subscriber>"
	Amount      decimal.Decimal
	Description string
	Sender      string
	Recipient   string
	Status      TxStatus
	Category    string

	ParsedAt      time.Time
	CleanedAt     time.Time
	CategorizedAt time.Time
	RawExcerpt    string
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord tracks one end-to-end pipeline execution. It is created when the
// run begins and finalized exactly once; a finalized record is never mutated.
type RunRecord struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	Status     RunStatus
	Processed  int
	Loaded     int
	Failed     int
	SourceFile string
	Error      string
}

// QualityMetric is one named observation recorded against a run, used for
// trend analysis across batches. Append-only.
type QualityMetric struct {
	RunID      string
	Name       string
	Value      float64
	MetricType string
	CreatedAt  time.Time
}
