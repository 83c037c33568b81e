package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a run ID like "run_20250103_141500_1a2b3c4d". The
// timestamp keeps run logs human-sortable; the uuid fragment keeps two runs
// started in the same second distinct.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("run_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// TransactionID derives a content-addressed ID like "tx_9f2c4e8a1b3d5f70"
// from the fields that identify a transaction. The same source record always
// maps to the same ID, so replaying a batch converges on the stored row
// instead of duplicating it.
func TransactionID(date time.Time, phone, amount, description string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		date.UTC().Format(time.RFC3339),
		phone,
		amount,
		strings.TrimSpace(description),
	)
	return "tx_" + hex.EncodeToString(h.Sum(nil))[:16]
}

// IsGenerated reports whether an ID was derived by TransactionID rather than
// carried in the source document.
func IsGenerated(id string) bool {
	return strings.HasPrefix(id, "tx_")
}
