package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	now := time.Date(2025, 1, 3, 14, 15, 0, 0, time.UTC)
	got := NewRunID(now)

	assert.True(t, len(got) > len("run_20250103_141500_"))
	assert.Contains(t, got, "run_20250103_141500_")

	// Same instant, distinct IDs.
	assert.NotEqual(t, got, NewRunID(now))
}

func TestTransactionIDDeterministic(t *testing.T) {
	date := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	a := TransactionID(date, "+256701234567", "1000.50", "pay for shop")
	b := TransactionID(date, "+256701234567", "1000.50", "pay for shop")
	require.Equal(t, a, b)

	assert.True(t, IsGenerated(a))
	assert.Len(t, a, len("tx_")+16)
}

func TestTransactionIDDistinct(t *testing.T) {
	date := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	base := TransactionID(date, "+256701234567", "1000.50", "pay for shop")
	assert.NotEqual(t, base, TransactionID(date, "+256701234568", "1000.50", "pay for shop"))
	assert.NotEqual(t, base, TransactionID(date, "+256701234567", "1000.51", "pay for shop"))
	assert.NotEqual(t, base, TransactionID(date.Add(time.Second), "+256701234567", "1000.50", "pay for shop"))
}

func TestTransactionIDTrimsDescription(t *testing.T) {
	date := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	a := TransactionID(date, "+256701234567", "500", "airtime")
	b := TransactionID(date, "+256701234567", "500", "  airtime  ")
	assert.Equal(t, a, b)
}
