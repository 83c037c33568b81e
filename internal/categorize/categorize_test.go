package categorize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

func newTestCategorizer(t *testing.T) *Categorizer {
	t.Helper()
	c, err := New(config.DefaultRules(), zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func tx(desc string, amount string) model.Transaction {
	a, _ := decimal.NewFromString(amount)
	return model.Transaction{
		ID:          "tx-test",
		Date:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Phone:       "+256701234567",
		Amount:      a,
		Description: desc,
		Status:      model.StatusSuccess,
	}
}

func TestKeywordTier(t *testing.T) {
	c := newTestCategorizer(t)

	tests := []struct {
		desc   string
		amount string
		want   string
	}{
		{"pay for shop", "1000.50", "payment"},
		{"send money to mom", "700", "transfer"},
		{"bought airtime bundle", "700", "airtime"},
		{"monthly service fee", "700", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := c.Categorize(tx(tt.desc, tt.amount))
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestKeywordWholeWordsOnly(t *testing.T) {
	c := newTestCategorizer(t)

	// "repayment" must not match the keyword "pay".
	got := c.Categorize(tx("loan repayment schedule", "700"))
	assert.Equal(t, model.DefaultCategory, got.Category)
}

func TestKeywordTieBreaksInDeclarationOrder(t *testing.T) {
	c := newTestCategorizer(t)

	// One "pay" keyword hit and one "send" keyword hit: payment is declared
	// before transfer, so payment wins the tie.
	got := c.Categorize(tx("pay then send", "700"))
	assert.Equal(t, "payment", got.Category)
}

func TestAmountBandTier(t *testing.T) {
	c := newTestCategorizer(t)

	tests := []struct {
		amount string
		want   string
	}{
		{"100", "airtime"},             // below 500
		{"2500", "payment"},            // mid band
		{"50000", "transfer"},          // large
		{"700", model.DefaultCategory}, // between bands
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			// Empty description so tier 1 yields the default.
			got := c.Categorize(tx("", tt.amount))
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestPatternTier(t *testing.T) {
	c := newTestCategorizer(t)

	// No keyword hit, amount outside bands, but the airtime pattern "500mb"
	// matches in tier 3.
	got := c.Categorize(tx("500mb weekly", "700"))
	assert.Equal(t, "airtime", got.Category)
}

func TestCategorizationIsTotal(t *testing.T) {
	c := newTestCategorizer(t)
	valid := map[string]bool{}
	for _, name := range config.DefaultRules().CategoryNames() {
		valid[name] = true
	}

	inputs := []model.Transaction{
		tx("", "700"),
		tx("completely unmatched text zzz", "700"),
		tx("pay for shop", "100"),
		{}, // zero value record
	}
	for _, in := range inputs {
		got := c.Categorize(in)
		assert.True(t, valid[got.Category], "category %q not in configured set", got.Category)
		assert.False(t, got.CategorizedAt.IsZero())
	}
}

func TestStatsDistribution(t *testing.T) {
	c := newTestCategorizer(t)

	c.CategorizeAll([]model.Transaction{
		tx("pay for shop", "1000"),
		tx("pay merchant", "1000"),
		tx("send money", "700"),
	})

	stats := c.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Distribution["payment"])
	assert.Equal(t, 1, stats.Distribution["transfer"])
	assert.InDelta(t, 66.6, stats.Percentages["payment"], 0.1)
}

func TestSuggestKeywords(t *testing.T) {
	c := newTestCategorizer(t)

	var txs []model.Transaction
	for i := 0; i < 3; i++ {
		committed := c.Categorize(tx("boda ride downtown", "700"))
		txs = append(txs, committed)
	}
	txs = append(txs, c.Categorize(tx("pay for shop", "1000")))

	suggestions := c.SuggestKeywords(txs, "")
	assert.Contains(t, suggestions, "boda")
	assert.Contains(t, suggestions, "ride")
	assert.NotContains(t, suggestions, "pay") // categorized records excluded
}

func TestSuggestKeywordsSkipsStopwordsAndRareWords(t *testing.T) {
	c := newTestCategorizer(t)

	txs := []model.Transaction{
		c.Categorize(tx("from the zzz", "700")),
		c.Categorize(tx("from the yyy", "700")),
	}

	suggestions := c.SuggestKeywords(txs, "")
	assert.NotContains(t, suggestions, "the")
	assert.NotContains(t, suggestions, "from")
	assert.NotContains(t, suggestions, "zzz") // appears once
}
