// Package categorize assigns exactly one category label to each transaction
// through a three-tier fallback chain: keyword scoring, amount bands, then
// regex patterns. Categorization is total; a record that matches no rule
// keeps the default category, and an unexpected fault on one record never
// aborts the batch.
package categorize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// stopwords are excluded from keyword suggestion mining.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true,
	"you": true, "your": true, "from": true, "with": true,
}

var wordPattern = regexp.MustCompile(`\b\w{3,}\b`)

// Stats summarizes categorization of one batch.
type Stats struct {
	Total        int
	Distribution map[string]int
	Percentages  map[string]float64
}

// Categorizer applies an ordered rule table. Ties in keyword scoring resolve
// to the first category reaching the maximum score in declaration order, so
// behavior is deterministic for a given table.
type Categorizer struct {
	rules    config.RuleSet
	keywords [][]*regexp.Regexp // whole-word matchers per category, table order
	patterns [][]*regexp.Regexp // tier-3 regexes per category, table order
	logger   *zap.SugaredLogger
	now      func() time.Time

	counts map[string]int
}

// New compiles the rule table into a Categorizer.
func New(rules config.RuleSet, logger *zap.SugaredLogger) (*Categorizer, error) {
	c := &Categorizer{
		rules:  rules,
		logger: logger,
		now:    time.Now,
		counts: make(map[string]int),
	}

	for _, rule := range rules.Categories {
		var kw []*regexp.Regexp
		for _, k := range rule.Keywords {
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(k)) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compiling keyword %q for %s: %w", k, rule.Name, err)
			}
			kw = append(kw, re)
		}
		c.keywords = append(c.keywords, kw)

		var pat []*regexp.Regexp
		for _, p := range rule.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q for %s: %w", p, rule.Name, err)
			}
			pat = append(pat, re)
		}
		c.patterns = append(c.patterns, pat)
	}

	return c, nil
}

// CategorizeAll assigns a category to every transaction. A fault while
// scoring one record forces the default category for that record and the
// batch continues.
func (c *Categorizer) CategorizeAll(txs []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, c.Categorize(tx))
	}
	c.logStats()
	return out
}

// Categorize assigns exactly one category. It never rejects the record.
func (c *Categorizer) Categorize(tx model.Transaction) (result model.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("categorization fault, forcing default category",
				"transaction_id", tx.ID, "fault", r)
			tx.Category = model.DefaultCategory
			tx.CategorizedAt = c.now()
			c.counts[model.DefaultCategory]++
			result = tx
		}
	}()

	text := searchText(tx)

	category := c.byKeywords(text)
	if category == model.DefaultCategory {
		category = c.byAmount(tx.Amount)
	}
	if category == model.DefaultCategory {
		category = c.byPatterns(text)
	}

	tx.Category = category
	tx.CategorizedAt = c.now()
	c.counts[category]++
	return tx
}

// searchText builds the lower-cased text the keyword and pattern tiers score.
func searchText(tx model.Transaction) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{tx.Description, tx.Sender, tx.Recipient} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}

// byKeywords scores whole-word keyword occurrences per category and picks the
// first category reaching the highest non-zero score in declaration order.
func (c *Categorizer) byKeywords(text string) string {
	if text == "" {
		return model.DefaultCategory
	}

	best := model.DefaultCategory
	bestScore := 0
	for i, rule := range c.rules.Categories {
		score := 0
		for _, re := range c.keywords[i] {
			score += len(re.FindAllStringIndex(text, -1))
		}
		if score > bestScore {
			best = rule.Name
			bestScore = score
		}
	}
	return best
}

// byAmount maps the amount through the configured bands, first match wins.
func (c *Categorizer) byAmount(amount decimal.Decimal) string {
	if !amount.IsPositive() {
		return model.DefaultCategory
	}
	v, _ := amount.Float64()
	for _, band := range c.rules.Bands {
		if v < band.Min {
			continue
		}
		if band.Max > 0 && v >= band.Max {
			continue
		}
		return band.Category
	}
	return model.DefaultCategory
}

// byPatterns tests each category's regex list against the text, first
// matching category in declaration order wins.
func (c *Categorizer) byPatterns(text string) string {
	if text == "" {
		return model.DefaultCategory
	}
	for i, rule := range c.rules.Categories {
		for _, re := range c.patterns[i] {
			if re.MatchString(text) {
				return rule.Name
			}
		}
	}
	return model.DefaultCategory
}

// Stats returns the per-category distribution for the batch so far.
func (c *Categorizer) Stats() Stats {
	total := 0
	for _, n := range c.counts {
		total += n
	}

	dist := make(map[string]int, len(c.counts))
	pct := make(map[string]float64, len(c.counts))
	for cat, n := range c.counts {
		dist[cat] = n
		if total > 0 {
			pct[cat] = float64(n) / float64(total) * 100
		}
	}
	return Stats{Total: total, Distribution: dist, Percentages: pct}
}

func (c *Categorizer) logStats() {
	stats := c.Stats()
	if stats.Total == 0 {
		return
	}
	c.logger.Infow("categorization complete", "total", stats.Total, "distribution", stats.Distribution)
}

// SuggestKeywords mines frequent words from transactions in the given
// category (default category when empty) to propose new rule keywords. It is
// an offline analysis aid; it never alters persisted data.
func (c *Categorizer) SuggestKeywords(txs []model.Transaction, category string) []string {
	if category == "" {
		category = model.DefaultCategory
	}

	counts := make(map[string]int)
	for _, tx := range txs {
		if tx.Category != category {
			continue
		}
		for _, word := range wordPattern.FindAllString(searchText(tx), -1) {
			if stopwords[word] {
				continue
			}
			counts[word]++
		}
	}

	type wordCount struct {
		word  string
		count int
	}
	var candidates []wordCount
	for w, n := range counts {
		if n > 1 {
			candidates = append(candidates, wordCount{w, n})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].word < candidates[j].word
	})

	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	words := make([]string, len(candidates))
	for i, wc := range candidates {
		words[i] = wc.word
	}
	return words
}
