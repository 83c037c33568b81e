// Package normalize converts raw extracted field bags into canonical
// transactions. Each field normalizer is total: it never panics, and signals
// failure through its return value. A record that fails a required-field or
// bounds check is rejected from the stream with a recorded reason; the batch
// itself is never aborted here.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/id"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// flexibleLayouts are tried before the configured explicit layouts, covering
// machine-generated timestamp shapes.
var flexibleLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC1123,
	time.RFC822,
}

// statusSynonyms maps lower-cased source status values onto the canonical
// set. Unmapped values become StatusUnknown; status never rejects a record.
var statusSynonyms = map[string]model.TxStatus{
	"success": model.StatusSuccess, "successful": model.StatusSuccess,
	"completed": model.StatusSuccess, "done": model.StatusSuccess,
	"ok": model.StatusSuccess, "1": model.StatusSuccess, "true": model.StatusSuccess,

	"failed": model.StatusFailed, "failure": model.StatusFailed,
	"error": model.StatusFailed, "rejected": model.StatusFailed,
	"declined": model.StatusFailed, "0": model.StatusFailed, "false": model.StatusFailed,

	"pending": model.StatusPending, "processing": model.StatusPending,
	"in_progress": model.StatusPending, "waiting": model.StatusPending,
}

var (
	nonPhoneChars  = regexp.MustCompile(`[^\d+]`)
	nonAmountChars = regexp.MustCompile(`[^\d.-]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	unsafeText     = regexp.MustCompile(`[^\w\s\-.,!?()]`)
)

// ValidationError captures one rejected record for later export.
type ValidationError struct {
	TransactionID string            `json:"transaction_id"`
	Reason        string            `json:"reason"`
	Payload       map[string]string `json:"payload"`
}

// Stats summarizes one batch of cleaning.
type Stats struct {
	Processed        int
	Cleaned          int
	Rejected         int
	SuccessRate      float64
	ValidationErrors int
}

// JSONSink receives the validation-error export.
type JSONSink interface {
	WriteJSON(prefix string, v any) (string, error)
}

// Cleaner normalizes raw elements against a single configuration. It
// accumulates counts and validation errors across one batch; it is not safe
// for concurrent use.
type Cleaner struct {
	cfg      *config.Config
	patterns []*regexp.Regexp
	logger   *zap.SugaredLogger
	now      func() time.Time

	cleaned  int
	rejected int
	errors   []ValidationError
}

// NewCleaner compiles the configured phone patterns and returns a Cleaner.
func NewCleaner(cfg *config.Config, logger *zap.SugaredLogger) (*Cleaner, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.PhonePatterns))
	for _, p := range cfg.PhonePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling phone pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Cleaner{cfg: cfg, patterns: patterns, logger: logger, now: time.Now}, nil
}

// CleanAll normalizes a batch, dropping rejected records.
func (c *Cleaner) CleanAll(elements []model.RawElement) []model.Transaction {
	cleaned := make([]model.Transaction, 0, len(elements))
	for _, el := range elements {
		tx, ok := c.Clean(el)
		if ok {
			cleaned = append(cleaned, tx)
		}
	}
	c.logger.Infow("cleaning complete", "cleaned", c.cleaned, "rejected", c.rejected)
	return cleaned
}

// Clean normalizes one element. The second return value is false when the
// record was rejected; the reason is retrievable via Errors().
func (c *Cleaner) Clean(raw model.RawElement) (model.Transaction, bool) {
	phone := c.NormalizePhone(firstNonEmpty(raw.Get("phone"), raw.Get("sender"), raw.Get("recipient")))
	if phone == "" {
		c.reject(raw, "no valid phone number found")
		return model.Transaction{}, false
	}

	date, ok := c.NormalizeDate(raw.Get("date"))
	if !ok {
		// Date is rarely the disqualifying field; degrade to "now".
		date = c.now()
		c.logger.Warnw("no parsable date, using current timestamp", "phone", phone)
	}

	amount, ok := c.NormalizeAmount(raw.Get("amount"))
	if !ok {
		c.reject(raw, "no valid amount found")
		return model.Transaction{}, false
	}

	tx := model.Transaction{
		Date:        date,
		Phone:       phone,
		Amount:      amount,
		Description: CleanText(raw.Get("description")),
		Sender:      raw.Get("sender"),
		Recipient:   raw.Get("recipient"),
		Status:      NormalizeStatus(raw.Get("status")),
		ParsedAt:    raw.ParsedAt,
		CleanedAt:   c.now(),
		RawExcerpt:  raw.RawExcerpt,
	}

	tx.ID = raw.Get("id")
	if tx.ID == "" {
		tx.ID = id.TransactionID(tx.Date, tx.Phone, tx.Amount.String(), tx.Description)
	}

	if reason, ok := c.validate(tx); !ok {
		c.reject(raw, reason)
		return model.Transaction{}, false
	}

	c.cleaned++
	return tx, true
}

// NormalizePhone canonicalizes a phone number to "+<prefix><subscriber>".
// It returns "" when the input cannot be resolved to a valid number.
func (c *Cleaner) NormalizePhone(phone string) string {
	if phone == "" {
		return ""
	}
	phone = nonPhoneChars.ReplaceAllString(phone, "")

	prefix := c.cfg.CountryPrefix
	subscriberLen := c.cfg.PhoneLength - 1

	for _, re := range c.patterns {
		if !re.MatchString(phone) {
			continue
		}
		switch {
		case strings.HasPrefix(phone, "+"+prefix):
			return phone
		case strings.HasPrefix(phone, prefix):
			return "+" + phone
		case strings.HasPrefix(phone, "0") && len(phone) == c.cfg.PhoneLength:
			return "+" + prefix + phone[1:]
		case len(phone) == subscriberLen:
			return "+" + prefix + phone
		}
	}

	// No pattern matched; infer the local format as a last resort.
	if isDigits(phone) {
		if len(phone) == subscriberLen {
			return "+" + prefix + phone
		}
		if len(phone) == c.cfg.PhoneLength && strings.HasPrefix(phone, "0") {
			return "+" + prefix + phone[1:]
		}
	}

	c.logger.Warnw("could not normalize phone number", "phone", phone)
	return ""
}

// NormalizeDate parses a date string, trying flexible layouts first and the
// configured explicit layouts second.
func (c *Cleaner) NormalizeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range c.cfg.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	c.logger.Warnw("could not parse date", "date", s)
	return time.Time{}, false
}

// NormalizeAmount strips currency symbols and separators, parses the decimal
// value, enforces the configured bounds, and rounds to two places.
func (c *Cleaner) NormalizeAmount(s string) (decimal.Decimal, bool) {
	s = nonAmountChars.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		c.logger.Warnw("could not parse amount", "amount", s)
		return decimal.Zero, false
	}

	if amount.LessThan(c.cfg.MinAmountDecimal()) {
		c.logger.Warnw("amount below minimum threshold", "amount", amount)
		return decimal.Zero, false
	}
	if amount.GreaterThan(c.cfg.MaxAmountDecimal()) {
		c.logger.Warnw("amount above maximum threshold", "amount", amount)
		return decimal.Zero, false
	}

	return amount.Round(2), true
}

// NormalizeStatus maps a source status through the synonym table.
func NormalizeStatus(s string) model.TxStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := statusSynonyms[s]; ok {
		return canonical
	}
	return model.StatusUnknown
}

// CleanText collapses whitespace runs and strips characters outside the safe
// punctuation allowlist.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return unsafeText.ReplaceAllString(s, "")
}

// validate is the final acceptance gate before handing a transaction
// downstream.
func (c *Cleaner) validate(tx model.Transaction) (string, bool) {
	if tx.Phone == "" || tx.Date.IsZero() {
		return "missing required field", false
	}
	if !strings.HasPrefix(tx.Phone, "+") {
		return "invalid phone format", false
	}
	if !tx.Amount.IsPositive() {
		return "invalid amount", false
	}
	return "", true
}

func (c *Cleaner) reject(raw model.RawElement, reason string) {
	c.rejected++
	txID := raw.Get("id")
	if txID == "" {
		txID = "unknown"
	}
	c.errors = append(c.errors, ValidationError{
		TransactionID: txID,
		Reason:        reason,
		Payload:       raw.Fields,
	})
	c.logger.Warnw("record rejected", "transaction_id", txID, "reason", reason)
}

// Stats returns counters for the batch cleaned so far.
func (c *Cleaner) Stats() Stats {
	total := c.cleaned + c.rejected
	rate := 0.0
	if total > 0 {
		rate = float64(c.cleaned) / float64(total)
	}
	return Stats{
		Processed:        total,
		Cleaned:          c.cleaned,
		Rejected:         c.rejected,
		SuccessRate:      rate,
		ValidationErrors: len(c.errors),
	}
}

// Errors returns the accumulated validation errors.
func (c *Cleaner) Errors() []ValidationError {
	return c.errors
}

// ExportErrors flushes the validation-error list to the sink as a timestamped
// JSON artifact. It is a no-op when no record was rejected.
func (c *Cleaner) ExportErrors(sink JSONSink) (string, error) {
	if len(c.errors) == 0 {
		return "", nil
	}
	path, err := sink.WriteJSON("validation_errors", c.errors)
	if err != nil {
		return "", fmt.Errorf("exporting validation errors: %w", err)
	}
	c.logger.Infow("exported validation errors", "count", len(c.errors), "path", path)
	return path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
