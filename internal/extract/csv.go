package extract

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/model"
)

// CSVSource extracts transactions from tabular SMS exports. The header row is
// matched against the same field aliases the XML source uses, so a column
// named msisdn feeds the phone field and so on. Unrecognized columns are
// ignored.
type CSVSource struct {
	sink   DeadLetter
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewCSV creates a CSVSource routing unparsable documents to sink.
func NewCSV(sink DeadLetter, logger *zap.SugaredLogger) *CSVSource {
	return &CSVSource{sink: sink, logger: logger, now: time.Now}
}

// Format returns the source name.
func (c *CSVSource) Format() string { return "csv" }

// Extract reads the whole document. A malformed CSV is dead-lettered and
// reported as a *ParseError, matching the XML source's contract. Rows that
// resolve no identity anchor are discarded.
func (c *CSVSource) Extract(r io.Reader) ([]model.RawElement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		if _, sinkErr := c.sink.WriteRaw("unparsed", string(data)); sinkErr != nil {
			c.logger.Errorw("failed to dead-letter unparsable document", "error", sinkErr)
		}
		return nil, &ParseError{Format: "csv", Err: err}
	}
	if len(records) <= 1 {
		return nil, nil
	}

	columns := mapColumns(records[0])
	if len(columns) == 0 {
		return nil, &ParseError{Format: "csv", Err: errNoKnownColumns}
	}

	elements := make([]model.RawElement, 0, len(records)-1)
	discarded := 0
	for _, rec := range records[1:] {
		raw, ok := c.extractRow(columns, rec)
		if !ok {
			discarded++
			continue
		}
		elements = append(elements, raw)
	}

	c.logger.Infow("extraction complete", "format", "csv",
		"extracted", len(elements), "discarded", discarded)
	return elements, nil
}

// mapColumns resolves each column index to a logical field. The first column
// matching an alias wins a field; later duplicates are ignored.
func mapColumns(header []string) map[int]string {
	columns := make(map[int]string)
	claimed := make(map[string]bool)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for _, m := range fieldMappings {
			if claimed[m.field] {
				continue
			}
			for _, alias := range m.names {
				if name == alias {
					columns[i] = m.field
					claimed[m.field] = true
					break
				}
			}
		}
	}
	return columns
}

func (c *CSVSource) extractRow(columns map[int]string, rec []string) (model.RawElement, bool) {
	fields := make(map[string]string)
	for i, field := range columns {
		if i >= len(rec) {
			continue
		}
		if v := strings.TrimSpace(rec[i]); v != "" {
			fields[field] = v
		}
	}

	anchored := false
	for _, f := range anchorFields {
		if _, ok := fields[f]; ok {
			anchored = true
			break
		}
	}
	if !anchored {
		return model.RawElement{}, false
	}

	return model.RawElement{
		Fields:     fields,
		ParsedAt:   c.now(),
		RawExcerpt: truncate(strings.Join(rec, ","), rawExcerptLimit),
	}, true
}
