// Package audit keeps an append-only CSV history of pipeline runs, separate
// from the store so operators can inspect run outcomes without SQL.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the run history.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Source    string
	Status    string
	Extracted int
	Loaded    int
	Rejected  int
	Duration  time.Duration
}

// Header is the CSV header for the run history file.
const Header = "timestamp,run_id,source,status,extracted,loaded,rejected,duration"

const (
	numFields    = 8
	colTimestamp = 0
	colRunID     = 1
	colSource    = 2
	colStatus    = 3
	colExtracted = 4
	colLoaded    = 5
	colRejected  = 6
	colDuration  = 7
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colSource] = e.Source
	row[colStatus] = e.Status
	row[colExtracted] = strconv.Itoa(e.Extracted)
	row[colLoaded] = strconv.Itoa(e.Loaded)
	row[colRejected] = strconv.Itoa(e.Rejected)
	row[colDuration] = e.Duration.String()
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	extracted, err := strconv.Atoi(record[colExtracted])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing extracted %q: %w", record[colExtracted], err)
	}
	loaded, err := strconv.Atoi(record[colLoaded])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing loaded %q: %w", record[colLoaded], err)
	}
	rejected, err := strconv.Atoi(record[colRejected])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rejected %q: %w", record[colRejected], err)
	}
	duration, err := time.ParseDuration(record[colDuration])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing duration %q: %w", record[colDuration], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Source:    record[colSource],
		Status:    record[colStatus],
		Extracted: extracted,
		Loaded:    loaded,
		Rejected:  rejected,
		Duration:  duration,
	}, nil
}

// Append writes entries to path, creating the file and header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from path. Returns an empty slice if the file does
// not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run history CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
