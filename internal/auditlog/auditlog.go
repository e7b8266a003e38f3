// Package auditlog records every classification decision to a CSV trail.
package auditlog

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

// Outcome values recorded per line.
const (
	OutcomeMatched     = "matched"
	OutcomeUnmatched   = "unmatched"
	OutcomeOracleError = "oracle-error"
	OutcomeSkipped     = "skipped"
)

// Entry is one row in the classification log.
type Entry struct {
	Timestamp   time.Time
	RunID       string
	Invoice     string
	Line        int
	Description string
	Outcome     string
	Account     string
	RawAnswer   string
	Candidates  []string
}

// Header is the CSV header for classification-log.csv.
const Header = "timestamp,run_id,invoice,line,description,outcome,account,raw_answer,candidates"

const (
	numFields      = 9
	logDir         = "logs"
	logFile        = "logs/classification-log.csv"
	candidateSep   = ";"
	colTimestamp   = 0
	colRunID       = 1
	colInvoice     = 2
	colLine        = 3
	colDescription = 4
	colOutcome     = 5
	colAccount     = 6
	colRawAnswer   = 7
	colCandidates  = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colInvoice] = e.Invoice
	row[colLine] = strconv.Itoa(e.Line)
	row[colDescription] = e.Description
	row[colOutcome] = e.Outcome
	row[colAccount] = e.Account
	row[colRawAnswer] = e.RawAnswer
	row[colCandidates] = strings.Join(e.Candidates, candidateSep)
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
	line, err := strconv.Atoi(record[colLine])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing line %q: %w", record[colLine], err)
	}

	var candidates []string
	if record[colCandidates] != "" {
		candidates = strings.Split(record[colCandidates], candidateSep)
	}

	return Entry{
		Timestamp:   ts,
		RunID:       record[colRunID],
		Invoice:     record[colInvoice],
		Line:        line,
		Description: record[colDescription],
		Outcome:     record[colOutcome],
		Account:     record[colAccount],
		RawAnswer:   record[colRawAnswer],
		Candidates:  candidates,
	}, nil
}

// Path returns the log file location under repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, logFile)
}

// Append writes entries to <repoRoot>/logs/classification-log.csv, creating
// the file and header if needed.
func Append(repoRoot string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dir := filepath.Join(repoRoot, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(repoRoot)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening classification log: %w", err)
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

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <repoRoot>/logs/classification-log.csv.
// Returns nil if the file does not exist.
func Read(repoRoot string) ([]Entry, error) {
	f, err := os.Open(Path(repoRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening classification log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading classification log CSV: %w", err)
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
