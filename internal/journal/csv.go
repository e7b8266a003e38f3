package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/journalrag/internal/model"
)

// Header is the CSV header for journal files.
const Header = "entry_id,account_code,description,debit,credit,status,evidence"

const (
	numFields   = 7
	colEntryID  = 0
	colAccount  = 1
	colDesc     = 2
	colDebit    = 3
	colCredit   = 4
	colStatus   = 5
	colEvidence = 6
)

// ReadPostings reads all postings from a journal CSV reader.
func ReadPostings(r io.Reader) ([]model.Posting, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var postings []model.Posting
	for i, rec := range records[1:] {
		p, err := UnmarshalPosting(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// WritePostings writes postings to a journal CSV writer, including the header.
func WritePostings(w io.Writer, postings []model.Posting) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, p := range postings {
		if err := cw.Write(MarshalPosting(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendPostings writes postings without a header.
func AppendPostings(w io.Writer, postings []model.Posting) error {
	cw := csv.NewWriter(w)
	for i, p := range postings {
		if err := cw.Write(MarshalPosting(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalPosting converts a Posting to a CSV row. Amounts are written with
// 2 decimals; the empty side is left blank.
func MarshalPosting(p model.Posting) []string {
	row := make([]string, numFields)
	row[colEntryID] = p.EntryID
	row[colAccount] = p.AccountCode
	row[colDesc] = p.Description
	if !p.Debit.IsZero() {
		row[colDebit] = p.Debit.StringFixed(2)
	}
	if !p.Credit.IsZero() {
		row[colCredit] = p.Credit.StringFixed(2)
	}
	row[colStatus] = string(p.Status)
	row[colEvidence] = p.Evidence
	return row
}

// UnmarshalPosting converts a CSV row to a Posting.
func UnmarshalPosting(record []string) (model.Posting, error) {
	if len(record) != numFields {
		return model.Posting{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var debit, credit decimal.Decimal
	var err error
	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return model.Posting{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return model.Posting{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	return model.Posting{
		EntryID:     record[colEntryID],
		AccountCode: record[colAccount],
		Description: record[colDesc],
		Debit:       debit,
		Credit:      credit,
		Status:      model.PostingStatus(record[colStatus]),
		Evidence:    record[colEvidence],
	}, nil
}
