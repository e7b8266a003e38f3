package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/journalrag/internal/id"
	"github.com/cleared-dev/journalrag/internal/model"
)

// Service appends journaled invoices to monthly CSV files under a repo root
// (YYYY/MM/journal.csv).
type Service struct {
	repoRoot string
	accounts AccountChecker
}

// NewService creates a journal Service.
func NewService(repoRoot string, accounts AccountChecker) *Service {
	return &Service{repoRoot: repoRoot, accounts: accounts}
}

// Append stamps postings as the next entry of date's month, validates them
// and appends them to the month's journal. It returns the stamped postings.
func (s *Service) Append(date time.Time, postings []model.Posting) ([]model.Posting, error) {
	year, month := date.Year(), int(date.Month())

	seq, err := s.NextEntrySeq(year, month)
	if err != nil {
		return nil, err
	}
	stamped := AssignEntryIDs(postings, date, seq)

	if verrs := ValidatePostings(stamped, s.accounts); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	path := s.MonthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendPostings(f, stamped); err != nil {
		return nil, fmt.Errorf("appending postings: %w", err)
	}
	return stamped, nil
}

// ReadMonth reads all postings for a given year/month.
func (s *Service) ReadMonth(year, month int) ([]model.Posting, error) {
	path := s.MonthPath(year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	postings, err := ReadPostings(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return postings, nil
}

// NextEntrySeq returns the next available sequence number for a month.
func (s *Service) NextEntrySeq(year, month int) (int, error) {
	postings, err := s.ReadMonth(year, month)
	if err != nil {
		return 0, err
	}

	maxSeq := 0
	for _, p := range postings {
		_, _, seq, err := id.ParseEntryID(p.EntryID)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

// MonthPath returns the journal file for a month.
func (s *Service) MonthPath(year, month int) string {
	return filepath.Join(s.repoRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}
