package accounts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/journalrag/internal/model"
)

// Separator splits the account code from its description in the chart file.
const Separator = " - "

// ParseLines reads a chart of accounts, one "<code> - <description>" per line.
// The first separator splits code from description. Lines without the
// separator (blank lines, headers, comments) and lines with an empty code or
// description are skipped. Lines have no length limit. Only read failures
// are errors.
func ParseLines(r io.Reader) ([]model.COAEntry, error) {
	var entries []model.COAEntry
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if entry, ok := parseLine(line); ok {
			entries = append(entries, entry)
		}
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading chart lines: %w", err)
		}
	}
}

func parseLine(line string) (model.COAEntry, bool) {
	code, desc, found := strings.Cut(line, Separator)
	if !found {
		return model.COAEntry{}, false
	}
	code = strings.TrimSpace(code)
	desc = strings.TrimSpace(desc)
	if code == "" || desc == "" {
		return model.COAEntry{}, false
	}
	return model.COAEntry{Code: code, Description: desc}, true
}

// WriteLines writes entries in the chart file format.
func WriteLines(w io.Writer, entries []model.COAEntry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		if _, err := fmt.Fprintln(bw, e.Line()); err != nil {
			return fmt.Errorf("writing line %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}
