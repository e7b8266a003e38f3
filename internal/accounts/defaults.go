package accounts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cleared-dev/journalrag/internal/model"
)

// DefaultChart returns the starter chart of accounts written by init. It
// includes the fixed ledger accounts used by the journal assembler.
func DefaultChart() []model.COAEntry {
	return []model.COAEntry{
		{Code: "1203", Description: "Prepaid expenses for annual contracts and subscriptions"},
		{Code: "1501", Description: "Input VAT deductible on purchases"},
		{Code: "2000", Description: "Accounts payable to suppliers"},
		{Code: "5201", Description: "Office rent and lease payments"},
		{Code: "5202", Description: "Utilities electricity water and heating"},
		{Code: "5301", Description: "Office supplies and stationery"},
		{Code: "5401", Description: "Software subscriptions and cloud services"},
		{Code: "5501", Description: "Travel expenses flights hotels and meals"},
		{Code: "5601", Description: "Marketing and advertising costs"},
		{Code: "5701", Description: "Legal accounting and consulting fees"},
		{Code: "5801", Description: "Telephone mobile and internet charges"},
		{Code: "6101", Description: "Accrued expenses and unpaid liabilities"},
		{Code: "9999", Description: "Unclassified items needing review"},
	}
}

// SaveChart writes entries to path in the chart file format, creating the
// parent directory.
func SaveChart(path string, entries []model.COAEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteLines(f, entries); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}
