package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNegativeAmount is returned when an invoice carries a negative amount.
var ErrNegativeAmount = errors.New("negative amount")

// LineItem is one invoice position as supplied by upstream extraction.
type LineItem struct {
	Description string          `json:"description" yaml:"description"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
}

// InvoiceData is the sole contract between extraction and the journal
// pipeline. Total is caller-supplied and is never derived from the lines.
type InvoiceData struct {
	Number    string          `json:"number,omitempty" yaml:"number,omitempty"`
	Date      string          `json:"date,omitempty" yaml:"date,omitempty"` // YYYY-MM-DD
	LineItems []LineItem      `json:"line_items" yaml:"line_items"`
	VATAmount decimal.Decimal `json:"vat_amount" yaml:"vat_amount"`
	Total     decimal.Decimal `json:"total" yaml:"total"`
}

// DateFormat is the layout of InvoiceData.Date.
const DateFormat = "2006-01-02"

// BookingDate parses Date, falling back to fallback when Date is empty.
func (inv InvoiceData) BookingDate(fallback time.Time) (time.Time, error) {
	if inv.Date == "" {
		return fallback, nil
	}
	d, err := time.Parse(DateFormat, inv.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", inv.Date, err)
	}
	return d, nil
}

// Net returns the sum of all line item amounts.
func (inv InvoiceData) Net() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range inv.LineItems {
		sum = sum.Add(li.Amount)
	}
	return sum
}

// Consistent reports whether Total equals Net plus VAT.
func (inv InvoiceData) Consistent() bool {
	return inv.Net().Add(inv.VATAmount).Equal(inv.Total)
}

// Validate checks the non-negativity constraints of the data model.
func (inv InvoiceData) Validate() error {
	for i, li := range inv.LineItems {
		if li.Amount.IsNegative() {
			return fmt.Errorf("line %d (%q): %w", i+1, li.Description, ErrNegativeAmount)
		}
	}
	if inv.VATAmount.IsNegative() {
		return fmt.Errorf("vat_amount: %w", ErrNegativeAmount)
	}
	if inv.Total.IsNegative() {
		return fmt.Errorf("total: %w", ErrNegativeAmount)
	}
	return nil
}
