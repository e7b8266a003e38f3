package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/journalrag/internal/model"
)

// Structural invariants checked by ValidatePostings.
const (
	InvariantBalanced     = 1 // each entry group balances
	InvariantOneSide      = 2 // exactly one of debit/credit, never negative
	InvariantKnownAccount = 3 // account exists in the chart
	InvariantPrecision    = 4 // at most 2 decimal places
)

// vatTolerance is the allowed absolute VAT deviation.
var vatTolerance = decimal.RequireFromString("0.01")

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// AccountChecker tests whether an account code exists in the chart of accounts.
type AccountChecker interface {
	Exists(code string) bool
}

// BalanceReport is the result of ValidateBalance.
type BalanceReport struct {
	IsBalanced  bool
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// ValidateBalance sums debits and credits, rounded to 2 places, and reports
// whether they are equal.
func ValidateBalance(postings []model.Posting) BalanceReport {
	debit, credit := decimal.Zero, decimal.Zero
	for _, p := range postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	debit, credit = debit.Round(2), credit.Round(2)
	return BalanceReport{
		IsBalanced:  debit.Equal(credit),
		TotalDebit:  debit,
		TotalCredit: credit,
	}
}

// ValidateVAT checks that every "Input VAT" posting debits base*rate within
// one cent. Without a VAT posting there is nothing to violate.
func ValidateVAT(postings []model.Posting, base, rate decimal.Decimal) bool {
	expected := base.Mul(rate)
	for _, p := range postings {
		if p.Description != VATDescription {
			continue
		}
		if !p.Debit.Sub(expected).Abs().LessThan(vatTolerance) {
			return false
		}
	}
	return true
}

// ValidatePostings checks the structural invariants of a set of postings.
// Violations are returned as data; an empty result means the postings may
// be written to the journal. A nil checker skips the account check.
func ValidatePostings(postings []model.Posting, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	groups := make(map[string][]model.Posting)
	var groupOrder []string
	for _, p := range postings {
		g := p.EntryGroup()
		if _, seen := groups[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		groups[g] = append(groups[g], p)
	}

	for _, g := range groupOrder {
		report := ValidateBalance(groups[g])
		if !report.IsBalanced {
			errs = append(errs, ValidationError{
				Invariant: InvariantBalanced,
				EntryID:   g,
				Description: fmt.Sprintf("debits (%s) != credits (%s)",
					report.TotalDebit.StringFixed(2), report.TotalCredit.StringFixed(2)),
			})
		}
	}

	hundred := decimal.NewFromInt(100)
	for _, p := range postings {
		hasDebit := !p.Debit.IsZero()
		hasCredit := !p.Credit.IsZero()
		if hasDebit == hasCredit {
			errs = append(errs, ValidationError{
				Invariant:   InvariantOneSide,
				EntryID:     p.EntryID,
				Description: "posting must have exactly one of debit or credit",
			})
		}
		if p.Debit.IsNegative() || p.Credit.IsNegative() {
			errs = append(errs, ValidationError{
				Invariant:   InvariantOneSide,
				EntryID:     p.EntryID,
				Description: "posting amounts must not be negative",
			})
		}

		if accounts != nil && !accounts.Exists(p.AccountCode) {
			errs = append(errs, ValidationError{
				Invariant:   InvariantKnownAccount,
				EntryID:     p.EntryID,
				Description: fmt.Sprintf("unknown account %s", p.AccountCode),
			})
		}

		for _, side := range []struct {
			name   string
			amount decimal.Decimal
		}{{"debit", p.Debit}, {"credit", p.Credit}} {
			scaled := side.amount.Mul(hundred)
			if !scaled.Equal(scaled.Floor()) {
				errs = append(errs, ValidationError{
					Invariant:   InvariantPrecision,
					EntryID:     p.EntryID,
					Description: fmt.Sprintf("%s %s has more than 2 decimal places", side.name, side.amount),
				})
			}
		}
	}
	return errs
}
