// Package evaluation scores generated postings against ground truth and
// reports embedding quality.
package evaluation

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/journalrag/internal/model"
)

// ExpectedPosting is one ground-truth posting.
type ExpectedPosting struct {
	AccountCode string          `json:"account_code" yaml:"account_code"`
	Debit       decimal.Decimal `json:"debit" yaml:"debit"`
	Credit      decimal.Decimal `json:"credit" yaml:"credit"`
}

// Mismatch is an aligned position whose postings differ.
type Mismatch struct {
	Position  int
	Expected  ExpectedPosting
	Generated model.Posting
}

// Score is the positional comparison of generated and expected postings.
type Score struct {
	Accuracy       float64
	Matches        int
	Expected       int
	Generated      int
	LengthMismatch bool
	Mismatches     []Mismatch
	Missing        []ExpectedPosting // expected postings past the end of generated
	Extra          []model.Posting   // generated postings past the end of expected
}

// ScorePipeline aligns generated and expected postings by position. A
// position matches when the account codes are equal and debit and credit
// agree to 2 decimals. Accuracy is matches over len(expected); unaligned
// postings on either side are reported, never silently dropped. With no
// expected postings accuracy is 1 only if nothing was generated.
func ScorePipeline(generated []model.Posting, expected []ExpectedPosting) Score {
	s := Score{
		Expected:       len(expected),
		Generated:      len(generated),
		LengthMismatch: len(generated) != len(expected),
	}

	n := min(len(generated), len(expected))
	for i := 0; i < n; i++ {
		if matches(generated[i], expected[i]) {
			s.Matches++
			continue
		}
		s.Mismatches = append(s.Mismatches, Mismatch{Position: i, Expected: expected[i], Generated: generated[i]})
	}
	if len(expected) > n {
		s.Missing = append(s.Missing, expected[n:]...)
	}
	if len(generated) > n {
		s.Extra = append(s.Extra, generated[n:]...)
	}

	switch {
	case len(expected) > 0:
		s.Accuracy = float64(s.Matches) / float64(len(expected))
	case len(generated) == 0:
		s.Accuracy = 1
	}
	return s
}

func matches(g model.Posting, e ExpectedPosting) bool {
	return g.AccountCode == e.AccountCode &&
		g.Debit.Round(2).Equal(e.Debit.Round(2)) &&
		g.Credit.Round(2).Equal(e.Credit.Round(2))
}
