package classify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/journalrag/internal/model"
)

// DefaultInstruction asks the oracle for a single candidate code.
const DefaultInstruction = "Answer with exactly one account code from the list above and nothing else."

// Candidate is one account offered to the oracle.
type Candidate struct {
	Code        string
	Description string
}

// Request is the bounded decision put to the oracle.
type Request struct {
	Description string
	Amount      decimal.Decimal
	Candidates  []Candidate
	Instruction string
}

// NewRequest builds a request for item constrained to candidates.
func NewRequest(item model.LineItem, candidates []model.COAEntry) Request {
	req := Request{
		Description: item.Description,
		Amount:      item.Amount,
		Candidates:  make([]Candidate, len(candidates)),
		Instruction: DefaultInstruction,
	}
	for i, c := range candidates {
		req.Candidates[i] = Candidate{Code: c.Code, Description: c.Description}
	}
	return req
}

// Oracle answers a classification request with free-form text that is
// expected, but not guaranteed, to be one of the candidate codes.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}
