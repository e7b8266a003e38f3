package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PostingStatus represents the review state of a posting.
type PostingStatus string

const (
	StatusAutoConfirmed PostingStatus = "auto-confirmed"
	StatusPendingReview PostingStatus = "pending-review"
)

// Posting is a single debit or credit line of a journal entry.
type Posting struct {
	EntryID     string          // "YYYY-MM-NNNx" where x = a,b,c...
	AccountCode string          //nolint:revive // plain field name is clearest
	Description string          //nolint:revive
	Debit       decimal.Decimal // zero if credit side
	Credit      decimal.Decimal // zero if debit side
	Status      PostingStatus
	Evidence    string
}

// IsDebit reports whether the posting carries a debit amount.
func (p Posting) IsDebit() bool {
	return !p.Debit.IsZero()
}

// EntryGroup returns the base entry ID (without leg suffix).
// "2025-01-001a" -> "2025-01-001"
func (p Posting) EntryGroup() string {
	id := p.EntryID
	if len(id) == 0 {
		return ""
	}
	i := len(id)
	for i > 0 && id[i-1] >= 'a' && id[i-1] <= 'z' {
		i--
	}
	return strings.TrimSpace(id[:i])
}
