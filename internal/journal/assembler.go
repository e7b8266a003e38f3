package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/classify"
	"github.com/cleared-dev/journalrag/internal/config"
	"github.com/cleared-dev/journalrag/internal/id"
	"github.com/cleared-dev/journalrag/internal/model"
	"github.com/cleared-dev/journalrag/internal/retrieval"
)

// Fixed posting descriptions.
const (
	VATDescription     = "Input VAT"
	PayableDescription = "Accounts Payable"
	AccruedDescription = "Accrued liability"
	prepaidDescription = "Prepayment allocation for month %d"
)

// Route is the branch a line item took through the assembler.
type Route string

const (
	RouteClassified Route = "classified"
	RoutePrepaid    Route = "prepaid"
	RouteAccrued    Route = "accrued"
	RouteReview     Route = "review"
	RouteSkipped    Route = "skipped"
)

var (
	prepaidKeywords = []string{"prepaid", "annual"}
	accruedKeywords = []string{"accrued", "unpaid"}
)

// Accounts are the fixed ledger accounts the assembler posts to.
type Accounts struct {
	VAT            string
	Payable        string
	Prepaid        string
	Accrued        string
	Review         string
	PrepaidPeriods int
}

// AccountsFromConfig reads the fixed accounts from the ledger configuration.
func AccountsFromConfig(cfg config.LedgerConfig) Accounts {
	return Accounts{
		VAT:            cfg.VATAccount,
		Payable:        cfg.PayableAccount,
		Prepaid:        cfg.PrepaidAccount,
		Accrued:        cfg.AccruedAccount,
		Review:         cfg.ReviewAccount,
		PrepaidPeriods: cfg.PrepaidPeriods,
	}
}

// Retriever returns ranked candidate accounts for a description.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

// Classifier picks one account among candidates.
type Classifier interface {
	Classify(ctx context.Context, item model.LineItem, candidates []model.COAEntry) (classify.Outcome, error)
}

// LineResult records how one line item was journaled.
type LineResult struct {
	Item       model.LineItem
	Candidates retrieval.Result
	Outcome    classify.Outcome // nil when the oracle failed
	OracleErr  error
	Route      Route
	Account    string
}

// Result is the assembled journal for one invoice.
type Result struct {
	Postings []model.Posting
	Lines    []LineResult
}

// NeedsReview reports whether any posting is pending review.
func (r *Result) NeedsReview() bool {
	for _, p := range r.Postings {
		if p.Status == model.StatusPendingReview {
			return true
		}
	}
	return false
}

// Assembler turns invoices into postings.
type Assembler struct {
	retriever  Retriever
	classifier Classifier
	accounts   Accounts
	logger     *zap.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(r Retriever, c Classifier, accounts Accounts, logger *zap.Logger) *Assembler {
	if accounts.PrepaidPeriods <= 0 {
		accounts.PrepaidPeriods = 12
	}
	return &Assembler{retriever: r, classifier: c, accounts: accounts, logger: logger}
}

// BuildEntries journals an invoice. Line items are processed in order:
// retrieve candidates, classify, then route. A retrieval failure aborts the
// invoice; an oracle failure or unmatched answer sends that line to the
// review account. Zero-amount lines are recorded but produce no postings.
// VAT and the payable credit for Total follow the lines. Total is not
// reconciled against the lines.
func (a *Assembler) BuildEntries(ctx context.Context, inv model.InvoiceData) (*Result, error) {
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid invoice: %w", err)
	}
	if !inv.Consistent() {
		a.logger.Warn("Invoice total does not equal net plus VAT; postings will not balance",
			zap.String("invoice", inv.Number),
			zap.String("net", inv.Net().StringFixed(2)),
			zap.String("vat", inv.VATAmount.StringFixed(2)),
			zap.String("total", inv.Total.StringFixed(2)))
	}

	res := &Result{}
	for i, item := range inv.LineItems {
		line, err := a.buildLine(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("line %d (%q): %w", i+1, item.Description, err)
		}
		evidence := lineEvidence(inv.Number, i)
		res.Postings = append(res.Postings, a.route(line, evidence)...)
		res.Lines = append(res.Lines, *line)
	}

	if inv.VATAmount.IsPositive() {
		res.Postings = append(res.Postings, model.Posting{
			AccountCode: a.accounts.VAT,
			Description: VATDescription,
			Debit:       inv.VATAmount,
			Status:      model.StatusAutoConfirmed,
			Evidence:    inv.Number,
		})
	}
	if inv.Total.IsPositive() {
		res.Postings = append(res.Postings, model.Posting{
			AccountCode: a.accounts.Payable,
			Description: PayableDescription,
			Credit:      inv.Total,
			Status:      model.StatusAutoConfirmed,
			Evidence:    inv.Number,
		})
	}
	return res, nil
}

func (a *Assembler) buildLine(ctx context.Context, item model.LineItem) (*LineResult, error) {
	line := &LineResult{Item: item}
	if item.Amount.IsZero() {
		line.Route = RouteSkipped
		a.logger.Debug("Skipping zero-amount line item", zap.String("description", item.Description))
		return line, nil
	}

	candidates, err := a.retriever.Retrieve(ctx, item.Description)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}
	line.Candidates = candidates

	outcome, err := a.classifier.Classify(ctx, item, candidates.Entries())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("classifying: %w", err)
		}
		a.logger.Warn("Classification failed, routing to review",
			zap.String("description", item.Description),
			zap.Error(err))
		line.OracleErr = err
	}
	line.Outcome = outcome

	desc := strings.ToLower(item.Description)
	switch {
	case containsAny(desc, prepaidKeywords):
		line.Route, line.Account = RoutePrepaid, a.accounts.Prepaid
	case containsAny(desc, accruedKeywords):
		line.Route, line.Account = RouteAccrued, a.accounts.Accrued
	default:
		if m, ok := outcome.(classify.Matched); ok {
			line.Route, line.Account = RouteClassified, m.Code
		} else {
			line.Route, line.Account = RouteReview, a.accounts.Review
		}
	}

	a.logger.Debug("Line item routed",
		zap.String("description", item.Description),
		zap.Strings("candidates", candidates.Codes()),
		zap.String("route", string(line.Route)),
		zap.String("account", line.Account))
	return line, nil
}

func (a *Assembler) route(line *LineResult, evidence string) []model.Posting {
	item := line.Item
	switch line.Route {
	case RouteSkipped:
		return nil
	case RoutePrepaid:
		return a.prepaidPostings(item.Amount, evidence)
	case RouteAccrued:
		return []model.Posting{{
			AccountCode: line.Account,
			Description: AccruedDescription,
			Debit:       item.Amount,
			Status:      model.StatusAutoConfirmed,
			Evidence:    evidence,
		}}
	case RouteReview:
		return []model.Posting{{
			AccountCode: line.Account,
			Description: item.Description,
			Debit:       item.Amount,
			Status:      model.StatusPendingReview,
			Evidence:    evidence,
		}}
	default:
		return []model.Posting{{
			AccountCode: line.Account,
			Description: item.Description,
			Debit:       item.Amount,
			Status:      model.StatusAutoConfirmed,
			Evidence:    evidence,
		}}
	}
}

// prepaidPostings spreads amount over the prepaid periods in cents. The
// share is rounded down so the remainder on the last period is never
// negative; periods whose share is zero are left out.
func (a *Assembler) prepaidPostings(amount decimal.Decimal, evidence string) []model.Posting {
	n := a.accounts.PrepaidPeriods
	share := amount.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	last := amount.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))

	postings := make([]model.Posting, 0, n)
	for i := 0; i < n; i++ {
		debit := share
		if i == n-1 {
			debit = last
		}
		if debit.IsZero() {
			continue
		}
		postings = append(postings, model.Posting{
			AccountCode: a.accounts.Prepaid,
			Description: fmt.Sprintf(prepaidDescription, i+1),
			Debit:       debit,
			Status:      model.StatusAutoConfirmed,
			Evidence:    evidence,
		})
	}
	return postings
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func lineEvidence(number string, i int) string {
	if number == "" {
		return fmt.Sprintf("line %d", i+1)
	}
	return fmt.Sprintf("%s line %d", number, i+1)
}

// AssignEntryIDs returns a copy of postings stamped as legs of one entry:
// "YYYY-MM-NNN" for date and seq plus a leg suffix.
func AssignEntryIDs(postings []model.Posting, date time.Time, seq int) []model.Posting {
	entryID := id.FormatEntryID(date.Year(), int(date.Month()), seq)
	out := make([]model.Posting, len(postings))
	for i, p := range postings {
		p.EntryID = id.FormatLegID(entryID, i)
		out[i] = p
	}
	return out
}
