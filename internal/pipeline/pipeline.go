// Package pipeline wires configuration, embedding, retrieval, classification
// and journal assembly into one service used by the CLI and the HTTP API.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/accounts"
	"github.com/cleared-dev/journalrag/internal/auditlog"
	"github.com/cleared-dev/journalrag/internal/classify"
	"github.com/cleared-dev/journalrag/internal/config"
	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/journal"
	"github.com/cleared-dev/journalrag/internal/model"
	"github.com/cleared-dev/journalrag/internal/retrieval"
)

// ErrInvalidInput is returned for requests the pipeline cannot process.
var ErrInvalidInput = errors.New("invalid input")

// Options override parts of the wiring. Zero values use the configuration.
type Options struct {
	// RepoRoot resolves relative paths and hosts the audit log. Empty
	// disables the audit log.
	RepoRoot string
	Embedder embedding.Embedder
	Oracle   classify.Oracle
	Client   *openai.Client
}

// Pipeline journals invoices against one loaded chart of accounts. It is
// safe for concurrent use; the index is read-only after New.
type Pipeline struct {
	cfg        *config.Config
	repoRoot   string
	logger     *zap.Logger
	embedder   embedding.Embedder
	closer     io.Closer
	index      *accounts.Index
	retriever  *retrieval.Retriever
	classifier *classify.Classifier
	assembler  *journal.Assembler
	vatRate    decimal.Decimal

	auditMu sync.Mutex
}

// New builds the pipeline and embeds the chart of accounts.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		repoRoot: opts.RepoRoot,
		logger:   logger,
		vatRate:  decimal.NewFromFloat(cfg.Ledger.VATRate),
	}

	client := opts.Client
	needClient := opts.Oracle == nil || (opts.Embedder == nil && cfg.Embedding.Provider == "openai")
	if client == nil && needClient {
		var err error
		if client, err = NewOpenAIClient(cfg.OpenAI); err != nil {
			return nil, err
		}
	}

	p.embedder = opts.Embedder
	if p.embedder == nil {
		ecfg := cfg.Embedding
		if ecfg.CachePath != "" {
			ecfg.CachePath = p.resolve(ecfg.CachePath)
		}
		emb, err := embedding.New(ecfg, client, logger)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		p.embedder = emb
		if c, ok := emb.(io.Closer); ok {
			p.closer = c
		}
	}

	idx, err := accounts.Load(ctx, p.resolve(cfg.COA.Path), p.embedder, cfg.Embedding.BatchSize)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	p.index = idx
	p.retriever = retrieval.NewRetriever(idx, cfg.Retrieval.TopK)

	oracle := opts.Oracle
	if oracle == nil {
		prompts := classify.DefaultPrompts()
		if cfg.Oracle.PromptsPath != "" {
			if prompts, err = classify.LoadPrompts(p.resolve(cfg.Oracle.PromptsPath)); err != nil {
				_ = p.Close()
				return nil, err
			}
		}
		oracle = classify.NewOpenAIOracle(client, cfg.Oracle, prompts, logger)
	}
	p.classifier = classify.NewClassifier(oracle, classify.Options{
		Timeout:    cfg.Oracle.Timeout(),
		MaxRetries: cfg.Oracle.MaxRetries,
		Backoff:    cfg.Oracle.Backoff(),
	}, logger)

	ledger := journal.AccountsFromConfig(cfg.Ledger)
	for _, code := range []string{ledger.VAT, ledger.Payable, ledger.Prepaid, ledger.Accrued, ledger.Review} {
		if !idx.Exists(code) {
			logger.Warn("Ledger account missing from chart of accounts", zap.String("code", code))
		}
	}
	p.assembler = journal.NewAssembler(p.retriever, p.classifier, ledger, logger)

	logger.Info("Pipeline ready",
		zap.Int("accounts", idx.Len()),
		zap.String("embedding_model", p.embedder.Model()),
		zap.Int("dimension", idx.Dimension()),
		zap.Int("top_k", cfg.Retrieval.TopK))
	return p, nil
}

// NewOpenAIClient creates an OpenAI client from the credentials section.
func NewOpenAIClient(cfg config.OpenAIConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY)")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

func (p *Pipeline) resolve(path string) string {
	if filepath.IsAbs(path) || p.repoRoot == "" {
		return path
	}
	return filepath.Join(p.repoRoot, path)
}

// Close releases the embedding cache, if any.
func (p *Pipeline) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}

// Index returns the loaded chart of accounts.
func (p *Pipeline) Index() *accounts.Index { return p.index }

// Embedder returns the embedder shared by the index and queries.
func (p *Pipeline) Embedder() embedding.Embedder { return p.embedder }

// VATRate returns the configured VAT rate.
func (p *Pipeline) VATRate() decimal.Decimal { return p.vatRate }

// ClassifyResult is the outcome of classifying a single line item.
type ClassifyResult struct {
	RunID      string
	Item       model.LineItem
	Candidates retrieval.Result
	Outcome    classify.Outcome
	Account    string // matched code, or the review account
}

// Matched reports whether the oracle resolved to a candidate.
func (r *ClassifyResult) Matched() bool {
	_, ok := r.Outcome.(classify.Matched)
	return ok
}

// Classify retrieves candidates for item and asks the oracle to choose.
// Oracle failures are returned as errors matching classify.ErrOracleUnavailable.
func (p *Pipeline) Classify(ctx context.Context, item model.LineItem) (*ClassifyResult, error) {
	if strings.TrimSpace(item.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if item.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount: %w", ErrInvalidInput, model.ErrNegativeAmount)
	}

	runID := uuid.NewString()
	candidates, err := p.retriever.Retrieve(ctx, item.Description)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}

	res := &ClassifyResult{RunID: runID, Item: item, Candidates: candidates}
	outcome, err := p.classifier.Classify(ctx, item, candidates.Entries())
	line := journal.LineResult{Item: item, Candidates: candidates, Outcome: outcome, OracleErr: err}
	if err != nil {
		line.Account = p.cfg.Ledger.ReviewAccount
		p.audit(runID, "", []journal.LineResult{line})
		return nil, err
	}

	res.Outcome = outcome
	res.Account = p.cfg.Ledger.ReviewAccount
	if m, ok := outcome.(classify.Matched); ok {
		res.Account = m.Code
	}
	line.Account = res.Account
	p.audit(runID, "", []journal.LineResult{line})

	p.logger.Info("Line item classified",
		zap.String("run_id", runID),
		zap.String("description", item.Description),
		zap.Strings("candidates", candidates.Codes()),
		zap.String("account", res.Account))
	return res, nil
}

// JournalResult is a journaled invoice with its checks. Business-rule
// failures are reported here rather than as errors.
type JournalResult struct {
	RunID        string
	Invoice      model.InvoiceData
	Postings     []model.Posting
	Lines        []journal.LineResult
	Balance      journal.BalanceReport
	VATCompliant bool
	Violations   []journal.ValidationError
}

// NeedsReview reports whether any posting is pending review.
func (r *JournalResult) NeedsReview() bool {
	for _, p := range r.Postings {
		if p.Status == model.StatusPendingReview {
			return true
		}
	}
	return false
}

// Valid reports whether the postings passed every structural check.
func (r *JournalResult) Valid() bool {
	return len(r.Violations) == 0
}

// Journal assembles postings for inv and checks balance, VAT and the
// structural invariants. VAT is checked against the invoice net.
func (p *Pipeline) Journal(ctx context.Context, inv model.InvoiceData) (*JournalResult, error) {
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	runID := uuid.NewString()
	start := time.Now()

	built, err := p.assembler.BuildEntries(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("journaling invoice %s: %w", inv.Number, err)
	}

	res := &JournalResult{
		RunID:        runID,
		Invoice:      inv,
		Postings:     built.Postings,
		Lines:        built.Lines,
		Balance:      journal.ValidateBalance(built.Postings),
		VATCompliant: journal.ValidateVAT(built.Postings, inv.Net(), p.vatRate),
		Violations:   journal.ValidatePostings(built.Postings, p.index),
	}
	p.audit(runID, inv.Number, built.Lines)

	p.logger.Info("Invoice journaled",
		zap.String("run_id", runID),
		zap.String("invoice", inv.Number),
		zap.Int("postings", len(res.Postings)),
		zap.Bool("balanced", res.Balance.IsBalanced),
		zap.Bool("vat_compliant", res.VATCompliant),
		zap.Int("violations", len(res.Violations)),
		zap.Bool("needs_review", res.NeedsReview()),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (p *Pipeline) audit(runID, invoice string, lines []journal.LineResult) {
	if p.repoRoot == "" || len(lines) == 0 {
		return
	}
	now := time.Now().UTC()
	entries := make([]auditlog.Entry, len(lines))
	for i, l := range lines {
		entries[i] = auditEntry(now, runID, invoice, i+1, l)
	}

	p.auditMu.Lock()
	defer p.auditMu.Unlock()
	if err := auditlog.Append(p.repoRoot, entries); err != nil {
		p.logger.Error("Failed to write classification log", zap.String("run_id", runID), zap.Error(err))
	}
}

func auditEntry(ts time.Time, runID, invoice string, n int, l journal.LineResult) auditlog.Entry {
	e := auditlog.Entry{
		Timestamp:   ts,
		RunID:       runID,
		Invoice:     invoice,
		Line:        n,
		Description: l.Item.Description,
		Account:     l.Account,
		Candidates:  l.Candidates.Codes(),
	}
	switch o := l.Outcome.(type) {
	case classify.Matched:
		e.Outcome = auditlog.OutcomeMatched
		e.RawAnswer = o.Code
	case classify.Unmatched:
		e.Outcome = auditlog.OutcomeUnmatched
		e.RawAnswer = o.Raw
	}
	if l.OracleErr != nil {
		e.Outcome = auditlog.OutcomeOracleError
		e.RawAnswer = l.OracleErr.Error()
	}
	if l.Route == journal.RouteSkipped {
		e.Outcome = auditlog.OutcomeSkipped
	}
	return e
}
