package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/journal"
	"github.com/cleared-dev/journalrag/internal/model"
)

// Report bundles every evaluation signal for one journaled invoice.
type Report struct {
	Balance          journal.BalanceReport
	VATCompliant     bool
	Pipeline         *Score // nil without ground truth
	EmbeddingQuality *float64
}

// Input is what Evaluate needs. Expected and Embedder are optional.
type Input struct {
	Postings []model.Posting
	Invoice  model.InvoiceData
	VATRate  decimal.Decimal
	Expected []ExpectedPosting
	Embedder embedding.Embedder
}

// Evaluate checks balance and VAT (against the invoice net), scores the
// postings when ground truth is given and measures embedding quality when
// an embedder is given.
func Evaluate(ctx context.Context, in Input) (*Report, error) {
	r := &Report{
		Balance:      journal.ValidateBalance(in.Postings),
		VATCompliant: journal.ValidateVAT(in.Postings, in.Invoice.Net(), in.VATRate),
	}
	if in.Expected != nil {
		s := ScorePipeline(in.Postings, in.Expected)
		r.Pipeline = &s
	}
	if in.Embedder != nil {
		q, err := ScoreEmbeddingQuality(ctx, in.Embedder, nil)
		if err != nil {
			return nil, err
		}
		r.EmbeddingQuality = &q
	}
	return r, nil
}

// LoadExpected reads ground-truth postings from a JSON or YAML file.
func LoadExpected(path string) ([]ExpectedPosting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expected postings: %w", err)
	}

	expected := []ExpectedPosting{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &expected)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &expected)
	default:
		return nil, fmt.Errorf("unsupported expected postings format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing expected postings %s: %w", path, err)
	}
	return expected, nil
}
