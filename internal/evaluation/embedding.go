package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/retrieval"
)

// Pair is two descriptions that should embed close together.
type Pair struct {
	A, B string
}

// SimilarPairs is the curated regression set for embedding quality.
var SimilarPairs = []Pair{
	{"office rent", "rent for office space"},
	{"software subscription", "SaaS licence fee"},
	{"cloud services subscription", "cloud hosting services"},
	{"electricity bill", "utilities electricity and heating"},
	{"flight tickets", "air travel expenses"},
	{"legal advice", "lawyer consulting fees"},
	{"printer paper", "office supplies and stationery"},
	{"mobile phone contract", "telephone and mobile charges"},
	{"online advertising campaign", "marketing and advertising costs"},
	{"input tax", "input VAT deductible on purchases"},
}

// ScoreEmbeddingQuality returns the mean cosine similarity over pairs
// (SimilarPairs when pairs is nil). It is a regression signal for the
// embedding model, not a correctness check.
func ScoreEmbeddingQuality(ctx context.Context, embedder embedding.Embedder, pairs []Pair) (float64, error) {
	if pairs == nil {
		pairs = SimilarPairs
	}
	if len(pairs) == 0 {
		return 0, errors.New("no similarity pairs")
	}

	texts := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		texts = append(texts, p.A, p.B)
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding similarity pairs: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("embedding similarity pairs: got %d vectors for %d texts", len(vecs), len(texts))
	}

	var sum float64
	for i := range pairs {
		sum += retrieval.CosineSimilarity(vecs[2*i], vecs[2*i+1])
	}
	return sum / float64(len(pairs)), nil
}
