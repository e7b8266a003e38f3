// Package retrieval ranks chart-of-accounts entries against a free-text query
// by cosine similarity of their embeddings.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cleared-dev/journalrag/internal/accounts"
	"github.com/cleared-dev/journalrag/internal/model"
)

var (
	// ErrEmptyIndex is returned when retrieving against an index with no entries.
	ErrEmptyIndex = errors.New("empty COA index")
	// ErrInvalidK is returned for a non-positive k.
	ErrInvalidK = errors.New("k must be positive")
)

// Candidate is one retrieved account with its similarity to the query.
type Candidate struct {
	Entry model.COAEntry
	Score float64
}

// Result is the ranked candidate list, highest similarity first.
type Result []Candidate

// Entries returns the candidate entries in rank order.
func (r Result) Entries() []model.COAEntry {
	out := make([]model.COAEntry, len(r))
	for i, c := range r {
		out[i] = c.Entry
	}
	return out
}

// Codes returns the candidate codes in rank order.
func (r Result) Codes() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Entry.Code
	}
	return out
}

// CosineSimilarity returns dot(a,b)/(|a||b|). It is 0 when either vector
// has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK embeds query with the index's embedder and returns the min(k, len)
// most similar entries. Ties keep index order.
func TopK(ctx context.Context, idx *accounts.Index, query string, k int) (Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top-k %d: %w", k, ErrInvalidK)
	}
	if idx == nil || idx.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	vecs, err := idx.Embedder().Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	if len(vecs[0]) != idx.Dimension() {
		return nil, fmt.Errorf("embedding query: %w (got %d, index %d)",
			accounts.ErrDimensionMismatch, len(vecs[0]), idx.Dimension())
	}
	return rank(idx.Entries(), vecs[0], k), nil
}

func rank(entries []model.COAEntry, query []float32, k int) Result {
	scored := make(Result, len(entries))
	for i, e := range entries {
		scored[i] = Candidate{Entry: e, Score: CosineSimilarity(query, e.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored[:min(k, len(scored))]
}

// Retriever binds an index to a default K.
type Retriever struct {
	idx *accounts.Index
	k   int
}

// NewRetriever creates a Retriever over idx returning k candidates.
func NewRetriever(idx *accounts.Index, k int) *Retriever {
	return &Retriever{idx: idx, k: k}
}

// Retrieve returns the top candidates for query.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	return TopK(ctx, r.idx, query, r.k)
}

// Index returns the underlying index.
func (r *Retriever) Index() *accounts.Index { return r.idx }

// K returns the configured candidate count.
func (r *Retriever) K() int { return r.k }
