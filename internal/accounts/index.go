package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/model"
)

// ErrDimensionMismatch is returned when the embedder produces vectors of
// differing lengths for one index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ParseError reports a chart of accounts source that could not be read.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing chart of accounts %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Index is the semantic index over the chart of accounts. It is read-only
// once built and safe for concurrent readers.
type Index struct {
	entries  []model.COAEntry
	byCode   map[string]int
	embedder embedding.Embedder
	dim      int
}

// Load reads the chart at path and builds an index over it.
func Load(ctx context.Context, path string, embedder embedding.Embedder, batchSize int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	entries, err := ParseLines(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return Build(ctx, entries, embedder, batchSize)
}

// Build embeds every entry description and returns the index. Descriptions
// are embedded in batches of batchSize (all at once when batchSize <= 0).
// Any embedding failure aborts the build.
func Build(ctx context.Context, entries []model.COAEntry, embedder embedding.Embedder, batchSize int) (*Index, error) {
	idx := &Index{
		entries:  make([]model.COAEntry, len(entries)),
		byCode:   make(map[string]int, len(entries)),
		embedder: embedder,
	}
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		texts := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			texts = append(texts, e.Description)
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding accounts %d-%d: %w", start+1, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding accounts %d-%d: got %d vectors", start+1, end, len(vectors))
		}

		for i, vec := range vectors {
			if start+i == 0 {
				idx.dim = len(vec)
			}
			if len(vec) != idx.dim || len(vec) == 0 {
				return nil, fmt.Errorf("account %s: %w (got %d, want %d)",
					entries[start+i].Code, ErrDimensionMismatch, len(vec), idx.dim)
			}
			e := entries[start+i]
			e.Embedding = vec
			idx.entries[start+i] = e
			if _, dup := idx.byCode[e.Code]; !dup {
				idx.byCode[e.Code] = start + i
			}
		}
	}
	return idx, nil
}

// Entries returns the indexed entries in source order. Callers must not
// modify the embeddings.
func (idx *Index) Entries() []model.COAEntry {
	out := make([]model.COAEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Get returns the entry for a code. With duplicate codes the first wins.
func (idx *Index) Get(code string) (model.COAEntry, bool) {
	i, ok := idx.byCode[code]
	if !ok {
		return model.COAEntry{}, false
	}
	return idx.entries[i], true
}

// Exists reports whether a code is in the index.
func (idx *Index) Exists(code string) bool {
	_, ok := idx.byCode[code]
	return ok
}

// Codes returns all codes in source order.
func (idx *Index) Codes() []string {
	codes := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		codes[i] = e.Code
	}
	return codes
}

// Embedder returns the embedder the index was built with. Queries against
// the index must use it.
func (idx *Index) Embedder() embedding.Embedder { return idx.embedder }

// Dimension returns the embedding length, or 0 for an empty index.
func (idx *Index) Dimension() int { return idx.dim }
