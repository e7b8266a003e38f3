package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/journalrag/internal/accounts"
	"github.com/cleared-dev/journalrag/internal/embedding"
	"github.com/cleared-dev/journalrag/internal/model"
)

// fixedEmbedder maps known texts to vectors and everything else to the query vector.
type fixedEmbedder struct {
	vectors map[string][]float32
	query   []float32
}

func (f fixedEmbedder) Model() string { return "fixed" }

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.query
		}
	}
	return out, nil
}

func buildIndex(t *testing.T, emb embedding.Embedder, entries []model.COAEntry) *accounts.Index {
	t.Helper()
	idx, err := accounts.Build(context.Background(), entries, emb, 0)
	require.NoError(t, err)
	return idx
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTopKOrdersBySimilarity(t *testing.T) {
	emb := fixedEmbedder{
		vectors: map[string][]float32{
			"far":   {0, 1},
			"near":  {1, 0.1},
			"mid":   {1, 1},
			"exact": {1, 0},
		},
		query: []float32{1, 0},
	}
	idx := buildIndex(t, emb, []model.COAEntry{
		{Code: "A", Description: "far"},
		{Code: "B", Description: "near"},
		{Code: "C", Description: "mid"},
		{Code: "D", Description: "exact"},
	})

	res, err := TopK(context.Background(), idx, "query", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "C"}, res.Codes())
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Len(t, res.Entries(), 3)
}

func TestTopKTiesKeepIndexOrder(t *testing.T) {
	emb := fixedEmbedder{
		vectors: map[string][]float32{"x": {1, 0}, "y": {1, 0}, "z": {0, 1}},
		query:   []float32{1, 0},
	}
	idx := buildIndex(t, emb, []model.COAEntry{
		{Code: "Z", Description: "z"},
		{Code: "X1", Description: "x"},
		{Code: "X2", Description: "y"},
	})

	res, err := TopK(context.Background(), idx, "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"X1", "X2", "Z"}, res.Codes())
}

func TestTopKMonotonic(t *testing.T) {
	emb := embedding.NewHashEmbedder(64)
	idx := buildIndex(t, emb, accounts.DefaultChart())
	ctx := context.Background()

	for _, query := range []string{"office rent", "annual software subscription", "flight to Munich", ""} {
		full, err := TopK(ctx, idx, query, idx.Len())
		require.NoError(t, err)
		for i := 1; i < len(full); i++ {
			assert.GreaterOrEqual(t, full[i-1].Score, full[i].Score, "query %q position %d", query, i)
		}
		for k := 1; k < idx.Len(); k++ {
			shorter, err := TopK(ctx, idx, query, k)
			require.NoError(t, err)
			longer, err := TopK(ctx, idx, query, k+1)
			require.NoError(t, err)
			assert.Equal(t, shorter, longer[:k], "query %q k=%d", query, k)
		}
	}
}

func TestTopKClampsToIndexSize(t *testing.T) {
	idx := buildIndex(t, embedding.NewHashEmbedder(16), accounts.DefaultChart()[:2])
	res, err := TopK(context.Background(), idx, "rent", 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestTopKEmptyIndex(t *testing.T) {
	idx := buildIndex(t, embedding.NewHashEmbedder(16), nil)

	res, err := TopK(context.Background(), idx, "rent", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)
	assert.Nil(t, res)

	_, err = TopK(context.Background(), nil, "rent", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestTopKInvalidK(t *testing.T) {
	idx := buildIndex(t, embedding.NewHashEmbedder(16), accounts.DefaultChart())
	for _, k := range []int{0, -1} {
		_, err := TopK(context.Background(), idx, "rent", k)
		assert.ErrorIs(t, err, ErrInvalidK)
	}
}

func TestTopKQueryDimensionMismatch(t *testing.T) {
	emb := fixedEmbedder{
		vectors: map[string][]float32{"a": {1, 0}},
		query:   []float32{1, 0, 0},
	}
	idx := buildIndex(t, emb, []model.COAEntry{{Code: "A", Description: "a"}})

	_, err := TopK(context.Background(), idx, "q", 1)
	assert.ErrorIs(t, err, accounts.ErrDimensionMismatch)
}

func TestRetriever(t *testing.T) {
	idx := buildIndex(t, embedding.NewHashEmbedder(256), accounts.DefaultChart())
	r := NewRetriever(idx, 3)

	res, err := r.Retrieve(context.Background(), "office rent")
	require.NoError(t, err)
	assert.Len(t, res, 3)
	assert.Equal(t, 3, r.K())
	assert.Same(t, idx, r.Index())
	assert.Equal(t, "5201", res[0].Entry.Code)
}
