package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/config"
)

// countingEmbedder records every text it is asked to embed.
type countingEmbedder struct {
	inner Embedder
	calls [][]string
	err   error
}

func (c *countingEmbedder) Model() string { return c.inner.Model() }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) embedded() []string {
	var all []string
	for _, call := range c.calls {
		all = append(all, call...)
	}
	return all
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedderDeterministicAndNormalised(t *testing.T) {
	h := NewHashEmbedder(64)
	ctx := context.Background()

	first, err := h.Embed(ctx, []string{"Office rent", "Utilities"})
	require.NoError(t, err)
	second, err := h.Embed(ctx, []string{"Office rent", "Utilities"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	for _, v := range first {
		assert.Len(t, v, 64)
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}
	assert.Equal(t, "hash-64", h.Model())
}

func TestHashEmbedderSimilarity(t *testing.T) {
	h := NewHashEmbedder(256)
	vecs, err := h.Embed(context.Background(), []string{
		"office rent",
		"rent for office space",
		"airline tickets",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestHashEmbedderEmptyText(t *testing.T) {
	vecs, err := NewHashEmbedder(8).Embed(context.Background(), []string{"  -- "})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vecs[0])
}

func TestHashEmbedderInvalidDimension(t *testing.T) {
	_, err := NewHashEmbedder(0).Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestCachedEmbedderOnlyEmbedsMisses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "embeddings.db")
	inner := &countingEmbedder{inner: NewHashEmbedder(16)}
	cache, err := NewCachedEmbedder(path, inner, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	want, err := NewHashEmbedder(16).Embed(ctx, []string{"rent", "travel"})
	require.NoError(t, err)

	got, err := cache.Embed(ctx, []string{"rent", "travel", "rent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rent", "travel"}, inner.embedded(), "duplicates embedded once")
	assert.Equal(t, want[0], got[0])
	assert.Equal(t, want[1], got[1])
	assert.Equal(t, want[0], got[2])

	got, err = cache.Embed(ctx, []string{"travel", "marketing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rent", "travel", "marketing"}, inner.embedded())
	assert.Equal(t, want[1], got[0])
	assert.Len(t, got[1], 16)
}

func TestCachedEmbedderPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")
	ctx := context.Background()

	first := &countingEmbedder{inner: NewHashEmbedder(16)}
	cache, err := NewCachedEmbedder(path, first, zap.NewNop())
	require.NoError(t, err)
	want, err := cache.Embed(ctx, []string{"legal fees"})
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	second := &countingEmbedder{inner: NewHashEmbedder(16)}
	cache, err = NewCachedEmbedder(path, second, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	got, err := cache.Embed(ctx, []string{"legal fees"})
	require.NoError(t, err)
	assert.Empty(t, second.calls)
	assert.Equal(t, want, got)
}

func TestCachedEmbedderKeysByModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")
	ctx := context.Background()

	small, err := NewCachedEmbedder(path, NewHashEmbedder(8), zap.NewNop())
	require.NoError(t, err)
	_, err = small.Embed(ctx, []string{"rent"})
	require.NoError(t, err)
	require.NoError(t, small.Close())

	large, err := NewCachedEmbedder(path, NewHashEmbedder(32), zap.NewNop())
	require.NoError(t, err)
	defer large.Close()
	got, err := large.Embed(ctx, []string{"rent"})
	require.NoError(t, err)
	assert.Len(t, got[0], 32)
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	boom := errors.New("upstream down")
	inner := &countingEmbedder{inner: NewHashEmbedder(8), err: boom}
	cache, err := NewCachedEmbedder(filepath.Join(t.TempDir(), "e.db"), inner, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, float32(math.Pi)}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAIEmbedderReordersByIndex(t *testing.T) {
	var gotModel string
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		assert.Equal(t, []string{"rent", "travel"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	})

	e := NewOpenAIEmbedder(client, "text-embedding-3-small", zap.NewNop())
	vecs, err := e.Embed(context.Background(), []string{"rent", "travel"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", gotModel)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIEmbedderError(t *testing.T) {
	client := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	})

	_, err := NewOpenAIEmbedder(client, "m", zap.NewNop()).Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(nil, "m", zap.NewNop())
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hash", Dimensions: 12}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = New(config.EmbeddingConfig{Provider: "openai", Model: "m"}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.EmbeddingConfig{Provider: "bert"}, nil, zap.NewNop())
	assert.Error(t, err)

	e, err = New(config.EmbeddingConfig{
		Provider:   "hash",
		Dimensions: 12,
		CachePath:  filepath.Join(t.TempDir(), "e.db"),
	}, nil, zap.NewNop())
	require.NoError(t, err)
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.Equal(t, "hash-12", cached.Model())
	require.NoError(t, cached.Close())
}
