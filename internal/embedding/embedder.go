// Package embedding provides the text embedding capability used to build the
// COA index and to embed retrieval queries.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/config"
)

// Embedder turns texts into fixed-length vectors. The returned slice has one
// vector per input text, in input order. Index and queries must be embedded
// by the same Embedder.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// New builds the configured embedder. When cfg.CachePath is set the embedder
// is wrapped in a CachedEmbedder, which the caller must Close.
func New(cfg config.EmbeddingConfig, client *openai.Client, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "hash":
		base = NewHashEmbedder(cfg.Dimensions)
	case "openai":
		if client == nil {
			return nil, fmt.Errorf("openai embedder requires a client")
		}
		base = NewOpenAIEmbedder(client, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CachePath == "" {
		return base, nil
	}
	cached, err := NewCachedEmbedder(cfg.CachePath, base, logger)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
