package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEmbedder embeds texts through the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for the given model name.
func NewOpenAIEmbedder(client *openai.Client, model string, logger *zap.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model, logger: logger}
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed sends all texts in one request and returns the vectors ordered by the
// response index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		e.logger.Error("Embedding request failed",
			zap.String("model", e.model),
			zap.Int("texts", len(texts)),
			zap.Error(err))
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("creating embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("creating embeddings: unexpected index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}

	e.logger.Debug("Embedded texts",
		zap.String("model", e.model),
		zap.Int("texts", len(texts)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens))
	return out, nil
}
