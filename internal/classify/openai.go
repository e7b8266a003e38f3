package classify

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/config"
)

// OpenAIOracle answers classification requests through the chat completions API.
type OpenAIOracle struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	prompts     *PromptConfig
	logger      *zap.Logger
}

// NewOpenAIOracle creates an oracle. A nil prompts uses the built-in prompts.
// A zero temperature is sent as math.SmallestNonzeroFloat32; the client
// drops zero values from the request.
func NewOpenAIOracle(client *openai.Client, cfg config.OracleConfig, prompts *PromptConfig, logger *zap.Logger) *OpenAIOracle {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	return &OpenAIOracle{
		client:      client,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		prompts:     prompts,
		logger:      logger,
	}
}

// Complete renders the prompts and returns the first choice's content.
func (o *OpenAIOracle) Complete(ctx context.Context, req Request) (string, error) {
	user, err := o.prompts.RenderUser(req)
	if err != nil {
		return "", &PromptError{Err: err}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompts.Classification.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	answer := resp.Choices[0].Message.Content
	o.logger.Debug("Oracle answered",
		zap.String("model", o.model),
		zap.String("description", req.Description),
		zap.String("answer", answer),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return answer, nil
}
