// Package classify asks a text-classification oracle to pick one account
// code from a retrieved shortlist and validates the answer.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/model"
)

// ErrOracleUnavailable matches every OracleUnavailableError.
var ErrOracleUnavailable = errors.New("classification oracle unavailable")

// OracleUnavailableError reports that the oracle gave no answer at all.
type OracleUnavailableError struct {
	Attempts int
	Err      error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("classification oracle unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrOracleUnavailable) hold.
func (e *OracleUnavailableError) Is(target error) bool { return target == ErrOracleUnavailable }

// PromptError reports that the prompt could not be rendered. It is never
// retried.
type PromptError struct {
	Err error
}

func (e *PromptError) Error() string { return fmt.Sprintf("rendering prompt: %v", e.Err) }

func (e *PromptError) Unwrap() error { return e.Err }

// Options bound each classification.
type Options struct {
	Timeout    time.Duration // per attempt; zero means none
	MaxRetries int
	Backoff    time.Duration // multiplied by the attempt number
}

// Classifier adapts an Oracle into validated Outcomes.
type Classifier struct {
	oracle Oracle
	opts   Options
	logger *zap.Logger
}

// NewClassifier creates a Classifier around oracle.
func NewClassifier(oracle Oracle, opts Options, logger *zap.Logger) *Classifier {
	return &Classifier{oracle: oracle, opts: opts, logger: logger}
}

// Classify asks the oracle to choose among candidates for item. An empty
// candidate list is Unmatched without consulting the oracle. A prompt that
// cannot be rendered returns its *PromptError at once; other oracle failures
// return an *OracleUnavailableError. Any answer, valid or not, is an Outcome.
func (c *Classifier) Classify(ctx context.Context, item model.LineItem, candidates []model.COAEntry) (Outcome, error) {
	if len(candidates) == 0 {
		return Unmatched{}, nil
	}
	req := NewRequest(item, candidates)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*c.opts.Backoff); err != nil {
				break
			}
		}
		attempts++

		answer, err := c.complete(ctx, req)
		if err == nil {
			outcome := ParseAnswer(answer, candidates)
			if u, ok := outcome.(Unmatched); ok {
				c.logger.Warn("Oracle answer not among candidates",
					zap.String("description", item.Description),
					zap.String("answer", u.Raw))
			}
			return outcome, nil
		}

		var promptErr *PromptError
		if errors.As(err, &promptErr) {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("Oracle call failed",
			zap.String("description", item.Description),
			zap.Int("attempt", attempts),
			zap.Error(err))
		if !retryable(ctx, err) {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, &OracleUnavailableError{Attempts: attempts, Err: lastErr}
}

func (c *Classifier) complete(ctx context.Context, req Request) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	return c.oracle.Complete(ctx, req)
}

// retryable reports whether another attempt could succeed. Caller
// cancellation and client errors other than rate limiting are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
