package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// CompleteFunc issues one chat completion. maxTokens 0 means the
// provider default. main wires this to the go-kit llm client; tests
// inject fakes with deterministic timing.
type CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// RateLimitedLLM throttles and retries calls to the generative model.
// A limiter with one token per minInterval serializes concurrent
// callers at the Wait point; failed calls back off base × 2^attempt.
// One instance is constructed at startup and threaded through,
// never held as a package-level singleton.
type RateLimitedLLM struct {
	complete   CompleteFunc
	limiter    *rate.Limiter
	retryLimit int
	baseWait   time.Duration
}

// LLMOption customizes a RateLimitedLLM.
type LLMOption func(*RateLimitedLLM)

// WithRetryLimit overrides the retry ceiling (default 5).
func WithRetryLimit(n int) LLMOption {
	return func(r *RateLimitedLLM) { r.retryLimit = n }
}

// WithBaseWait overrides the backoff base (default 5s).
func WithBaseWait(d time.Duration) LLMOption {
	return func(r *RateLimitedLLM) { r.baseWait = d }
}

// NewRateLimitedLLM wraps complete with a minimum inter-call spacing.
func NewRateLimitedLLM(complete CompleteFunc, minInterval time.Duration, opts ...LLMOption) *RateLimitedLLM {
	r := &RateLimitedLLM{
		complete:   complete,
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		retryLimit: 5,
		baseWait:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke sends a prompt to the model, waiting out the inter-call spacing
// first. On failure it sleeps base × 2^attempt and retries, up to the
// retry ceiling; rate-limit errors and other errors back off the same
// way but log at different levels.
func (r *RateLimitedLLM) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retryLimit; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}

		IncrLLMCalls()
		resp, err := r.complete(ctx, prompt, maxTokens)
		if err == nil {
			return resp, nil
		}
		IncrLLMErrors()
		lastErr = err

		wait := r.baseWait * (1 << attempt)
		if IsRateLimit(err) {
			slog.Warn("llm rate limit hit",
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt),
				slog.Int("limit", r.retryLimit))
		} else {
			slog.Error("llm call failed",
				slog.Any("error", err),
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt),
				slog.Int("limit", r.retryLimit))
		}

		if attempt == r.retryLimit {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("llm: no response after %d attempts: %w", r.retryLimit, lastErr)
}
