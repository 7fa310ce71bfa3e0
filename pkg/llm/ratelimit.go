package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to an inner provider with a token bucket.
// Waiting honors ctx, so a cancelled request gives up its place in line.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

var _ Provider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider returns inner unchanged when rps <= 0.
func NewRateLimitedProvider(inner Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.GenerateCompletion(ctx, systemPrompt, userPrompt)
}

func (r *RateLimitedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.GenerateEmbedding(ctx, text)
}

func (r *RateLimitedProvider) Name() string {
	return r.inner.Name()
}

func (r *RateLimitedProvider) EmbeddingDimensions() int {
	return r.inner.EmbeddingDimensions()
}
