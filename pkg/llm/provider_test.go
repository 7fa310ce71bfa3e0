package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
}

func (c *countingProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func (c *countingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{1, 0}, nil
}

func (c *countingProvider) Name() string            { return "counting" }
func (c *countingProvider) EmbeddingDimensions() int { return 2 }

func TestCheckDimensions(t *testing.T) {
	require.NoError(t, CheckDimensions("test", 3, []float32{1, 2, 3}))

	err := CheckDimensions("test", 3, []float32{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.True(t, errors.Is(err, ErrEmbedding), "a mismatch is an embedding error")
	assert.False(t, errors.Is(err, ErrGeneration))
	assert.Contains(t, err.Error(), "returned 2 values, expected 3")
}

func TestApplyOptions(t *testing.T) {
	o := Apply()
	assert.Equal(t, 0.7, o.Temperature)
	assert.Equal(t, 0.9, o.TopP)

	o = Apply(WithTemperature(0.1), WithMaxTokens(256), WithTopP(1))
	assert.Equal(t, 0.1, o.Temperature)
	assert.Equal(t, 1.0, o.TopP)
	assert.Equal(t, 256, o.MaxTokens)
}

func TestRateLimitedProviderDisabled(t *testing.T) {
	inner := &countingProvider{}
	assert.Same(t, Provider(inner), NewRateLimitedProvider(inner, 0, 5))
}

func TestRateLimitedProviderDelegates(t *testing.T) {
	inner := &countingProvider{}
	p := NewRateLimitedProvider(inner, 1000, 10)

	out, err := p.GenerateCompletion(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	vec, err := p.GenerateEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 2)

	assert.Equal(t, "counting", p.Name())
	assert.Equal(t, 2, p.EmbeddingDimensions())
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRateLimitedProviderHonorsCancellation(t *testing.T) {
	inner := &countingProvider{}
	// One token per minute: the first call drains the bucket, the second must wait.
	p := NewRateLimitedProvider(inner, 1.0/60, 1)

	_, err := p.GenerateEmbedding(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.GenerateEmbedding(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
