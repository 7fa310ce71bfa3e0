package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGeneration wraps every completion failure: unreachable backend, non-success status or a malformed body.
	ErrGeneration = errors.New("llm: generation failed")
	// ErrEmbedding wraps every embedding failure.
	ErrEmbedding = errors.New("llm: embedding failed")
	// ErrDimensionMismatch is an ErrEmbedding raised when a backend returns a vector of the wrong length.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrEmbedding)
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultOptions mirrors the sampling the document assistant has always used.
func DefaultOptions() *Options {
	return &Options{
		Temperature: 0.7,
		TopP:        0.9,
	}
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithTopP(topP float64) Option {
	return func(o *Options) {
		o.TopP = topP
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

// Apply folds opts over the defaults.
func Apply(opts ...Option) *Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Provider is the contract for any text-generation + embedding backend.
// Implementations must be safe for concurrent use.
type Provider interface {
	// GenerateCompletion answers userPrompt under systemPrompt.
	GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GenerateEmbedding returns a vector of exactly EmbeddingDimensions() values.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Name is used for logging and configuration validation.
	Name() string

	EmbeddingDimensions() int
}

// CheckDimensions fails fast on a vector whose length differs from the declared dimensionality.
func CheckDimensions(provider string, want int, vec []float32) error {
	if len(vec) != want {
		return fmt.Errorf("%w: %s returned %d values, expected %d", ErrDimensionMismatch, provider, len(vec), want)
	}
	return nil
}
