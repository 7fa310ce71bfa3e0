package factory

import (
	"context"
	"fmt"

	"docassist-be/internal/config"
	"docassist-be/pkg/llm"
	"docassist-be/pkg/llm/gemini"
	"docassist-be/pkg/llm/ollama"
	"docassist-be/pkg/llm/openai"
)

// NewLLMProvider builds the configured backend and wraps it in the rate limiter when one is set.
func NewLLMProvider(ctx context.Context, cfg config.AIConfig) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)

	switch cfg.Provider {
	case config.AIProviderOllama:
		provider = ollama.NewOllamaProvider(
			cfg.OllamaBaseURL,
			cfg.OllamaModel,
			cfg.OllamaEmbeddingModel,
			cfg.OllamaEmbeddingDimensions,
			cfg.RequestTimeout,
		)
	case config.AIProviderOpenAI:
		provider = openai.NewOpenAIProvider(openai.Settings{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			Dimensions:     cfg.OpenAIEmbeddingDimensions,
			Timeout:        cfg.RequestTimeout,
		})
	case config.AIProviderAzureOpenAI:
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required for provider %s", cfg.Provider)
		}
		provider = openai.NewOpenAIProvider(openai.Settings{
			APIKey:          cfg.OpenAIAPIKey,
			Model:           cfg.OpenAIModel,
			EmbeddingModel:  cfg.OpenAIEmbeddingModel,
			Dimensions:      cfg.OpenAIEmbeddingDimensions,
			Timeout:         cfg.RequestTimeout,
			AzureEndpoint:   cfg.AzureEndpoint,
			AzureAPIVersion: cfg.AzureAPIVersion,
		})
	case config.AIProviderGemini:
		provider, err = gemini.NewGeminiProvider(
			ctx,
			cfg.GeminiAPIKey,
			cfg.GeminiModel,
			cfg.GeminiEmbeddingModel,
			cfg.GeminiEmbeddingDimensions,
		)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return llm.NewRateLimitedProvider(provider, cfg.RateLimitRPS, cfg.RateLimitBurst), nil
}
