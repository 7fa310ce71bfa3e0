package gemini

import (
	"context"
	"fmt"
	"strings"

	"docassist-be/pkg/llm"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel          = "gemini-1.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultDimensions     = 768
)

type GeminiProvider struct {
	client         *genai.Client
	model          string
	embeddingModel string
	dimensions     int
	options        *llm.Options
}

var _ llm.Provider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, model, embeddingModel string, dimensions int, opts ...llm.Option) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		dimensions:     dimensions,
		options:        llm.Apply(opts...),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "Gemini"
}

func (p *GeminiProvider) EmbeddingDimensions() int {
	return p.dimensions
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// GenerativeModel carries mutable settings, so each call gets its own.
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.SetTemperature(float32(p.options.Temperature))
	model.SetTopP(float32(p.options.TopP))
	if p.options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.options.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate content: %v", llm.ErrGeneration, err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned no text", llm.ErrGeneration)
	}
	return sb.String(), nil
}

func (p *GeminiProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := p.client.EmbeddingModel(p.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed content: %v", llm.ErrEmbedding, err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("%w: gemini returned no embedding", llm.ErrEmbedding)
	}

	if err := llm.CheckDimensions(p.Name(), p.dimensions, res.Embedding.Values); err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}
