package openai

import (
	"context"
	"fmt"
	"time"

	"docassist-be/pkg/llm"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-ada-002"
	// ada-002 dimensions
	DefaultDimensions = 1536
)

// Settings carries everything needed to reach either api.openai.com (or a compatible
// gateway) or an Azure OpenAI deployment.
type Settings struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration

	// AzureEndpoint switches the client to Azure. Model and EmbeddingModel are then deployment names.
	AzureEndpoint   string
	AzureAPIVersion string
}

type OpenAIProvider struct {
	client         openai.Client
	name           string
	model          string
	embeddingModel string
	dimensions     int
	options        *llm.Options
}

var _ llm.Provider = &OpenAIProvider{}

func NewOpenAIProvider(s Settings, opts ...llm.Option) *OpenAIProvider {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = DefaultEmbeddingModel
	}
	if s.Dimensions <= 0 {
		s.Dimensions = DefaultDimensions
	}
	if s.Timeout <= 0 {
		s.Timeout = 120 * time.Second
	}

	// Retries belong to the caller; the sync loop moves on to the next document instead.
	reqOpts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(s.Timeout),
	}

	name := "OpenAI"
	if s.AzureEndpoint != "" {
		name = "AzureOpenAI"
		reqOpts = append(reqOpts,
			azure.WithEndpoint(s.AzureEndpoint, s.AzureAPIVersion),
			azure.WithAPIKey(s.APIKey),
		)
	} else {
		reqOpts = append(reqOpts, option.WithAPIKey(s.APIKey))
		if s.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(s.BaseURL))
		}
	}

	return &OpenAIProvider{
		client:         openai.NewClient(reqOpts...),
		name:           name,
		model:          s.Model,
		embeddingModel: s.EmbeddingModel,
		dimensions:     s.Dimensions,
		options:        llm.Apply(opts...),
	}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) EmbeddingDimensions() int {
	return p.dimensions
}

func (p *OpenAIProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(p.options.Temperature),
		TopP:        openai.Float(p.options.TopP),
	}
	if p.options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.options.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %s chat completion: %v", llm.ErrGeneration, p.name, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", llm.ErrGeneration, p.name)
	}

	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s embeddings: %v", llm.ErrEmbedding, p.name, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s returned no embedding", llm.ErrEmbedding, p.name)
	}

	values := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		values[i] = float32(v)
	}

	if err := llm.CheckDimensions(p.name, p.dimensions, values); err != nil {
		return nil, err
	}
	return values, nil
}
