package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"docassist-be/pkg/llm"
)

const (
	DefaultBaseURL        = "http://localhost:11434"
	DefaultModel          = "llama3"
	DefaultEmbeddingModel = "nomic-embed-text"
	// nomic-embed-text actual dimensions
	DefaultDimensions = 768
)

type OllamaProvider struct {
	BaseURL        string
	ModelName      string
	EmbeddingModel string
	Dimensions     int
	Client         *http.Client
	options        *llm.Options
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName, embeddingModel string, dimensions int, timeout time.Duration, opts ...llm.Option) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		BaseURL:        baseURL,
		ModelName:      modelName,
		EmbeddingModel: embeddingModel,
		Dimensions:     dimensions,
		Client: &http.Client{
			Timeout: timeout,
		},
		options: llm.Apply(opts...),
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"` // Ollama returns float64 usually
}

// --- Interface Implementation ---

func (o *OllamaProvider) Name() string {
	return "Ollama"
}

func (o *OllamaProvider) EmbeddingDimensions() int {
	return o.Dimensions
}

func (o *OllamaProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		ollamaMessages[i] = ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	reqPayload := ollamaChatRequest{
		Model:    o.ModelName,
		Messages: ollamaMessages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: o.options.Temperature,
			TopP:        o.options.TopP,
			NumPredict:  o.options.MaxTokens,
		},
	}

	var ollamaResp ollamaChatResponse
	if err := o.post(ctx, "/api/chat", reqPayload, &ollamaResp); err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrGeneration, err)
	}
	if !ollamaResp.Done {
		return "", fmt.Errorf("%w: ollama returned an unfinished response", llm.ErrGeneration)
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody := ollamaEmbeddingRequest{
		Model:  o.EmbeddingModel,
		Prompt: text,
	}

	var ollamaResp ollamaEmbeddingResponse
	if err := o.post(ctx, "/api/embeddings", reqBody, &ollamaResp); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrEmbedding, err)
	}

	// Convert float64 to float32 for compatibility with our system
	values := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		values[i] = float32(v)
	}

	if err := llm.CheckDimensions(o.Name(), o.Dimensions, values); err != nil {
		return nil, err
	}

	return normalizeVector(values), nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload, out interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// normalizeVector scales a vector to unit length so pgvector's cosine and inner-product
// operators agree. A zero vector is returned as is.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
