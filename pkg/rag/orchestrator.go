package rag

import (
	"context"
	"time"

	"docassist-be/internal/pkg/logger"
	"docassist-be/pkg/llm"
	"docassist-be/pkg/vectorstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "RAG"

type ChatQuery struct {
	Query  string
	UserID int64
	// ProjectID and SessionID are accepted for future scoping; they are logged only.
	ProjectID *int64
	SessionID string
}

type ChatLink struct {
	Type  string `json:"type"`
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type ChatAnswer struct {
	Answer         string     `json:"answer"`
	Links          []ChatLink `json:"links"`
	Confidence     float64    `json:"confidence"`
	FallbackKBLink *string    `json:"fallbackKBLink"`
}

// Orchestrator answers one question: embed, search, generate. It holds no per-call
// state and is safe for concurrent use.
type Orchestrator struct {
	llm         llm.Provider
	store       vectorstore.Provider
	logger      logger.ILogger
	tracer      trace.Tracer
	fallbackURL string
	topK        int
}

type Option func(*Orchestrator)

func WithFallbackURL(url string) Option {
	return func(o *Orchestrator) {
		if url != "" {
			o.fallbackURL = url
		}
	}
}

func WithTopK(topK int) Option {
	return func(o *Orchestrator) {
		if topK > 0 {
			o.topK = topK
		}
	}
}

func NewOrchestrator(provider llm.Provider, store vectorstore.Provider, log logger.ILogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:         provider,
		store:       store,
		logger:      log,
		tracer:      otel.Tracer("docassist-be/rag"),
		fallbackURL: DefaultFallbackURL,
		topK:        DefaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessQuery never fails: provider errors become a degraded answer.
func (o *Orchestrator) ProcessQuery(ctx context.Context, q ChatQuery) ChatAnswer {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "rag.process_query", trace.WithAttributes(
		attribute.Int64("user.id", q.UserID),
		attribute.String("session.id", q.SessionID),
	))
	defer span.End()

	details := map[string]interface{}{
		"user_id":    q.UserID,
		"session_id": q.SessionID,
	}
	if q.ProjectID != nil {
		details["project_id"] = *q.ProjectID
	}
	o.logger.Info(logModule, "Processing query", details)

	embedding, err := o.embed(ctx, q.Query)
	if err != nil {
		return o.fail(span, "Embedding failed", q, err)
	}

	hits, err := o.search(ctx, embedding, q.UserID)
	if err != nil {
		return o.fail(span, "Search failed", q, err)
	}

	if len(hits) == 0 {
		o.logger.Info(logModule, "No accessible documents matched", map[string]interface{}{
			"user_id": q.UserID,
		})
		span.SetAttributes(attribute.Int("rag.hits", 0))
		return ChatAnswer{
			Answer:         NoMatchAnswer,
			Links:          []ChatLink{},
			Confidence:     0,
			FallbackKBLink: o.fallback(),
		}
	}

	answer, err := o.generate(ctx, BuildUserPrompt(BuildContext(hits), q.Query))
	if err != nil {
		return o.fail(span, "Generation failed", q, err)
	}

	confidence := Confidence(hits)
	result := ChatAnswer{
		Answer:     answer,
		Links:      BuildLinks(hits),
		Confidence: confidence,
	}
	if confidence < ConfidenceThreshold {
		result.FallbackKBLink = o.fallback()
	}

	span.SetAttributes(
		attribute.Int("rag.hits", len(hits)),
		attribute.Float64("rag.confidence", confidence),
	)
	o.logger.Info(logModule, "Query answered", map[string]interface{}{
		"user_id":     q.UserID,
		"hits":        len(hits),
		"confidence":  confidence,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

func (o *Orchestrator) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, span := o.tracer.Start(ctx, "rag.embed", trace.WithAttributes(
		attribute.String("llm.provider", o.llm.Name()),
	))
	defer span.End()

	vec, err := o.llm.GenerateEmbedding(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return vec, err
}

func (o *Orchestrator) search(ctx context.Context, embedding []float32, userID int64) ([]vectorstore.SearchHit, error) {
	ctx, span := o.tracer.Start(ctx, "rag.search", trace.WithAttributes(
		attribute.String("vectorstore.provider", o.store.Name()),
		attribute.Int("rag.top_k", o.topK),
	))
	defer span.End()

	hits, err := o.store.Search(ctx, embedding, userID, o.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return hits, err
}

func (o *Orchestrator) generate(ctx context.Context, userPrompt string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "rag.generate", trace.WithAttributes(
		attribute.String("llm.provider", o.llm.Name()),
	))
	defer span.End()

	out, err := o.llm.GenerateCompletion(ctx, SystemPrompt, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (o *Orchestrator) fail(span trace.Span, stage string, q ChatQuery, err error) ChatAnswer {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	o.logger.Error(logModule, stage, map[string]interface{}{
		"user_id": q.UserID,
		"error":   err.Error(),
	})
	return ChatAnswer{
		Answer:         ErrorAnswer,
		Links:          []ChatLink{},
		Confidence:     0,
		FallbackKBLink: o.fallback(),
	}
}

func (o *Orchestrator) fallback() *string {
	url := o.fallbackURL
	return &url
}
