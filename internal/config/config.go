package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultFallbackURL = "https://learn.ineight.com/Document_Enhanced/Content/Categories/Home-Page.htm"

	AIProviderOllama      = "ollama"
	AIProviderOpenAI      = "openai"
	AIProviderAzureOpenAI = "azure-openai"
	AIProviderGemini      = "gemini"

	VectorStorePgVector = "pgvector"
	VectorStoreQdrant   = "qdrant"
	VectorStoreMemory   = "memory"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Ai          AIConfig
	VectorStore VectorStoreConfig
	Sync        SyncConfig
	Rag         RAGConfig
	Tracing     TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	// VectorConnection points at the Postgres instance holding document_embeddings.
	VectorConnection string
	// DMSConnection points at the document management system (read-only).
	DMSConnection string
}

type AuthConfig struct {
	JwtSecret   string
	JwtIssuer   string
	JwtAudience string
}

type AIConfig struct {
	Provider       string // "ollama", "openai", "azure-openai" or "gemini"
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	OllamaBaseURL             string
	OllamaModel               string
	OllamaEmbeddingModel      string
	OllamaEmbeddingDimensions int

	OpenAIAPIKey              string
	OpenAIBaseURL             string
	OpenAIModel               string
	OpenAIEmbeddingModel      string
	OpenAIEmbeddingDimensions int
	AzureEndpoint             string
	AzureAPIVersion           string

	GeminiAPIKey              string
	GeminiModel               string
	GeminiEmbeddingModel      string
	GeminiEmbeddingDimensions int
}

type VectorStoreConfig struct {
	Provider         string // "pgvector", "qdrant" or "memory"
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
}

type SyncConfig struct {
	Enabled      bool
	InitialDelay time.Duration
	Interval     time.Duration
	PurgeRemoved bool
	LockTTL      time.Duration
	TriggerTopic string
}

type RAGConfig struct {
	FallbackURL string
	TopK        int
	// RequestTimeout bounds one chat request, embed to generate.
	RequestTimeout time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			VectorConnection: getEnv("VECTOR_DB_CONNECTION_STRING", ""),
			DMSConnection:    getEnv("DMS_DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret:   getEnv("JWT_SECRET", ""),
			JwtIssuer:   getEnv("JWT_ISSUER", "InEightDMS"),
			JwtAudience: getEnv("JWT_AUDIENCE", "InEightChatbot"),
		},
		Ai: AIConfig{
			Provider:       strings.ToLower(getEnv("AI_PROVIDER", AIProviderOllama)),
			RequestTimeout: getEnvAsDuration("AI_REQUEST_TIMEOUT", 120*time.Second),
			RateLimitRPS:   getEnvAsFloat("AI_RATE_LIMIT_RPS", 0),
			RateLimitBurst: getEnvAsInt("AI_RATE_LIMIT_BURST", 1),

			OllamaBaseURL:             getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:               getEnv("OLLAMA_MODEL", "llama3"),
			OllamaEmbeddingModel:      getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaEmbeddingDimensions: getEnvAsInt("OLLAMA_EMBEDDING_DIMENSIONS", 768),

			OpenAIAPIKey:              getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:             getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
			OpenAIEmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			AzureEndpoint:             getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureAPIVersion:           getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),

			GeminiAPIKey:              getEnv("GOOGLE_GEMINI_API_KEY", ""),
			GeminiModel:               getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			GeminiEmbeddingModel:      getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			GeminiEmbeddingDimensions: getEnvAsInt("GEMINI_EMBEDDING_DIMENSIONS", 768),
		},
		VectorStore: VectorStoreConfig{
			Provider:         strings.ToLower(getEnv("VECTOR_STORE", VectorStorePgVector)),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       getEnvAsInt("QDRANT_PORT", 6334),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "document_embeddings"),
		},
		Sync: SyncConfig{
			Enabled:      getEnvAsBool("SYNC_ENABLED", true),
			InitialDelay: getEnvAsDuration("SYNC_INITIAL_DELAY", 10*time.Second),
			Interval:     getEnvAsDuration("SYNC_INTERVAL", 4*time.Hour),
			PurgeRemoved: getEnvAsBool("SYNC_PURGE_REMOVED", false),
			LockTTL:      getEnvAsDuration("SYNC_LOCK_TTL", 30*time.Minute),
			TriggerTopic: getEnv("SYNC_TRIGGER_TOPIC", "SYNC_REQUESTED"),
		},
		Rag: RAGConfig{
			FallbackURL: getEnv("RAG_FALLBACK_URL", DefaultFallbackURL),
			TopK:        getEnvAsInt("RAG_TOP_K", 10),

			RequestTimeout: getEnvAsDuration("RAG_REQUEST_TIMEOUT", 90*time.Second),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "docassist-be"),
		},
	}
}

// Validate reports configuration that would only fail later, at first use.
func (c *Config) Validate() error {
	switch c.Ai.Provider {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAzureOpenAI, AIProviderGemini:
	default:
		return fmt.Errorf("unknown AI provider: %q", c.Ai.Provider)
	}

	switch c.VectorStore.Provider {
	case VectorStorePgVector:
		if c.Database.VectorConnection == "" {
			return fmt.Errorf("VECTOR_DB_CONNECTION_STRING is required for the %s vector store", VectorStorePgVector)
		}
	case VectorStoreQdrant, VectorStoreMemory:
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorStore.Provider)
	}

	if c.Sync.Enabled && c.Database.DMSConnection == "" {
		return fmt.Errorf("DMS_DB_CONNECTION_STRING is required when sync is enabled")
	}
	if c.Auth.JwtSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.Sync.Interval)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
