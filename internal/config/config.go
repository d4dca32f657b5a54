package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL            string        `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns       int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseConnectTimeout time.Duration `envconfig:"DATABASE_CONNECT_TIMEOUT" default:"30s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"coursechat-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	ChatModel     string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	MaxTokens     int    `envconfig:"MAX_TOKENS" default:"800"`

	// EmbeddingProvider selects who computes embeddings: openai or ollama.
	EmbeddingProvider   string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	// EmbeddingDimensions of 0 means the provider's default model size.
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS"`
	OllamaHost          string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`

	ChunkSize         int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap      int `envconfig:"CHUNK_OVERLAP" default:"100"`
	MaxResults        int `envconfig:"MAX_RESULTS" default:"5"`
	MaxHistory        int `envconfig:"MAX_HISTORY" default:"2"`
	MaxToolIterations int `envconfig:"MAX_TOOL_ITERATIONS" default:"10"`
	IngestWorkers     int `envconfig:"INGEST_WORKERS" default:"4"`

	// SessionTTL drops chat sessions idle for longer; MaxSessions caps how many are kept.
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	MaxSessions int           `envconfig:"MAX_SESSIONS" default:"10000"`

	// LogSearches records every course search in the search_logs table.
	LogSearches bool `envconfig:"LOG_SEARCHES" default:"true"`

	// DocsDir is ingested on startup; empty disables startup and folder ingestion.
	DocsDir     string `envconfig:"DOCS_DIR" default:"docs"`
	FrontendDir string `envconfig:"FRONTEND_DIR"`

	// AdminToken guards upload and ingest endpoints; empty disables them.
	AdminToken   string `envconfig:"ADMIN_TOKEN"`
	MaxBodyBytes int64  `envconfig:"MAX_BODY_BYTES" default:"5242880"`
	// MaxQueryBytes bounds the body of chat requests.
	MaxQueryBytes int64 `envconfig:"MAX_QUERY_BYTES" default:"65536"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("COURSECHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings that would only fail later, mid-request or mid-ingest.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid config: CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("invalid config: MAX_RESULTS must be positive, got %d", c.MaxResults)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("invalid config: MAX_HISTORY cannot be negative, got %d", c.MaxHistory)
	}
	if c.SessionTTL < 0 || c.MaxSessions < 0 {
		return fmt.Errorf("invalid config: SESSION_TTL and MAX_SESSIONS cannot be negative")
	}
	if c.MaxToolIterations <= 0 {
		return fmt.Errorf("invalid config: MAX_TOOL_ITERATIONS must be positive, got %d", c.MaxToolIterations)
	}
	if c.MaxQueryBytes <= 0 || c.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid config: MAX_BODY_BYTES and MAX_QUERY_BYTES must be positive")
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("invalid config: EMBEDDING_DIMENSIONS cannot be negative, got %d", c.EmbeddingDimensions)
	}

	c.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.EmbeddingProvider))
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("invalid config: EMBEDDING_PROVIDER must be %q or %q, got %q",
			ProviderOpenAI, ProviderOllama, c.EmbeddingProvider)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasEmbeddings reports whether the configured embedding provider can be reached.
// Ollama needs no credentials.
func (c *Config) HasEmbeddings() bool {
	if c.EmbeddingProvider == ProviderOllama {
		return c.OllamaHost != ""
	}
	return c.HasOpenAI()
}
