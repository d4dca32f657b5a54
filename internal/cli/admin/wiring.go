package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/coursechat/internal/config"
	"github.com/cloo-solutions/coursechat/internal/database"
	"github.com/cloo-solutions/coursechat/internal/ollama"
	"github.com/cloo-solutions/coursechat/internal/openai"
	"github.com/cloo-solutions/coursechat/internal/repository"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/cloo-solutions/coursechat/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the long-lived pieces shared by the daemon's commands.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	courses    *repository.CourseRepository
	chunks     *repository.CourseChunkRepository
	search     *repository.SearchRepository
	ingestJobs *repository.IngestJobRepository

	embedding service.EmbeddingClient
	ingestion *service.IngestionService
}

func getDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		ConnectTimeout: cfg.DatabaseConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// newEmbeddingClient builds the embedder for the configured provider.
func newEmbeddingClient(cfg *config.Config) (service.EmbeddingClient, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		embedder, err := ollama.NewEmbedder(ollama.Config{
			Host:       cfg.OllamaHost,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
		}
		return embedder, nil
	default:
		if !cfg.HasOpenAI() {
			return nil, fmt.Errorf("COURSECHAT_OPENAI_API_KEY is required for openai embeddings")
		}
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		}), nil
	}
}

// newDocumentStore returns the S3 document store, or nil when S3 is not configured
// and uploads are kept inline.
func newDocumentStore(ctx context.Context, cfg *config.Config) (service.DocumentStore, error) {
	if !cfg.HasS3() {
		return nil, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return s3Client, nil
}

// newApp connects to the database and builds the ingestion pipeline. The caller closes
// the pool.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedding, err := newEmbeddingClient(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		pool:       pool,
		courses:    repository.NewCourseRepository(pool),
		chunks:     repository.NewCourseChunkRepository(pool),
		search:     repository.NewSearchRepository(pool),
		ingestJobs: repository.NewIngestJobRepository(pool),
		embedding:  embedding,
	}

	a.ingestion, err = service.NewIngestionService(embedding, a.courses, repository.NewTxRunner(pool), service.IngestionConfig{
		Chunk: service.ChunkConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
		Workers: cfg.IngestWorkers,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return a, nil
}
