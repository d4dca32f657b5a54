package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/coursechat/internal/api/handlers"
	"github.com/cloo-solutions/coursechat/internal/config"
	"github.com/cloo-solutions/coursechat/internal/database"
	"github.com/cloo-solutions/coursechat/internal/jobs"
	"github.com/cloo-solutions/coursechat/internal/openai"
	"github.com/cloo-solutions/coursechat/internal/repository"
	"github.com/cloo-solutions/coursechat/internal/server"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
	"github.com/spf13/cobra"
)

const ingestPollInterval = 5 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the course chat API server. On startup the docs folder is ingested
(courses already stored are skipped) and uploaded documents are ingested in the background.`,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides COURSECHAT_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-startup-ingest", false, "Skip ingesting the docs folder on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsSource, "Migration source URL")

	return cmd
}

func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defer initTelemetry()()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, source); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	store, err := newDocumentStore(ctx, cfg)
	if err != nil {
		return err
	}

	chat := openai.NewChatClient(openai.ChatConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.ChatModel,
		MaxTokens: cfg.MaxTokens,
	})

	searchSvc := service.NewSearchService(a.embedding, a.search, cfg.MaxResults)
	if cfg.LogSearches {
		searchSvc.WithSearchLog(repository.NewSearchLogRepository(a.pool))
	}
	tools := service.NewToolManager(searchSvc, a.courses)
	generator := service.NewGenerator(chat, tools, cfg.MaxToolIterations)
	sessions := service.NewSessionManagerWithLimits(cfg.MaxHistory, service.SessionLimits{
		IdleTTL:     cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})
	ragSvc := service.NewRAGService(generator, sessions, a.courses, searchSvc)
	documentSvc := service.NewDocumentService(a.ingestJobs, store, a.ingestion)
	authSvc := service.NewAuthService(cfg.AdminToken)
	if !authSvc.Enabled() {
		log.Println("COURSECHAT_ADMIN_TOKEN not set: upload and ingest endpoints are disabled")
	}

	ingestWorker := jobs.NewWorker("ingest", jobs.NewIngestWorker(a.ingestJobs, documentSvc), ingestPollInterval)
	go ingestWorker.Start(ctx)

	noStartupIngest, _ := cmd.Flags().GetBool("no-startup-ingest")
	if !noStartupIngest && cfg.DocsDir != "" {
		go ingestDocsOnStartup(ctx, a.ingestion, cfg.DocsDir)
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   authSvc,
		QueryHandler:    handlers.NewQueryHandler(ragSvc),
		CourseHandler:   handlers.NewCourseHandler(ragSvc),
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		IngestHandler:   handlers.NewIngestHandler(a.ingestion, cfg.DocsDir),
		FrontendDir:     cfg.FrontendDir,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		MaxQueryBytes:   cfg.MaxQueryBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	ingestWorker.Stop()

	log.Println("server exited")
	return nil
}

func ingestDocsOnStartup(ctx context.Context, ingestion *service.IngestionService, dir string) {
	if _, err := os.Stat(dir); err != nil {
		log.Printf("startup ingest: skipping %s: %v", dir, err)
		return
	}

	report, err := ingestion.IngestFolder(ctx, dir, false)
	if err != nil {
		log.Printf("startup ingest: %v", err)
		return
	}
	log.Printf("startup ingest: %d courses added (%d chunks), %d skipped, %d failed",
		len(report.Courses), report.TotalChunks(), len(report.Skipped), len(report.Failed))
}
