package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const defaultIngestWorkers = 4

// CourseRepositoryInterface defines the repository interface for courses and lessons
type CourseRepositoryInterface interface {
	Upsert(ctx context.Context, course *domain.Course, titleEmbedding []float32) error
	GetByTitle(ctx context.Context, title string) (*domain.Course, error)
	ListTitles(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context) error
}

// CourseChunkRepositoryInterface defines the repository interface for course chunks
type CourseChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, courseTitle string, chunks []domain.CourseChunk) error
}

// IngestResult describes one ingested course.
type IngestResult struct {
	CourseTitle string `json:"course_title"`
	Lessons     int    `json:"lessons"`
	Chunks      int    `json:"chunks"`
}

// IngestFailure records a file that could not be ingested.
type IngestFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// IngestReport summarizes a folder ingestion.
type IngestReport struct {
	Courses []IngestResult  `json:"courses"`
	Skipped []string        `json:"skipped"`
	Failed  []IngestFailure `json:"failed"`
}

// TotalChunks returns the number of chunks stored across all ingested courses.
func (r *IngestReport) TotalChunks() int {
	total := 0
	for _, c := range r.Courses {
		total += c.Chunks
	}
	return total
}

// IngestionConfig controls the ingestion pipeline.
type IngestionConfig struct {
	Chunk   ChunkConfig
	Workers int
}

// IngestionService parses, chunks, embeds and stores course documents.
type IngestionService struct {
	embedding EmbeddingClient
	courses   CourseRepositoryInterface
	tx        TxRunner
	cfg       IngestionConfig
}

// NewIngestionService creates a new IngestionService instance. The chunk configuration
// is validated here so a bad configuration fails at startup.
func NewIngestionService(
	embedding EmbeddingClient,
	courses CourseRepositoryInterface,
	tx TxRunner,
	cfg IngestionConfig,
) (*IngestionService, error) {
	if err := cfg.Chunk.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultIngestWorkers
	}
	return &IngestionService{
		embedding: embedding,
		courses:   courses,
		tx:        tx,
		cfg:       cfg,
	}, nil
}

// IngestDocument parses, chunks and embeds one course document and replaces whatever
// was stored for the course before.
func (s *IngestionService) IngestDocument(ctx context.Context, name, body string) (*IngestResult, error) {
	doc, err := ParseCourseDocument(name, body)
	if err != nil {
		return nil, err
	}
	return s.ingestParsed(ctx, doc)
}

func (s *IngestionService) ingestParsed(ctx context.Context, doc *ParsedDocument) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		CourseTitle: doc.Course.Title,
		Operation:   "ingest",
	})
	defer span.End()

	chunks, err := ChunkAll(doc.Sources, s.cfg.Chunk)
	if err != nil {
		return nil, err
	}

	titleEmbedding, err := s.embedding.GenerateEmbedding(ctx, doc.Course.Title)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to generate title embedding: %w", err)
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].CreatedAt = now
	}

	course := doc.Course
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Courses().Upsert(ctx, course, titleEmbedding); err != nil {
			return fmt.Errorf("failed to store course: %w", err)
		}
		if err := repos.Chunks().ReplaceChunks(ctx, course.Title, chunks); err != nil {
			return fmt.Errorf("failed to store course chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	span.Record("chunks", len(chunks))
	log.Printf("ingestion: stored course %q (%d lessons, %d chunks)", course.Title, len(course.Lessons), len(chunks))
	return &IngestResult{
		CourseTitle: course.Title,
		Lessons:     len(course.Lessons),
		Chunks:      len(chunks),
	}, nil
}

// embedChunks fills in every chunk's embedding, in one batched call when the client
// supports it.
func (s *IngestionService) embedChunks(ctx context.Context, chunks []domain.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if batch, ok := s.embedding.(BatchEmbeddingClient); ok {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Content()
		}
		vectors, err := batch.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate chunk embeddings: %w", err)
		}
		if len(vectors) != len(chunks) {
			return fmt.Errorf("failed to generate chunk embeddings: got %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		return nil
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		embedding, err := s.embedding.GenerateEmbedding(ctx, chunks[i].Content())
		if err != nil {
			return fmt.Errorf("failed to generate chunk embedding for %s: %w", chunks[i].ID(), err)
		}
		chunks[i].Embedding = embedding
	}
	return nil
}

// IngestFolder ingests every supported document in dir in parallel. Courses that are
// already stored are skipped unless clearExisting is set, in which case the whole catalog
// is removed first. A file that fails is recorded in the report and does not stop the
// others.
func (s *IngestionService) IngestFolder(ctx context.Context, dir string, clearExisting bool) (*IngestReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedDocument(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	existing := make(map[string]struct{})
	if clearExisting {
		if err := s.courses.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear courses: %w", err)
		}
		log.Printf("ingestion: cleared existing courses")
	} else {
		titles, err := s.courses.ListTitles(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list courses: %w", err)
		}
		for _, t := range titles {
			existing[t] = struct{}{}
		}
	}

	report := &IngestReport{
		Courses: []IngestResult{},
		Skipped: []string{},
		Failed:  []IngestFailure{},
	}
	var mu sync.Mutex
	claimed := make(map[string]struct{})

	fail := func(file string, err error) {
		mu.Lock()
		defer mu.Unlock()
		log.Printf("ingestion: failed to ingest %s: %v", file, err)
		report.Failed = append(report.Failed, IngestFailure{File: filepath.Base(file), Error: err.Error()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, file := range files {
		g.Go(func() error {
			body, err := os.ReadFile(file)
			if err != nil {
				fail(file, err)
				return nil
			}

			doc, err := ParseCourseDocument(file, string(body))
			if err != nil {
				fail(file, err)
				return nil
			}

			title := doc.Course.Title
			mu.Lock()
			_, stored := existing[title]
			_, taken := claimed[title]
			if !stored && !taken {
				claimed[title] = struct{}{}
			}
			mu.Unlock()
			if stored || taken {
				mu.Lock()
				report.Skipped = append(report.Skipped, title)
				mu.Unlock()
				return nil
			}

			result, err := s.ingestParsed(gctx, doc)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				fail(file, err)
				return nil
			}

			mu.Lock()
			report.Courses = append(report.Courses, *result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Courses, func(i, j int) bool { return report.Courses[i].CourseTitle < report.Courses[j].CourseTitle })
	sort.Strings(report.Skipped)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].File < report.Failed[j].File })

	log.Printf("ingestion: folder %s: %d courses, %d chunks, %d skipped, %d failed",
		dir, len(report.Courses), report.TotalChunks(), len(report.Skipped), len(report.Failed))
	return report, nil
}
