package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/pagination"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
	"github.com/google/uuid"
)

// IngestJobRepositoryInterface defines the repository interface for ingest job persistence
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	List(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.IngestJob], error)
}

// DocumentStore keeps uploaded document bodies outside the database
type DocumentStore interface {
	PutDocument(ctx context.Context, key string, body []byte, contentType string) error
	GetDocument(ctx context.Context, key string) ([]byte, error)
	DeleteDocument(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// DocumentIngester ingests one parsed-on-demand course document
type DocumentIngester interface {
	IngestDocument(ctx context.Context, name, body string) (*IngestResult, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// SubmitDocumentInput is an uploaded course document.
type SubmitDocumentInput struct {
	Name        string
	ContentType string
	Body        []byte
}

// DocumentService accepts uploaded course documents and ingests them asynchronously
type DocumentService struct {
	jobs     IngestJobRepositoryInterface
	store    DocumentStore
	ingester DocumentIngester
	uuidGen  UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance. When store is nil,
// document bodies are kept inline on the job row.
func NewDocumentService(jobs IngestJobRepositoryInterface, store DocumentStore, ingester DocumentIngester) *DocumentService {
	return NewDocumentServiceWithUUIDGen(jobs, store, ingester, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	jobs IngestJobRepositoryInterface,
	store DocumentStore,
	ingester DocumentIngester,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		jobs:     jobs,
		store:    store,
		ingester: ingester,
		uuidGen:  uuidGen,
	}
}

// Submit stores the document and queues an ingest job for it
func (s *DocumentService) Submit(ctx context.Context, input SubmitDocumentInput) (*domain.IngestJob, error) {
	name := filepath.Base(strings.TrimSpace(input.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: document name", domain.ErrMissingRequiredField)
	}
	if !IsSupportedDocument(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDocument, filepath.Ext(name))
	}
	if !utf8.Valid(input.Body) {
		return nil, domain.ErrInvalidDocumentEncoding
	}
	if strings.TrimSpace(string(input.Body)) == "" {
		return nil, domain.ErrEmptyDocument
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), name, domain.DocumentSourceInline, time.Now().UTC())

	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Submit", telemetry.SpanAttributes{
		JobID:     job.ID,
		Operation: "submit",
	})
	defer span.End()

	if s.store != nil {
		key := fmt.Sprintf("documents/%s/%s", job.ID, name)
		if err := s.store.PutDocument(ctx, key, input.Body, input.ContentType); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document", err)
		}
		job.Source = domain.DocumentSourceS3
		job.StorageKey = key
	} else {
		job.Body = string(input.Body)
	}

	if err := domain.ValidateIngestJob(job); err != nil {
		return nil, err
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		span.SetError(err)
		if job.Source == domain.DocumentSourceS3 {
			if delErr := s.store.DeleteDocument(ctx, job.StorageKey); delErr != nil {
				log.Printf("documents: failed to remove orphaned %s: %v", job.StorageKey, delErr)
			}
		}
		return nil, err
	}

	log.Printf("documents: queued %s as job %s (%s)", name, job.ID, job.Source)
	return job, nil
}

// GetJob returns an ingest job by ID
func (s *DocumentService) GetJob(ctx context.Context, id string) (*domain.IngestJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrIngestJobNotFound, id)
	}
	return s.jobs.GetByID(ctx, id)
}

// ListJobs returns one page of ingest jobs, newest first. rawLimit and cursor come
// straight from the request; both may be empty.
func (s *DocumentService) ListJobs(ctx context.Context, cursor, rawLimit string) (*pagination.Page[*domain.IngestJob], error) {
	limit, err := pagination.ParseLimit(rawLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPage, err)
	}
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPage, err)
	}
	if decoded != nil {
		if _, err := uuid.Parse(decoded.LastID); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPage, pagination.ErrInvalidCursor)
		}
	}
	return s.jobs.List(ctx, decoded, limit)
}

// DocumentURL returns a temporary download link for a job's stored document, or "" when
// the document is kept inline.
func (s *DocumentService) DocumentURL(ctx context.Context, job *domain.IngestJob) (string, error) {
	if s.store == nil || job.Source != domain.DocumentSourceS3 {
		return "", nil
	}
	return s.store.GenerateDownloadURL(ctx, job.StorageKey)
}

// ProcessJob loads the job's document and ingests it. On success the job's CourseTitle
// and ChunkCount are filled in; persisting the job's status is left to the caller.
func (s *DocumentService) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ProcessJob", telemetry.SpanAttributes{
		JobID:     job.ID,
		Operation: "process",
	})
	defer span.End()

	var body string
	switch job.Source {
	case domain.DocumentSourceS3:
		if s.store == nil {
			return fmt.Errorf("job %s references stored document %s but no document store is configured", job.ID, job.StorageKey)
		}
		data, err := s.store.GetDocument(ctx, job.StorageKey)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("failed to load document: %w", err)
		}
		body = string(data)
	case domain.DocumentSourceInline:
		body = job.Body
	default:
		return fmt.Errorf("job %s has unknown document source %q", job.ID, job.Source)
	}

	result, err := s.ingester.IngestDocument(ctx, job.DocumentName, body)
	if err != nil {
		span.SetError(err)
		return err
	}

	job.CourseTitle = result.CourseTitle
	job.ChunkCount = result.Chunks
	return nil
}
