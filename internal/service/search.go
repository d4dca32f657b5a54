package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
)

const defaultMaxResults = 5

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbeddingClient is an EmbeddingClient that can embed many texts per request.
type BatchEmbeddingClient interface {
	EmbeddingClient
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchFilters narrows a chunk search to one course and optionally one lesson.
type SearchFilters struct {
	CourseTitle  string
	LessonNumber *int
}

// SearchHit is a stored chunk matched by a vector search.
type SearchHit struct {
	CourseTitle  string
	LessonNumber *int
	LessonTitle  string
	ChunkIndex   int
	Content      string
	Distance     float64
}

// SearchResults holds the hits of a search. Message is set when the search could not run
// against the requested scope, for example when the course name matches nothing.
type SearchResults struct {
	Hits    []SearchHit
	Message string
}

// IsEmpty reports whether the search produced no hits.
func (r *SearchResults) IsEmpty() bool {
	return r == nil || len(r.Hits) == 0
}

// RetrievalRepository defines the vector lookups the search service needs.
type RetrievalRepository interface {
	// NearestCourseTitle returns the course whose title embedding is closest, or
	// domain.ErrCourseNotFound when the catalog is empty.
	NearestCourseTitle(ctx context.Context, embedding []float32) (string, error)
	SearchChunks(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]SearchHit, error)
}

// SearchService runs semantic search over course chunks.
type SearchService struct {
	embedding  EmbeddingClient
	repo       RetrievalRepository
	maxResults int
	searchLog  SearchLogRepository
}

// NewSearchService creates a new SearchService instance
func NewSearchService(embedding EmbeddingClient, repo RetrievalRepository, maxResults int) *SearchService {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &SearchService{
		embedding:  embedding,
		repo:       repo,
		maxResults: maxResults,
	}
}

// WithSearchLog records every search to repo.
func (s *SearchService) WithSearchLog(repo SearchLogRepository) *SearchService {
	s.searchLog = repo
	return s
}

// ResolveCourseName maps a possibly partial course name to the closest stored course title.
func (s *SearchService) ResolveCourseName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: course name", domain.ErrMissingRequiredField)
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to embed course name: %w", err)
	}

	return s.repo.NearestCourseTitle(ctx, embedding)
}

// Search embeds the query and returns the closest chunks, optionally restricted to a
// course (resolved by name) and a lesson. limit <= 0 uses the configured maximum.
func (s *SearchService) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*SearchResults, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		CourseTitle: courseName,
		Operation:   "search",
	})
	defer span.End()

	started := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	filters := SearchFilters{LessonNumber: lessonNumber}
	if strings.TrimSpace(courseName) != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			if errors.Is(err, domain.ErrCourseNotFound) {
				results := &SearchResults{Message: fmt.Sprintf("No course found matching '%s'", courseName)}
				s.recordSearch(ctx, newSearchLogEntry(query, courseName, filters, results, started))
				return results, nil
			}
			span.SetError(err)
			return nil, err
		}
		filters.CourseTitle = title
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.repo.SearchChunks(ctx, embedding, filters, limit)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	span.Record("hits", len(hits))
	results := &SearchResults{Hits: hits}
	s.recordSearch(ctx, newSearchLogEntry(query, courseName, filters, results, started))
	return results, nil
}
