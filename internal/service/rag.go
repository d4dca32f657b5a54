package service

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
)

// AnswerGenerator produces answers for a query and its formatted history.
type AnswerGenerator interface {
	Generate(ctx context.Context, query, history string) (*GenerationResult, error)
	GenerateStream(ctx context.Context, query, history string) iter.Seq[StateTransition]
}

// CourseReader reads the course catalog.
type CourseReader interface {
	GetByTitle(ctx context.Context, title string) (*domain.Course, error)
	ListTitles(ctx context.Context) ([]string, error)
}

// CourseNameResolver maps a partial course name to a stored title.
type CourseNameResolver interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
}

// QueryResult is the answer to one user question.
type QueryResult struct {
	Answer    string
	Sources   []Source
	SessionID string
	Truncated bool
}

// QueryEvent is one element of a streamed query: either a state transition, the final
// result, or the error that ended the generation.
type QueryEvent struct {
	Transition *StateTransition
	Result     *QueryResult
	Err        error
}

// RAGService ties sessions, generation and the course catalog together.
type RAGService struct {
	generator AnswerGenerator
	sessions  *SessionManager
	courses   CourseReader
	resolver  CourseNameResolver
}

// NewRAGService creates a new RAGService instance
func NewRAGService(generator AnswerGenerator, sessions *SessionManager, courses CourseReader, resolver CourseNameResolver) *RAGService {
	return &RAGService{
		generator: generator,
		sessions:  sessions,
		courses:   courses,
		resolver:  resolver,
	}
}

func queryPrompt(query string) string {
	return "Answer this question about course materials: " + query
}

// beginQuery validates the query and picks the session, creating one when sessionID is empty.
func (s *RAGService) beginQuery(query, sessionID string) (string, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", "", domain.ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = s.sessions.CreateSession()
	}
	return query, sessionID, nil
}

// Query answers a question within a session and records the exchange in its history.
func (s *RAGService) Query(ctx context.Context, query, sessionID string) (*QueryResult, error) {
	query, sessionID, err := s.beginQuery(query, sessionID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Query", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "query",
	})
	defer span.End()

	history := s.sessions.FormattedHistory(sessionID)
	result, err := s.generator.Generate(ctx, queryPrompt(query), history)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.sessions.AddExchange(sessionID, query, result.Answer)

	return &QueryResult{
		Answer:    result.Answer,
		Sources:   result.Sources,
		SessionID: sessionID,
		Truncated: result.Truncated,
	}, nil
}

// QueryStream is Query with every state transition surfaced as it happens. The last
// event carries either the result or the error. The exchange is recorded only when the
// stream runs to completion.
func (s *RAGService) QueryStream(ctx context.Context, query, sessionID string) iter.Seq[QueryEvent] {
	return func(yield func(QueryEvent) bool) {
		query, sessionID, err := s.beginQuery(query, sessionID)
		if err != nil {
			yield(QueryEvent{Err: err})
			return
		}

		history := s.sessions.FormattedHistory(sessionID)

		var last StateTransition
		for transition := range s.generator.GenerateStream(ctx, queryPrompt(query), history) {
			last = transition
			if !yield(QueryEvent{Transition: &transition}) {
				return
			}
		}

		result, err := ResultFromTransition(last)
		if err != nil {
			yield(QueryEvent{Err: err})
			return
		}

		s.sessions.AddExchange(sessionID, query, result.Answer)
		yield(QueryEvent{Result: &QueryResult{
			Answer:    result.Answer,
			Sources:   result.Sources,
			SessionID: sessionID,
			Truncated: result.Truncated,
		}})
	}
}

// CourseAnalytics returns the number of stored courses and their titles.
func (s *RAGService) CourseAnalytics(ctx context.Context) (*domain.CourseAnalytics, error) {
	titles, err := s.courses.ListTitles(ctx)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return &domain.CourseAnalytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}, nil
}

// CourseOutline returns a course by exact title, falling back to the closest title match.
func (s *RAGService) CourseOutline(ctx context.Context, name string) (*domain.Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrMissingRequiredField
	}

	course, err := s.courses.GetByTitle(ctx, name)
	if err == nil {
		return course, nil
	}
	if !errors.Is(err, domain.ErrCourseNotFound) || s.resolver == nil {
		return nil, err
	}

	title, err := s.resolver.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.courses.GetByTitle(ctx, title)
}

// ClearSession empties a session's history.
func (s *RAGService) ClearSession(sessionID string) error {
	return s.sessions.Clear(sessionID)
}
