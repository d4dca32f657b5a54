package service

import (
	"context"
	"log"
	"time"
)

// SearchLogResult captures a single hit for logging.
type SearchLogResult struct {
	CourseTitle  string  `json:"course_title"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
	ChunkIndex   int     `json:"chunk_index"`
	Distance     float64 `json:"distance"`
}

// SearchLogEntry captures a course search and what it returned.
type SearchLogEntry struct {
	Query string
	// CourseName is the name as the model asked for it; CourseTitle is what it resolved to.
	CourseName   string
	CourseTitle  string
	LessonNumber *int
	Message      string
	DurationMs   int
	Results      []SearchLogResult
}

// SearchLogRepository persists search logs.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}

func newSearchLogEntry(query, courseName string, filters SearchFilters, results *SearchResults, started time.Time) SearchLogEntry {
	entry := SearchLogEntry{
		Query:        query,
		CourseName:   courseName,
		CourseTitle:  filters.CourseTitle,
		LessonNumber: filters.LessonNumber,
		Message:      results.Message,
		DurationMs:   int(time.Since(started).Milliseconds()),
		Results:      make([]SearchLogResult, 0, len(results.Hits)),
	}
	for _, hit := range results.Hits {
		entry.Results = append(entry.Results, SearchLogResult{
			CourseTitle:  hit.CourseTitle,
			LessonNumber: hit.LessonNumber,
			ChunkIndex:   hit.ChunkIndex,
			Distance:     hit.Distance,
		})
	}
	return entry
}

// recordSearch writes the entry when a search log is configured. Failures are only logged.
func (s *SearchService) recordSearch(ctx context.Context, entry SearchLogEntry) {
	if s.searchLog == nil {
		return
	}
	if _, err := s.searchLog.CreateSearchLog(ctx, entry); err != nil {
		log.Printf("search: failed to record search log: %v", err)
	}
}
