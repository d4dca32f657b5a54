package repository

import (
	"context"
	"encoding/json"

	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchLogRepository stores course searches for reviewing retrieval quality.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	results := entry.Results
	if results == nil {
		results = []service.SearchLogResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", err
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (query, course_name, course_title, lesson_number, message, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.Query,
		nullableString(entry.CourseName),
		nullableString(entry.CourseTitle),
		entry.LessonNumber,
		nullableString(entry.Message),
		resultsJSON,
		len(results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
