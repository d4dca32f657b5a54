package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SearchRepository implements course name resolution and chunk vector search.
type SearchRepository struct {
	pool *pgxpool.Pool
}

func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

func (r *SearchRepository) NearestCourseTitle(ctx context.Context, embedding []float32) (string, error) {
	var title string
	err := r.pool.QueryRow(ctx,
		`SELECT title FROM courses ORDER BY title_embedding <=> $1 LIMIT 1`,
		pgvector.NewVector(embedding),
	).Scan(&title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrCourseNotFound
		}
		return "", err
	}
	return title, nil
}

// SearchChunks returns the chunks closest to embedding by cosine distance, nearest first.
func (r *SearchRepository) SearchChunks(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]service.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT course_title, lesson_number, lesson_title, chunk_index, content, embedding <=> $1 AS distance
		FROM course_chunks
		WHERE true`
	args := []interface{}{pgvector.NewVector(embedding)}

	if filters.CourseTitle != "" {
		args = append(args, filters.CourseTitle)
		query += fmt.Sprintf(" AND course_title = $%d", len(args))
	}
	if filters.LessonNumber != nil {
		args = append(args, *filters.LessonNumber)
		query += fmt.Sprintf(" AND lesson_number = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY distance ASC, chunk_index ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]service.SearchHit, 0, limit)
	for rows.Next() {
		var hit service.SearchHit
		var lessonTitle *string
		if err := rows.Scan(&hit.CourseTitle, &hit.LessonNumber, &lessonTitle, &hit.ChunkIndex, &hit.Content, &hit.Distance); err != nil {
			return nil, err
		}
		hit.LessonTitle = stringValue(lessonTitle)
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}
