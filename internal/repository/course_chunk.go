package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// CourseChunkRepository handles persistence of chunked course embeddings.
type CourseChunkRepository struct {
	db dbtx
}

func NewCourseChunkRepository(pool *pgxpool.Pool) *CourseChunkRepository {
	return &CourseChunkRepository{db: pool}
}

func NewCourseChunkRepositoryWithTx(tx pgx.Tx) *CourseChunkRepository {
	return &CourseChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a course and inserts new ones.
func (r *CourseChunkRepository) ReplaceChunks(ctx context.Context, courseTitle string, chunks []domain.CourseChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, courseTitle)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO course_chunks
				(id, course_title, lesson_number, lesson_title, chunk_index, prefix, overlap, body, content, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID(),
			courseTitle,
			c.LessonNumber,
			nullableString(c.LessonTitle),
			c.ChunkIndex,
			c.Prefix,
			c.Overlap,
			c.Body,
			c.Content(),
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// CountByCourse returns the number of stored chunks for a course.
func (r *CourseChunkRepository) CountByCourse(ctx context.Context, courseTitle string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM course_chunks WHERE course_title = $1`, courseTitle).Scan(&n)
	return n, err
}
