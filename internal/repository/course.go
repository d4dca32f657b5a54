package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// CourseRepository persists courses and their lessons.
type CourseRepository struct {
	db dbtx
}

func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{db: pool}
}

func NewCourseRepositoryWithTx(tx pgx.Tx) *CourseRepository {
	return &CourseRepository{db: tx}
}

// Upsert inserts or replaces a course together with its lessons. The lessons of an
// existing course are replaced wholesale; run it inside a transaction.
func (r *CourseRepository) Upsert(ctx context.Context, c *domain.Course, titleEmbedding []float32) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO courses (title, link, instructor, title_embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (title) DO UPDATE
		 SET link = EXCLUDED.link,
		     instructor = EXCLUDED.instructor,
		     title_embedding = EXCLUDED.title_embedding,
		     updated_at = EXCLUDED.updated_at`,
		c.Title, nullableString(c.Link), nullableString(c.Instructor), pgvector.NewVector(titleEmbedding), createdAt, updatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM lessons WHERE course_title = $1`, c.Title); err != nil {
		return err
	}

	for _, l := range c.Lessons {
		_, err := r.db.Exec(ctx,
			`INSERT INTO lessons (course_title, lesson_number, title, link) VALUES ($1, $2, $3, $4)`,
			c.Title, l.Number, l.Title, nullableString(l.Link),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *CourseRepository) GetByTitle(ctx context.Context, title string) (*domain.Course, error) {
	var c domain.Course
	var link, instructor *string
	err := r.db.QueryRow(ctx,
		`SELECT title, link, instructor, created_at, updated_at FROM courses WHERE title = $1`,
		title,
	).Scan(&c.Title, &link, &instructor, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	c.Link = stringValue(link)
	c.Instructor = stringValue(instructor)

	rows, err := r.db.Query(ctx,
		`SELECT lesson_number, title, link FROM lessons WHERE course_title = $1 ORDER BY lesson_number`,
		title,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Lesson
		var lessonLink *string
		if err := rows.Scan(&l.Number, &l.Title, &lessonLink); err != nil {
			return nil, err
		}
		l.Link = stringValue(lessonLink)
		c.Lessons = append(c.Lessons, l)
	}

	return &c, rows.Err()
}

func (r *CourseRepository) ListTitles(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT title FROM courses ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// DeleteAll removes every course; lessons and chunks go with them.
func (r *CourseRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM courses`)
	return err
}
