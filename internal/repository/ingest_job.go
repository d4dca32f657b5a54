package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ingestJobColumns = `id, document_name, source, storage_key, body, status, retries, error, course_title, chunk_count, created_at, processed_at`

type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, document_name, source, storage_key, body, status, retries, error, course_title, chunk_count, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.DocumentName, job.Source, nullableString(job.StorageKey), nullableString(job.Body), job.Status,
		job.Retries, nullableString(job.Error), nullableString(job.CourseTitle), job.ChunkCount, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIngestJob(row rowScanner) (*domain.IngestJob, error) {
	var job domain.IngestJob
	var storageKey, body, errMsg, courseTitle pgtype.Text
	if err := row.Scan(&job.ID, &job.DocumentName, &job.Source, &storageKey, &body, &job.Status, &job.Retries,
		&errMsg, &courseTitle, &job.ChunkCount, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	job.StorageKey = storageKey.String
	job.Body = body.String
	job.Error = errMsg.String
	job.CourseTitle = courseTitle.String
	return &job, nil
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	job, err := scanIngestJob(r.db.QueryRow(ctx,
		`SELECT `+ingestJobColumns+` FROM ingest_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIngestJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs newest first, starting after cursor when one is given.
func (r *IngestJobRepository) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.IngestJob], error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if cursor == nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+ingestJobColumns+` FROM ingest_jobs
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+ingestJobColumns+` FROM ingest_jobs
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		job, err := scanIngestJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.NewPage(jobs, limit,
		func(j *domain.IngestJob) string { return j.ID },
		func(j *domain.IngestJob) time.Time { return j.CreatedAt },
	), nil
}

// claimBatchSize bounds how many jobs one worker pass holds in processing.
const claimBatchSize = 10

// ClaimPending atomically moves up to limit pending jobs to processing and returns
// them. Concurrent workers never claim the same job.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = claimBatchSize
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM ingest_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE ingest_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL,
		     claimed_at = now()
		 FROM cte
		 WHERE ingest_jobs.id = cte.id
		 RETURNING ingest_jobs.id, ingest_jobs.document_name, ingest_jobs.source, ingest_jobs.storage_key,
		           ingest_jobs.body, ingest_jobs.status, ingest_jobs.retries, ingest_jobs.error,
		           ingest_jobs.course_title, ingest_jobs.chunk_count, ingest_jobs.created_at, ingest_jobs.processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		job, err := scanIngestJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ReleaseStale returns jobs claimed before cutoff that are still processing to pending.
// Rows left behind by a crashed worker are picked up again this way.
func (r *IngestJobRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs
		 SET status = $1, claimed_at = NULL
		 WHERE status = $2 AND (claimed_at IS NULL OR claimed_at < $3)`,
		domain.IngestJobStatusPending, domain.IngestJobStatusProcessing, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// UpdateStatus clears the claim whenever the job leaves processing.
func (r *IngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs
		 SET status = $1, error = $2, processed_at = $3,
		     claimed_at = CASE WHEN $1 = 'processing' THEN claimed_at END
		 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

// Complete records a successful ingestion and its outcome.
func (r *IngestJobRepository) Complete(ctx context.Context, id, courseTitle string, chunkCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs
		 SET status = $1, error = NULL, course_title = $2, chunk_count = $3, processed_at = $4, claimed_at = NULL
		 WHERE id = $5`,
		domain.IngestJobStatusCompleted, nullableString(courseTitle), chunkCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	return r.ClaimPending(ctx, claimBatchSize)
}

func (r *IngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	return r.UpdateStatus(ctx, jobID, status, errMsg)
}
