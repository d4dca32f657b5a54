package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/cloo-solutions/coursechat/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for an ingest job
	MaxRetries = 3
	// StaleClaimTimeout is how long a job may sit in processing before another pass
	// returns it to the queue.
	StaleClaimTimeout = 30 * time.Minute
)

// IngestJobRepository defines the job persistence the ingest worker needs
type IngestJobRepository interface {
	// GetPendingJobs claims pending jobs, moving them to processing
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)
	// ReleaseStale moves jobs claimed before cutoff back to pending
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error
	Complete(ctx context.Context, jobID, courseTitle string, chunkCount int) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// JobRunner ingests the document behind one job, filling in its outcome
type JobRunner interface {
	ProcessJob(ctx context.Context, job *domain.IngestJob) error
}

// IngestWorker processes uploaded-document ingest jobs
type IngestWorker struct {
	repo   IngestJobRepository
	runner JobRunner
	now    func() time.Time
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestJobRepository, runner JobRunner) *IngestWorker {
	return &IngestWorker{
		repo:   repo,
		runner: runner,
		now:    time.Now,
	}
}

// ProcessJobs implements the JobProcessor interface. Jobs it claimed but did not get
// to before ctx was cancelled go back to pending.
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	if released, err := w.repo.ReleaseStale(ctx, w.now().Add(-StaleClaimTimeout)); err != nil {
		log.Printf("ingest worker: failed to release stale jobs: %v", err)
	} else if released > 0 {
		log.Printf("ingest worker: released %d stale jobs", released)
	}

	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("ingest worker: processing %d pending jobs", len(jobs))

	for i, job := range jobs {
		if ctx.Err() != nil {
			w.release(ctx, jobs[i:])
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("ingest worker: job %s: %v", job.ID, err)
		}
	}

	return nil
}

// release puts claimed jobs back in the queue without spending an attempt. The writes
// outlive ctx so a shutdown still records them.
func (w *IngestWorker) release(ctx context.Context, jobs []*domain.IngestJob) {
	writeCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		if err := w.repo.UpdateJobStatus(writeCtx, job.ID, domain.IngestJobStatusPending, ""); err != nil {
			log.Printf("ingest worker: failed to release job %s: %v", job.ID, err)
		}
	}
	log.Printf("ingest worker: released %d unfinished jobs on shutdown", len(jobs))
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	log.Printf("ingest worker: job %s document %q", job.ID, job.DocumentName)

	runErr := w.runner.ProcessJob(ctx, job)
	if runErr != nil && ctx.Err() != nil {
		w.release(ctx, []*domain.IngestJob{job})
		return fmt.Errorf("interrupted: %w", runErr)
	}

	writeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		return w.handleJobFailure(writeCtx, job, runErr)
	}

	if err := w.repo.Complete(writeCtx, job.ID, job.CourseTitle, job.ChunkCount); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("ingest worker: job %s completed, course %q, %d chunks", job.ID, job.CourseTitle, job.ChunkCount)
	return nil
}

// handleJobFailure puts the job back in the queue until it runs out of attempts.
// Parse and validation failures are permanent and fail the job straight away.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("ingest worker: job %s failed: %v", job.ID, jobErr)
	telemetry.CaptureError(ctx, fmt.Errorf("ingest job %s: %w", job.ID, jobErr))

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if domain.CodeOf(jobErr) == domain.ErrCodeValidation {
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("ingest worker: job %s exceeded max retries (%d)", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
