package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/coursechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepository
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newMockIngestJobRepository() *MockIngestJobRepository {
	repo := new(MockIngestJobRepository)
	repo.On("ReleaseStale", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	return repo
}

func (m *MockIngestJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) Complete(ctx context.Context, jobID, courseTitle string, chunkCount int) error {
	args := m.Called(ctx, jobID, courseTitle, chunkCount)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockJobRunner is a mock implementation of JobRunner
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job.ID)
	if err := args.Error(0); err != nil {
		return err
	}
	job.CourseTitle = "Course for " + job.ID
	job.ChunkCount = 4
	return nil
}

func TestWorker_StartStop(t *testing.T) {
	called := make(chan struct{}, 1)
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	worker := NewWorker("test", mockProcessor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// The first pass runs without waiting for the ticker.
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("worker did not run its first pass")
	}

	worker.Stop()
	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("transient"))

	worker := NewWorker("test", mockProcessor, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockProcessor.Calls), 2)
}

func TestIngestWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockRepo := newMockIngestJobRepository()
	mockRunner := new(MockJobRunner)

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockRepo, mockRunner)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRunner.AssertNotCalled(t, "ProcessJob", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_Success(t *testing.T) {
	mockRepo := newMockIngestJobRepository()
	mockRunner := new(MockJobRunner)

	jobs := []*domain.IngestJob{
		{ID: "job-1", DocumentName: "a.txt", Status: domain.IngestJobStatusProcessing},
		{ID: "job-2", DocumentName: "b.txt", Status: domain.IngestJobStatusProcessing},
	}

	mockRepo.On("GetPendingJobs", mock.Anything).Return(jobs, nil)
	mockRunner.On("ProcessJob", mock.Anything, "job-1").Return(nil)
	mockRunner.On("ProcessJob", mock.Anything, "job-2").Return(nil)
	mockRepo.On("Complete", mock.Anything, "job-1", "Course for job-1", 4).Return(nil)
	mockRepo.On("Complete", mock.Anything, "job-2", "Course for job-2", 4).Return(nil)

	worker := NewIngestWorker(mockRepo, mockRunner)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRunner.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_Failures(t *testing.T) {
	tests := []struct {
		name       string
		retries    int32
		jobErr     error
		wantStatus domain.IngestJobStatus
	}{
		{
			name:       "transient failure is retried",
			retries:    0,
			jobErr:     errors.New("embedding provider unavailable"),
			wantStatus: domain.IngestJobStatusPending,
		},
		{
			name:       "max retries exceeded",
			retries:    MaxRetries - 1,
			jobErr:     errors.New("embedding provider unavailable"),
			wantStatus: domain.IngestJobStatusFailed,
		},
		{
			name:       "validation failure is permanent",
			retries:    0,
			jobErr:     fmt.Errorf("parse: %w", domain.ErrEmptyDocument),
			wantStatus: domain.IngestJobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := newMockIngestJobRepository()
			mockRunner := new(MockJobRunner)

			job := &domain.IngestJob{ID: "job-1", Status: domain.IngestJobStatusProcessing, Retries: tt.retries}

			mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{job}, nil)
			mockRunner.On("ProcessJob", mock.Anything, "job-1").Return(tt.jobErr)
			mockRepo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
			mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", tt.wantStatus, mock.MatchedBy(func(msg string) bool {
				return msg != ""
			})).Return(nil)

			worker := NewIngestWorker(mockRepo, mockRunner)
			err := worker.ProcessJobs(context.Background())

			assert.NoError(t, err)
			mockRepo.AssertExpectations(t)
			mockRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestIngestWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockRepo := newMockIngestJobRepository()
	mockRunner := new(MockJobRunner)

	mockRepo.On("GetPendingJobs", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewIngestWorker(mockRepo, mockRunner)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockRepo.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_StopsOnCancelledContext(t *testing.T) {
	mockRepo := newMockIngestJobRepository()
	mockRunner := new(MockJobRunner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{{ID: "job-1"}, {ID: "job-2"}}, nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, "").Return(nil)
	mockRepo.On("UpdateJobStatus", mock.Anything, "job-2", domain.IngestJobStatusPending, "").Return(nil)

	worker := NewIngestWorker(mockRepo, mockRunner)
	err := worker.ProcessJobs(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	mockRepo.AssertExpectations(t)
	mockRunner.AssertNotCalled(t, "ProcessJob", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_ReleasesStaleClaims(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockRunner := new(MockJobRunner)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mockRepo.On("ReleaseStale", mock.Anything, now.Add(-StaleClaimTimeout)).Return(int64(2), nil).Once()
	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockRepo, mockRunner)
	worker.now = func() time.Time { return now }

	assert.NoError(t, worker.ProcessJobs(context.Background()))
	mockRepo.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_StaleReleaseErrorIsNotFatal(t *testing.T) {
	mockRepo := new(MockIngestJobRepository)
	mockRunner := new(MockJobRunner)

	mockRepo.On("ReleaseStale", mock.Anything, mock.Anything).Return(int64(0), errors.New("database error"))
	mockRepo.On("GetPendingJobs", mock.Anything).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockRepo, mockRunner)
	assert.NoError(t, worker.ProcessJobs(context.Background()))
	mockRepo.AssertExpectations(t)
}

// jobStore behaves like the database under shutdown: writes on a cancelled context fail.
type jobStore struct {
	mu       sync.Mutex
	pending  []*domain.IngestJob
	statuses map[string]domain.IngestJobStatus
	retries  map[string]int
}

func newJobStore(ids ...string) *jobStore {
	s := &jobStore{statuses: map[string]domain.IngestJobStatus{}, retries: map[string]int{}}
	for _, id := range ids {
		s.pending = append(s.pending, &domain.IngestJob{ID: id, Status: domain.IngestJobStatusPending})
		s.statuses[id] = domain.IngestJobStatusPending
	}
	return s
}

func (s *jobStore) GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := s.pending
	s.pending = nil
	for _, job := range claimed {
		job.Status = domain.IngestJobStatusProcessing
		s.statuses[job.ID] = domain.IngestJobStatusProcessing
	}
	return claimed, nil
}

func (s *jobStore) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, ctx.Err()
}

func (s *jobStore) UpdateJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[jobID] = status
	return nil
}

func (s *jobStore) Complete(ctx context.Context, jobID, courseTitle string, chunkCount int) error {
	return s.UpdateJobStatus(ctx, jobID, domain.IngestJobStatusCompleted, "")
}

func (s *jobStore) IncrementRetries(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[jobID]++
	return nil
}

// cancellingRunner cancels the worker context while running the job named cancelOn.
type cancellingRunner struct {
	cancelOn string
	cancel   context.CancelFunc
	ran      []string
}

func (r *cancellingRunner) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	r.ran = append(r.ran, job.ID)
	if job.ID == r.cancelOn {
		r.cancel()
		return fmt.Errorf("embedding: %w", ctx.Err())
	}
	return nil
}

func TestIngestWorker_ShutdownReturnsClaimedJobsToQueue(t *testing.T) {
	store := newJobStore("a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &cancellingRunner{cancelOn: "a", cancel: cancel}

	err := NewIngestWorker(store, runner).ProcessJobs(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, runner.ran)
	assert.Equal(t, map[string]domain.IngestJobStatus{
		"a": domain.IngestJobStatusPending,
		"b": domain.IngestJobStatusPending,
		"c": domain.IngestJobStatusPending,
	}, store.statuses)
	assert.Empty(t, store.retries, "an interrupted job keeps its attempts")
}

func TestIngestWorker_CompletesAfterCancelDuringRun(t *testing.T) {
	store := newJobStore("a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &finishingRunner{cancel: cancel}

	err := NewIngestWorker(store, runner).ProcessJobs(ctx)

	assert.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusCompleted, store.statuses["a"])
}

// finishingRunner completes its job even though shutdown starts while it runs.
type finishingRunner struct {
	cancel context.CancelFunc
}

func (r *finishingRunner) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	r.cancel()
	job.CourseTitle = "Finished"
	return nil
}
