package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of an ingest job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// DocumentSource says where an ingest job's document body lives
type DocumentSource string

const (
	DocumentSourceS3     DocumentSource = "s3"
	DocumentSourceInline DocumentSource = "inline"
)

// IngestJob represents an async ingestion of one uploaded course document
type IngestJob struct {
	ID           string
	DocumentName string
	Source       DocumentSource
	StorageKey   string // Set for S3 documents
	Body         string // Set for inline documents
	Status       IngestJobStatus
	Retries      int32
	Error        string
	CourseTitle  string // Set once the document has been ingested
	ChunkCount   int
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// NewIngestJob creates a new pending IngestJob instance
func NewIngestJob(id, documentName string, source DocumentSource, createdAt time.Time) *IngestJob {
	return &IngestJob{
		ID:           id,
		DocumentName: documentName,
		Source:       source,
		Status:       IngestJobStatusPending,
		CreatedAt:    createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if j.DocumentName == "" {
		return fmt.Errorf("ingest job DocumentName is required")
	}

	switch j.Source {
	case DocumentSourceS3:
		if j.StorageKey == "" {
			return fmt.Errorf("ingest job from s3 must have a StorageKey")
		}
	case DocumentSourceInline:
		if j.Body == "" {
			return fmt.Errorf("inline ingest job must have a Body")
		}
	default:
		return fmt.Errorf("ingest job Source is invalid: %s", j.Source)
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("%w: %s", ErrInvalidIngestJobStatus, j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingest job Retries cannot be negative")
	}

	return nil
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
