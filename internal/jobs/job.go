// Package jobs runs background work and keeps a record of every run.
package jobs

import (
	"context"
	"time"
)

// Job is the interface that all job types must implement.
type Job interface {
	// ID returns the record ID assigned at submission.
	ID() string
	SetRecordID(id string)

	// Type returns the job type identifier.
	Type() string

	// Execute runs the job. It should respect context cancellation.
	Execute(ctx context.Context) error

	// Status returns the current status of the job as key-value pairs.
	// This allows jobs to report progress, current step, items processed, etc.
	// Returns nil map if no status to report.
	Status(ctx context.Context) (map[string]string, error)
}

// Status represents the current state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a job in this status will not change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Record is the stored account of one job run.
type Record struct {
	ID          string         `json:"id"`
	JobType     string         `json:"job_type"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewRecord creates a new job record for submission.
func NewRecord(jobType string, metadata map[string]any) *Record {
	return &Record{
		JobType:   jobType,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
}
