package domain

import (
	"context"
	"errors"
)

// ErrJobNotFound is a sentinel error returned when a job is not found.
var ErrJobNotFound = errors.New("job not found")

// ErrStatusConflict is returned by conditional status updates when the row's
// current status no longer matches the expected one, e.g. when a concurrent
// pass already claimed the job.
var ErrStatusConflict = errors.New("job status conflict")

// JobStats counts a job's parts by status.
type JobStats struct {
	Total      int `json:"total"`
	Eligible   int `json:"eligible"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// JobStore defines the interface for persisting and retrieving scrape jobs
// and their parts.
type JobStore interface {
	// CreateJob persists a new job together with its parts.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns a job with its parts, or ErrJobNotFound.
	GetJob(ctx context.Context, id string) (*Job, error)

	// FetchEligible returns jobs whose status and all of whose part
	// statuses are eligible, ordered by creation time ascending, with
	// parts embedded.
	FetchEligible(ctx context.Context) ([]*Job, error)

	// UpdateJobStatus sets a job's status if its current status still
	// equals expected. Returns ErrStatusConflict when it does not.
	UpdateJobStatus(ctx context.Context, id string, expected, next Status) error

	// UpdatePartsStatus sets the status of every part of a job in one
	// scoped update.
	UpdatePartsStatus(ctx context.Context, jobID string, next Status) error

	// JobStats returns part status counts for a job.
	JobStats(ctx context.Context, jobID string) (*JobStats, error)

	// CompleteIfFinished flips a job to done when every one of its parts
	// is done or failed. Reports whether the transition happened.
	CompleteIfFinished(ctx context.Context, jobID string) (bool, error)

	// Ping verifies the store connection.
	Ping(ctx context.Context) error
}
