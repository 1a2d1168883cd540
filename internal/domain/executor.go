package domain

import "context"

// SubmitResult is the worker service's structured reply to a job submission.
// Success must be explicitly true for the job to count as accepted; a false
// or absent flag means the worker refused the job.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Executor defines the interface for submitting a single job to the remote
// worker service.
type Executor interface {
	Submit(ctx context.Context, job *Job) (*SubmitResult, error)
}
