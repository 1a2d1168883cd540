package http

import (
	"time"

	"scrape-dispatch/internal/domain"
)

// PartRequest is the DTO for a single job part.
type PartRequest struct {
	City     *string `json:"city,omitempty"`
	Postcode *string `json:"postcode,omitempty"`
	Keyword  *string `json:"keyword,omitempty"`
}

// CreateJobRequest is the Data Transfer Object for creating a scrape job.
type CreateJobRequest struct {
	ProfileID string        `json:"profile_id" validate:"required,min=1,max=128"`
	Engine    string        `json:"scraper_engine" validate:"required,oneof=google_maps manta"`
	Parts     []PartRequest `json:"job_parts" validate:"required,min=1,dive"`
}

// ToDomainJob converts a CreateJobRequest DTO to a domain.Job.
func (r *CreateJobRequest) ToDomainJob() *domain.Job {
	parts := make([]domain.JobPart, 0, len(r.Parts))
	for _, p := range r.Parts {
		parts = append(parts, domain.JobPart{
			City:     p.City,
			Postcode: p.Postcode,
			Keyword:  p.Keyword,
		})
	}
	return &domain.Job{
		ProfileID: r.ProfileID,
		Engine:    domain.Engine(r.Engine),
		Parts:     parts,
	}
}

// CreateJobResponse acknowledges a created job.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
	Parts int    `json:"parts"`
}

// DispatchResponse is the pass summary returned to the trigger caller.
type DispatchResponse struct {
	Message       string           `json:"message"`
	TotalEligible int              `json:"total_eligible"`
	Succeeded     []domain.Outcome `json:"succeeded"`
	Failed        []domain.Outcome `json:"failed"`
	Timestamp     time.Time        `json:"timestamp"`
}

// StatsResponse wraps part status counts for a job.
type StatsResponse struct {
	JobID string           `json:"job_id"`
	Stats *domain.JobStats `json:"stats"`
}

// ReconcileResponse reports whether a completion check closed the job.
type ReconcileResponse struct {
	JobID     string `json:"job_id"`
	Completed bool   `json:"completed"`
}

// ErrorResponse is the structured error body for fatal failures.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
