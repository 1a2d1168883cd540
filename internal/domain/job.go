package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a scrape job or one of its parts.
type Status string

const (
	// StatusEligible marks work that has not yet been claimed for execution.
	StatusEligible Status = "eligible"
	// StatusInProgress marks work that has been handed to the worker service.
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Engine selects which scraper backend the worker service runs for a job.
type Engine string

const (
	EngineGoogleMaps Engine = "google_maps"
	EngineManta      Engine = "manta"
)

// JobPart is one unit of scrape work inside a job. Its descriptive fields
// are opaque to dispatching and are forwarded to the worker unmodified.
// Parts are never dispatched on their own; they travel with their job.
type JobPart struct {
	ID       string  `json:"part_id"`
	City     *string `json:"city,omitempty"`
	Postcode *string `json:"postcode,omitempty"`
	Keyword  *string `json:"keyword,omitempty"`
	Status   Status  `json:"status,omitempty"`
}

// Job represents a scrape job queued for dispatch to the worker service.
type Job struct {
	ID        string    `json:"job_id"`
	ProfileID string    `json:"profile_id"`
	Engine    Engine    `json:"scraper_engine"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status,omitempty"`
	Parts     []JobPart `json:"job_parts"`
}

// Validate checks if the job definition is valid.
func (j *Job) Validate() error {
	if j.ProfileID == "" {
		return fmt.Errorf("job profile id cannot be empty")
	}
	switch j.Engine {
	case EngineGoogleMaps, EngineManta:
	default:
		return fmt.Errorf("invalid scraper engine: %s", j.Engine)
	}
	if len(j.Parts) == 0 {
		return fmt.Errorf("job must have at least one part")
	}
	return nil
}
