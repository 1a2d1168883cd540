package domain

import (
	"errors"
	"time"
)

// ErrMissingConfig is returned when a pass cannot start because required
// configuration (job store, worker API endpoint) is absent.
var ErrMissingConfig = errors.New("missing required configuration")

// ErrPassInProgress is returned when another pass already holds the
// dispatch lock.
var ErrPassInProgress = errors.New("dispatch pass already in progress")

// Outcome records how a single job fared during one dispatch pass. Detail
// carries the worker's response message on success or the error detail on
// failure.
type Outcome struct {
	JobID  string `json:"job_id"`
	Detail string `json:"detail,omitempty"`
}

// PassSummary aggregates one dispatch pass over the eligible batch. It is
// transient: built for the caller of the pass and never persisted.
type PassSummary struct {
	Total     int       `json:"total_eligible"`
	Succeeded []Outcome `json:"succeeded"`
	Failed    []Outcome `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}
