// Package jobs defines the asynchronous job model shared by the API, the
// queue and the workers.
package jobs

import (
	"time"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

// Kind names the handler a job runs.
type Kind string

// Job kinds.
const (
	KindVerify      Kind = "verify"
	KindStandardize Kind = "standardize"
)

// Status represents the lifecycle state of a job.
type Status string

// Job status values persisted in the job store.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// StandardizeParams selects the posts a standardize job rewrites. Exactly
// one of PostID and DomainID is set.
type StandardizeParams struct {
	PostID   string `json:"post_id,omitempty"`
	DomainID string `json:"domain_id,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// Job is the metadata persisted for each submitted job.
type Job struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Status    Status         `json:"status"`
	Submitted time.Time      `json:"submitted_at"`
	Started   *time.Time     `json:"started_at,omitempty"`
	Finished  *time.Time     `json:"finished_at,omitempty"`
	Error     string         `json:"error,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Result    any            `json:"result,omitempty"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID       string
	Kind        Kind
	Verify      *verify.Request
	Standardize *StandardizeParams
	Attempt     int
}
