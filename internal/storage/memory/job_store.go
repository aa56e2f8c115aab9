package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backlinkoo/blog-engine/internal/jobs"
	"github.com/backlinkoo/blog-engine/internal/storage"
)

// ErrJobExists is returned when a job ID is reused.
var ErrJobExists = errors.New("job already exists")

// JobStore keeps job metadata in memory. Jobs do not survive a restart.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]jobs.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]jobs.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("create job %s: %w", job.ID, ErrJobExists)
	}
	if job.Status == "" {
		job.Status = jobs.StatusQueued
	}
	if job.Submitted.IsZero() {
		job.Submitted = s.now()
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus moves a job to status and records its error text and
// result. A nil result keeps the previous one.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status jobs.Status,
	errText string,
	result any,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, storage.ErrNotFound)
	}
	job.Status = status
	job.Error = errText
	if result != nil {
		job.Result = result
	}
	now := s.now()
	if status == jobs.StatusRunning && job.Started == nil {
		job.Started = &now
	}
	if status.Terminal() {
		job.Finished = &now
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return jobs.Job{}, fmt.Errorf("get job %s: %w", jobID, storage.ErrNotFound)
	}
	return job, nil
}
