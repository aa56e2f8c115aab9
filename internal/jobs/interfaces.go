package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Dequeue once a closed queue has no items left.
var ErrQueueClosed = errors.New("queue closed")

// Store persists job metadata.
type Store interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status Status, errText string, result any) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Publisher pushes domain events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
