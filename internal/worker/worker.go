// Package worker executes queued verification and standardization jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/jobs"
	"github.com/backlinkoo/blog-engine/internal/metrics"
	"github.com/backlinkoo/blog-engine/internal/standardize"
	"github.com/backlinkoo/blog-engine/internal/verify"
)

// Verifier checks a single backlink.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (verify.Result, error)
}

// Standardizer rewrites stored post content.
type Standardizer interface {
	StandardizePost(ctx context.Context, postID string, force bool) (standardize.Outcome, error)
	StandardizeAll(ctx context.Context, domainID string) (standardize.BatchReport, error)
}

// Config controls Worker behavior.
type Config struct {
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// Worker consumes queue items and runs the handler for each item's kind.
type Worker struct {
	queue        jobs.Queue
	jobStore     jobs.Store
	verifier     Verifier
	standardizer Standardizer
	retry        retryPolicy
	logger       *zap.Logger
}

// New constructs a Worker. A nil handler makes jobs of that kind fail.
func New(
	queue jobs.Queue,
	jobStore jobs.Store,
	verifier Verifier,
	standardizer Standardizer,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = 250 * time.Millisecond
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = 5 * time.Second
	}
	return &Worker{
		queue:        queue,
		jobStore:     jobStore,
		verifier:     verifier,
		standardizer: standardizer,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			baseDelay:  cfg.RetryBackoffBase,
			maxDelay:   cfg.RetryBackoffMax,
		},
		logger: logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jobs.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.String("kind", string(item.Kind)))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item jobs.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("kind", string(item.Kind)))
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, jobs.StatusRunning, "", nil); err != nil {
		logger.Error("update job status failed", zap.Error(err))
		return
	}
	metrics.ObserveJob(string(item.Kind), string(jobs.StatusRunning))

	result, err := w.runWithRetry(ctx, logger, item)
	status, errText := deriveFinalStatus(ctx, err)

	// The job context may already be canceled; the final write must still land.
	storeCtx := context.WithoutCancel(ctx)
	if err := w.jobStore.UpdateJobStatus(storeCtx, item.JobID, status, errText, result); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
	}
	metrics.ObserveJob(string(item.Kind), string(status))

	if status == jobs.StatusSucceeded {
		logger.Info("job finished", zap.Int("attempts", item.Attempt+1))
		return
	}
	logger.Warn("job did not succeed", zap.String("status", string(status)), zap.String("error", errText))
}

func (w *Worker) runWithRetry(ctx context.Context, logger *zap.Logger, item jobs.QueueItem) (any, error) {
	for {
		result, err := w.handle(ctx, item)
		if !w.retry.shouldRetry(err, item.Attempt) {
			return result, err
		}
		delay := w.retry.backoff(item.Attempt)
		logger.Warn("job attempt failed, retrying",
			zap.Int("attempt", item.Attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if !sleep(ctx, delay) {
			return nil, ctx.Err()
		}
		item.Attempt++
	}
}

func (w *Worker) handle(ctx context.Context, item jobs.QueueItem) (any, error) {
	switch item.Kind {
	case jobs.KindVerify:
		if w.verifier == nil {
			return nil, errors.New("no verifier configured")
		}
		if item.Verify == nil {
			return nil, fmt.Errorf("%w: missing parameters", verify.ErrInvalidRequest)
		}
		res, err := w.verifier.Verify(ctx, *item.Verify)
		if err != nil {
			return nil, fmt.Errorf("verify backlink: %w", err)
		}
		return res, nil
	case jobs.KindStandardize:
		if w.standardizer == nil {
			return nil, errors.New("no standardizer configured")
		}
		p := item.Standardize
		switch {
		case p == nil:
			return nil, errors.New("missing standardize parameters")
		case p.PostID != "":
			out, err := w.standardizer.StandardizePost(ctx, p.PostID, p.Force)
			if err != nil {
				return nil, fmt.Errorf("standardize post: %w", err)
			}
			return out, nil
		case p.DomainID != "":
			report, err := w.standardizer.StandardizeAll(ctx, p.DomainID)
			if err != nil {
				return report, fmt.Errorf("standardize domain: %w", err)
			}
			return report, nil
		default:
			return nil, errors.New("standardize job names neither a post nor a domain")
		}
	default:
		return nil, fmt.Errorf("unknown job kind %q", item.Kind)
	}
}

func deriveFinalStatus(ctx context.Context, err error) (jobs.Status, string) {
	switch {
	case ctx.Err() != nil:
		if err == nil {
			err = ctx.Err()
		}
		return jobs.StatusCanceled, err.Error()
	case err != nil:
		return jobs.StatusFailed, err.Error()
	default:
		return jobs.StatusSucceeded, ""
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
