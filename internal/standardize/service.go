package standardize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/backlinkoo/blog-engine/internal/blog"
	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/metrics"
)

// EventStandardized is the event name carried by rewrite messages.
const EventStandardized = "post.standardized"

// Defaults for Config.
const (
	DefaultSkipScore     = 90
	DefaultBulkSkipScore = 85
	DefaultBatchSize     = 10
)

// PostStore loads posts and writes rewritten content.
type PostStore interface {
	PostByID(ctx context.Context, id string) (blog.Post, error)
	ListPostsForDomain(ctx context.Context, domainID string) ([]blog.Post, error)
	UpdatePostContent(ctx context.Context, id string, u blog.ContentUpdate) error
}

// Formatter rewrites post content.
type Formatter interface {
	Process(content, title string) formatter.Result
}

// Publisher emits rewrite events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher digests content to detect no-op rewrites.
type Hasher interface {
	HashString(s string) string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Config tunes the service thresholds.
type Config struct {
	Topic         string
	SkipScore     int
	BulkSkipScore int
	BatchSize     int
}

// Outcome reports what happened to one post.
type Outcome struct {
	PostID       string   `json:"post_id"`
	Title        string   `json:"title,omitempty"`
	Updated      bool     `json:"updated"`
	Skipped      bool     `json:"skipped"`
	Reason       string   `json:"reason,omitempty"`
	ScoreBefore  int      `json:"score_before"`
	ScoreAfter   int      `json:"score_after"`
	Improvements []string `json:"improvements,omitempty"`
}

// BatchReport summarizes a domain-wide run.
type BatchReport struct {
	DomainID  string    `json:"domain_id"`
	Processed int       `json:"processed"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	Outcomes  []Outcome `json:"outcomes,omitempty"`
}

// Service standardizes stored posts.
type Service struct {
	store     PostStore
	formatter Formatter
	publisher Publisher
	hasher    Hasher
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// NewService wires a Service. The publisher is optional.
func NewService(
	store PostStore,
	f Formatter,
	publisher Publisher,
	hasher Hasher,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if store == nil || f == nil {
		return nil, errors.New("post store and formatter are required")
	}
	if hasher == nil || clock == nil {
		return nil, errors.New("hasher and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SkipScore <= 0 {
		cfg.SkipScore = DefaultSkipScore
	}
	if cfg.BulkSkipScore <= 0 {
		cfg.BulkSkipScore = DefaultBulkSkipScore
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{
		store:     store,
		formatter: f,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// StandardizePost rewrites one post. Posts already scoring at or above the
// skip score are left alone unless force is set.
func (s *Service) StandardizePost(ctx context.Context, postID string, force bool) (Outcome, error) {
	post, err := s.store.PostByID(ctx, postID)
	if err != nil {
		metrics.ObserveStandardize("failed")
		return Outcome{PostID: postID}, fmt.Errorf("load post: %w", err)
	}
	return s.rewrite(ctx, post, s.cfg.SkipScore, force)
}

// StandardizeAll rewrites every published post of a domain in batches.
// Each batch runs concurrently; failures are collected in the report rather
// than aborting the run.
func (s *Service) StandardizeAll(ctx context.Context, domainID string) (BatchReport, error) {
	report := BatchReport{DomainID: domainID}
	posts, err := s.store.ListPostsForDomain(ctx, domainID)
	if err != nil {
		return report, fmt.Errorf("list posts: %w", err)
	}

	var mu sync.Mutex
	record := func(out Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Processed++
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", out.PostID, err))
		case out.Updated:
			report.Updated++
		default:
			report.Skipped++
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	var published []blog.Post
	for _, p := range posts {
		if p.Status == blog.StatusPublished {
			published = append(published, p)
		}
	}

	for start := 0; start < len(published); start += s.cfg.BatchSize {
		batch := published[start:min(start+s.cfg.BatchSize, len(published))]
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.BatchSize)
		for _, post := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				record(s.rewrite(gctx, post, s.cfg.BulkSkipScore, false))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, fmt.Errorf("standardize batch: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("standardize batch: %w", err)
		}
	}

	s.logger.Info("domain standardized",
		zap.String("domain_id", domainID),
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) rewrite(ctx context.Context, post blog.Post, skipScore int, force bool) (Outcome, error) {
	out := Outcome{PostID: post.ID, Title: post.Title}
	before := Score(post.Content)
	out.ScoreBefore, out.ScoreAfter = before.Score, before.Score

	if before.Score >= skipScore && !force {
		out.Skipped = true
		out.Reason = "already meets quality standards"
		metrics.ObserveStandardize("skipped")
		return out, nil
	}

	res := s.formatter.Process(post.Content, post.Title)
	if s.hasher.HashString(res.HTML) == s.hasher.HashString(post.Content) {
		out.Skipped = true
		out.Reason = "content unchanged"
		metrics.ObserveStandardize("unchanged")
		return out, nil
	}

	after := Score(res.HTML)
	out.ScoreAfter = after.Score
	out.Improvements = Improvements(post.Content, res.HTML, before, after)

	original := post.OriginalContent
	if original == "" {
		original = post.Content
	}
	update := blog.ContentUpdate{
		Content:         res.HTML,
		OriginalContent: original,
		QualityScore:    after.Score,
		Standardized:    true,
		UpdatedAt:       s.clock.Now(),
	}
	if err := s.store.UpdatePostContent(ctx, post.ID, update); err != nil {
		metrics.ObserveStandardize("failed")
		return out, fmt.Errorf("update post: %w", err)
	}
	out.Updated = true
	metrics.ObserveStandardize("updated")

	s.publish(ctx, post, out)
	s.logger.Debug("post standardized",
		zap.String("post_id", post.ID),
		zap.Int("score_before", out.ScoreBefore),
		zap.Int("score_after", out.ScoreAfter),
	)
	return out, nil
}

// publish is best effort: the rewrite is already stored.
func (s *Service) publish(ctx context.Context, post blog.Post, out Outcome) {
	if s.cfg.Topic == "" || s.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":        EventStandardized,
		"post_id":      post.ID,
		"domain_id":    post.DomainID,
		"score_before": out.ScoreBefore,
		"score_after":  out.ScoreAfter,
		"improvements": out.Improvements,
		"timestamp":    s.clock.Now().Format(time.RFC3339),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, payload); err != nil {
		s.logger.Warn("publish standardized event failed", zap.String("post_id", post.ID), zap.Error(err))
	}
}
