package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/metrics"
)

// EventVerified is the event name carried by verification messages.
const EventVerified = "backlink.verified"

// ErrInvalidRequest marks a request that can never succeed.
var ErrInvalidRequest = errors.New("invalid verification request")

// Config controls Verifier behavior.
type Config struct {
	SnapshotPrefix  string
	Topic           string
	HeadlessEnabled bool
}

// Verifier fetches the source page, locates the backlink and records the
// scored result.
type Verifier struct {
	static    Fetcher
	headless  Fetcher
	detector  HeadlessDetector
	limiter   Limiter
	blobs     BlobStore
	store     Store
	publisher Publisher
	hasher    Hasher
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// Deps groups the collaborators of a Verifier. Only Static, Hasher and Clock
// are required.
type Deps struct {
	Static    Fetcher
	Headless  Fetcher
	Detector  HeadlessDetector
	Limiter   Limiter
	Blobs     BlobStore
	Store     Store
	Publisher Publisher
	Hasher    Hasher
	Clock     Clock
}

// New constructs a Verifier.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Verifier, error) {
	if deps.Static == nil {
		return nil, errors.New("static fetcher is required")
	}
	if deps.Hasher == nil || deps.Clock == nil {
		return nil, errors.New("hasher and clock are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	return &Verifier{
		static:    deps.Static,
		headless:  deps.Headless,
		detector:  deps.Detector,
		limiter:   deps.Limiter,
		blobs:     deps.Blobs,
		store:     deps.Store,
		publisher: deps.Publisher,
		hasher:    deps.Hasher,
		clock:     deps.Clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Validate checks that a request names two absolute http(s) URLs.
func (r Request) Validate() error {
	fields := [...][2]string{{"source_url", r.SourceURL}, {"target_url", r.TargetURL}}
	for _, f := range fields {
		u, err := url.Parse(strings.TrimSpace(f[1]))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidRequest, f[0])
		}
	}
	return nil
}

// Verify runs one verification. A page that cannot be fetched at all is
// reported as an error; an unreachable link is a low-scoring result.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	logger := v.logger.With(zap.String("source_url", req.SourceURL), zap.String("target_url", req.TargetURL))

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx, req.SourceURL); err != nil {
			return Result{}, fmt.Errorf("wait for rate limit: %w", err)
		}
	}
	resp, err := v.static.Fetch(ctx, FetchRequest{URL: req.SourceURL})
	if err != nil {
		metrics.ObserveVerification(req.SourceURL, "fetch_error", 0)
		return Result{}, fmt.Errorf("fetch source page: %w", err)
	}
	resp = v.maybePromote(ctx, logger, req, resp)

	result := Result{
		SourceURL:     req.SourceURL,
		TargetURL:     req.TargetURL,
		AnchorText:    req.AnchorText,
		StatusCode:    resp.StatusCode,
		FinalURL:      resp.URL,
		RedirectChain: resp.RedirectChain,
		UsedHeadless:  resp.UsedHeadless,
		CheckedAt:     v.clock.Now(),
	}
	if result.FinalURL == "" {
		result.FinalURL = req.SourceURL
	}

	attrs, found, err := FindLink(resp.Body, result.FinalURL, req.TargetURL)
	if err != nil {
		logger.Warn("page parse failed", zap.Error(err))
	}
	if found {
		result.LinkFound = true
		result.LinkAttributes = &attrs
		result.AnchorMatches = AnchorMatches(attrs, req.AnchorText)
		result.Dofollow = IsDofollow(attrs.Rel)
	}
	result.Score = Score(result)

	if uri, err := v.snapshot(ctx, result.FinalURL, resp.Body); err != nil {
		logger.Warn("snapshot write failed", zap.Error(err))
	} else {
		result.SnapshotURI = uri
	}

	if v.store != nil {
		if err := v.store.Save(ctx, result); err != nil {
			return result, fmt.Errorf("save verification: %w", err)
		}
	}
	v.publish(ctx, logger, result)

	outcome := "missing"
	if result.LinkFound {
		outcome = "found"
	}
	metrics.ObserveVerification(req.SourceURL, outcome, len(resp.Body))
	logger.Info("backlink verified",
		zap.Bool("link_found", result.LinkFound),
		zap.Int("status", result.StatusCode),
		zap.Int("score", result.Score),
		zap.Bool("headless", result.UsedHeadless),
	)
	return result, nil
}

func (v *Verifier) maybePromote(ctx context.Context, logger *zap.Logger, req Request, resp FetchResponse) FetchResponse {
	if !v.cfg.HeadlessEnabled || v.headless == nil || v.detector == nil || !v.detector.ShouldPromote(resp) {
		return resp
	}
	rendered, err := v.headless.Fetch(ctx, FetchRequest{URL: req.SourceURL})
	if err != nil {
		logger.Warn("headless promotion failed", zap.Error(err))
		return resp
	}
	rendered.UsedHeadless = true
	if len(rendered.RedirectChain) == 0 {
		rendered.RedirectChain = resp.RedirectChain
	}
	logger.Info("headless promotion applied")
	return rendered
}

// snapshot writes the raw page to snapshots/<host>/<hash>.html.
func (v *Verifier) snapshot(ctx context.Context, pageURL string, body []byte) (string, error) {
	if v.blobs == nil || len(body) == 0 {
		return "", nil
	}
	hash, err := v.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash body: %w", err)
	}
	path := fmt.Sprintf("%s/%s/%s.html", strings.Trim(v.cfg.SnapshotPrefix, "/"), metrics.SanitizeSite(pageURL), hash)
	uri, err := v.blobs.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return uri, nil
}

func (v *Verifier) publish(ctx context.Context, logger *zap.Logger, result Result) {
	if v.cfg.Topic == "" || v.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":        EventVerified,
		"source_url":   result.SourceURL,
		"target_url":   result.TargetURL,
		"link_found":   result.LinkFound,
		"dofollow":     result.Dofollow,
		"score":        result.Score,
		"status_code":  result.StatusCode,
		"snapshot_uri": result.SnapshotURI,
		"checked_at":   result.CheckedAt,
	}
	if _, err := v.publisher.Publish(ctx, v.cfg.Topic, payload); err != nil {
		logger.Warn("publish verification failed", zap.Error(err))
	}
}
