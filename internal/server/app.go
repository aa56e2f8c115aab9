// Package server builds the application's dependencies and runs the HTTP
// server and job workers until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/api"
	"github.com/backlinkoo/blog-engine/internal/blog"
	"github.com/backlinkoo/blog-engine/internal/clock/system"
	"github.com/backlinkoo/blog-engine/internal/config"
	"github.com/backlinkoo/blog-engine/internal/dispatcher"
	collyfetcher "github.com/backlinkoo/blog-engine/internal/fetcher/colly"
	headlessfetcher "github.com/backlinkoo/blog-engine/internal/fetcher/headless"
	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/hash/xxhash"
	"github.com/backlinkoo/blog-engine/internal/headless/detector"
	"github.com/backlinkoo/blog-engine/internal/id/uuid"
	"github.com/backlinkoo/blog-engine/internal/jobs"
	"github.com/backlinkoo/blog-engine/internal/logging"
	"github.com/backlinkoo/blog-engine/internal/metrics"
	memorypublisher "github.com/backlinkoo/blog-engine/internal/publisher/memory"
	gcppublisher "github.com/backlinkoo/blog-engine/internal/publisher/pubsub"
	queueMemory "github.com/backlinkoo/blog-engine/internal/queue/memory"
	"github.com/backlinkoo/blog-engine/internal/ratelimit"
	"github.com/backlinkoo/blog-engine/internal/standardize"
	"github.com/backlinkoo/blog-engine/internal/storage"
	gcsstorage "github.com/backlinkoo/blog-engine/internal/storage/gcs"
	localstorage "github.com/backlinkoo/blog-engine/internal/storage/local"
	memoryStorage "github.com/backlinkoo/blog-engine/internal/storage/memory"
	pgstore "github.com/backlinkoo/blog-engine/internal/storage/postgres"
	supabasestorage "github.com/backlinkoo/blog-engine/internal/storage/supabase"
	"github.com/backlinkoo/blog-engine/internal/verify"
	"github.com/backlinkoo/blog-engine/internal/worker"
)

// postStore is what both the blog site and the standardizer need from the
// post tables.
type postStore interface {
	blog.Store
	standardize.PostStore
}

// publisher is satisfied by the memory and Pub/Sub publishers.
type publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	clock  *system.Clock
	ids    *uuid.Generator
	hasher *xxhash.Hasher

	pool            *pgxpool.Pool
	posts           postStore
	verifications   verify.Store
	blobs           storage.BlobStore
	storageClient   *gcstorage.Client
	publisher       publisher
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	formatter       *formatter.Processor
	standardizer    *standardize.Service
	headless        *headlessfetcher.Fetcher
	verifier        *verify.Verifier
	jobStore        *memoryStorage.JobStore
	queue           *queueMemory.Queue
	dispatch        *dispatcher.Dispatcher
	apiServer       *api.Server

	closeOnce sync.Once
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, logging.WithLevel(cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
		hasher: xxhash.New(),
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("database", cfg.Database.DSN != ""),
	)

	if err := app.build(ctx); err != nil {
		app.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	if err := a.setupDatabase(ctx); err != nil {
		return err
	}
	if err := a.setupStorage(ctx); err != nil {
		return err
	}
	if err := a.setupPublisher(ctx); err != nil {
		return err
	}

	a.formatter = formatter.New(
		formatter.WithLogger(a.logger.Named("formatter")),
		formatter.WithMinTextRatio(a.cfg.Formatter.MinTextRatio),
		formatter.WithMaxHeadingLength(a.cfg.Formatter.MaxHeadingLength),
	)

	var err error
	a.standardizer, err = standardize.NewService(a.posts, a.formatter, a.publisher, a.hasher, a.clock, standardize.Config{
		Topic:         a.cfg.PubSub.TopicName,
		SkipScore:     a.cfg.Standardize.SkipScore,
		BulkSkipScore: a.cfg.Standardize.BulkSkipScore,
		BatchSize:     a.cfg.Standardize.BatchSize,
	}, a.logger.Named("standardize"))
	if err != nil {
		return fmt.Errorf("standardize service init failed: %w", err)
	}

	if err := a.setupVerifier(); err != nil {
		return err
	}

	a.jobStore = memoryStorage.NewJobStore()
	a.queue = queueMemory.NewQueue(a.cfg.Workers.QueueDepth)
	a.dispatch = a.setupDispatcher()

	site := blog.NewSite(a.posts, a.blobs, a.formatter, blog.Config{
		PrimaryHosts: a.cfg.Blog.PrimaryHosts,
		MainSiteURL:  a.cfg.Blog.MainSiteURL,
		ProxySecret:  a.cfg.Blog.ProxySecret,
		ThemePrefix:  a.cfg.Blog.ThemePrefix,
		DefaultTheme: a.cfg.Blog.DefaultTheme,
		PostTheme:    a.cfg.Blog.PostTheme,
	}, a.logger.Named("blog"))

	deps := api.Deps{
		JobStore:  a.jobStore,
		Enqueuer:  a.dispatch,
		IDGen:     a.ids,
		Clock:     a.clock,
		Formatter: a.formatter,
		Site:      site,
	}
	if a.pool != nil {
		deps.Pinger = a.pool
	}
	a.apiServer = api.NewServer(deps, *a.cfg, a.logger.Named("api"))
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory blog and verification stores")
		a.posts = memoryStorage.NewBlogStore()
		a.verifications = memoryStorage.NewVerificationStore()
		return nil
	}
	pool, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(a.cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	a.pool = pool

	posts, err := pgstore.NewBlogStore(pool)
	if err != nil {
		return fmt.Errorf("blog store init failed: %w", err)
	}
	verifications, err := pgstore.NewVerificationStore(pool)
	if err != nil {
		return fmt.Errorf("verification store init failed: %w", err)
	}
	a.posts = posts
	a.verifications = verifications
	a.logger.Info("postgres stores initialized", zap.Int32("max_conns", a.cfg.Database.MaxConns))
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		a.storageClient, err = gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.blobs, err = gcsstorage.New(a.storageClient, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
	case config.BackendLocal:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.LocalDir))
		a.blobs, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
	case config.BackendSupabase:
		a.logger.Info("using supabase storage backend",
			zap.String("base_url", a.cfg.Storage.Supabase.BaseURL),
			zap.String("bucket", a.cfg.Blog.ThemeBucket),
		)
		a.blobs, err = supabasestorage.New(supabasestorage.Config{
			BaseURL: a.cfg.Storage.Supabase.BaseURL,
			Bucket:  a.cfg.Blog.ThemeBucket,
			Timeout: time.Duration(a.cfg.Storage.Supabase.TimeoutSeconds) * time.Second,
		}, nil)
		if err != nil {
			return fmt.Errorf("supabase blob store init failed: %w", err)
		}
	default:
		a.logger.Info("using in-memory storage backend")
		a.blobs = memoryStorage.NewBlobStore()
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = gcppublisher.New(a.pubsubClient)
	a.publisher = a.pubsubPublisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupVerifier() error {
	vc := a.cfg.Verifier
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     vc.UserAgent,
		RespectRobots: vc.RespectRobots,
		Timeout:       time.Duration(vc.TimeoutSeconds) * time.Second,
	})
	a.logger.Info("using colly static fetcher", zap.String("user_agent", vc.UserAgent))

	deps := verify.Deps{
		Static: static,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   vc.RPS,
			DefaultBurst: vc.Burst,
		}),
		Store:     a.verifications,
		Publisher: a.publisher,
		Hasher:    a.hasher,
		Clock:     a.clock,
	}
	// Public Supabase buckets are read-only, so snapshots are skipped there.
	if a.cfg.Storage.Backend != config.BackendSupabase {
		deps.Blobs = a.blobs
	}
	if vc.Headless.Enabled {
		hf, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       vc.Headless.MaxParallel,
			UserAgent:         vc.UserAgent,
			NavigationTimeout: time.Duration(vc.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			a.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			a.headless = hf
			deps.Headless = hf
			deps.Detector = detector.NewHeuristic(vc.Headless.ShortBodyBytes)
			a.logger.Info("using headless fetcher", zap.Int("max_parallel", vc.Headless.MaxParallel))
		}
	}

	var err error
	a.verifier, err = verify.New(deps, verify.Config{
		SnapshotPrefix:  a.cfg.Storage.SnapshotPrefix,
		Topic:           a.cfg.PubSub.TopicName,
		HeadlessEnabled: a.headless != nil,
	}, a.logger.Named("verify"))
	if err != nil {
		return fmt.Errorf("verifier init failed: %w", err)
	}
	return nil
}

func (a *App) setupDispatcher() *dispatcher.Dispatcher {
	workerCfg := worker.Config{
		MaxRetries:       a.cfg.Workers.MaxRetries,
		RetryBackoffBase: time.Duration(a.cfg.Workers.BackoffInitialMs) * time.Millisecond,
		RetryBackoffMax:  time.Duration(a.cfg.Workers.BackoffMaxMs) * time.Millisecond,
	}
	a.logger.Info("worker config",
		zap.Int("concurrency", a.cfg.Workers.Concurrency),
		zap.Int("queue_depth", a.cfg.Workers.QueueDepth),
		zap.Int("max_retries", workerCfg.MaxRetries),
		zap.Duration("backoff_base", workerCfg.RetryBackoffBase),
		zap.Duration("backoff_max", workerCfg.RetryBackoffMax),
	)

	workers := make([]dispatcher.Runner, 0, a.cfg.Workers.Concurrency)
	for i := range a.cfg.Workers.Concurrency {
		workers = append(workers, worker.New(
			a.queue,
			a.jobStore,
			a.verifier,
			a.standardizer,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(a.queue, workers)
}

// Handler returns the HTTP handler serving the API and the blog sites.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Formatter returns the configured content pipeline.
func (a *App) Formatter() *formatter.Processor {
	return a.formatter
}

// Standardizer returns the post standardization service.
func (a *App) Standardizer() *standardize.Service {
	return a.standardizer
}

// Verifier returns the backlink verifier.
func (a *App) Verifier() *verify.Verifier {
	return a.verifier
}

// JobStore returns the store tracking submitted jobs.
func (a *App) JobStore() jobs.Store {
	return a.jobStore
}

// Migrate applies the Postgres schema. It fails when no database is
// configured.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return errors.New("migrate requires database.dsn")
	}
	if err := pgstore.Migrate(ctx, a.pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("schema applied")
	return nil
}

// HasDatabase reports whether the Postgres stores are in use.
func (a *App) HasDatabase() bool {
	return a.pool != nil
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not stop before the shutdown deadline")
	}
	cancelPending(shutdownCtx, a.queue, a.jobStore, a.logger)
	a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// cancelPending marks the jobs still buffered in q as canceled so they do not
// stay queued after the workers have stopped.
func cancelPending(ctx context.Context, q *queueMemory.Queue, store jobs.Store, logger *zap.Logger) int {
	items := q.Drain()
	for _, item := range items {
		err := store.UpdateJobStatus(ctx, item.JobID, jobs.StatusCanceled, "server shut down before the job started", nil)
		if err != nil {
			logger.Warn("cancel pending job failed", zap.String("job_id", item.JobID), zap.Error(err))
		}
	}
	if len(items) > 0 {
		logger.Info("canceled pending jobs", zap.Int("count", len(items)))
	}
	return len(items)
}

// Close releases clients and pools. It is safe to call more than once and on
// a partially built App.
func (a *App) Close(_ context.Context) {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}
