// Package config loads and validates blog engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by storage.backend.
const (
	BackendGCS      = "gcs"
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendSupabase = "supabase"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Blog        BlogConfig        `mapstructure:"blog"`
	Formatter   FormatterConfig   `mapstructure:"formatter"`
	Standardize StandardizeConfig `mapstructure:"standardize"`
	Verifier    VerifierConfig    `mapstructure:"verifier"`
	Workers     WorkersConfig     `mapstructure:"workers"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// StorageConfig selects the blob backend for themes and snapshots.
type StorageConfig struct {
	Backend        string         `mapstructure:"backend"`
	GCSBucket      string         `mapstructure:"gcs_bucket"`
	LocalDir       string         `mapstructure:"local_dir"`
	SnapshotPrefix string         `mapstructure:"snapshot_prefix"`
	Supabase       SupabaseConfig `mapstructure:"supabase"`
}

// SupabaseConfig points at a Supabase storage project.
type SupabaseConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. Events
// stay in memory when ProjectID is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BlogConfig controls host resolution and themes.
type BlogConfig struct {
	PrimaryHosts []string `mapstructure:"primary_hosts"`
	MainSiteURL  string   `mapstructure:"main_site_url"`
	ProxySecret  string   `mapstructure:"proxy_secret"`
	ThemeBucket  string   `mapstructure:"theme_bucket"`
	ThemePrefix  string   `mapstructure:"theme_prefix"`
	DefaultTheme string   `mapstructure:"default_theme"`
	PostTheme    string   `mapstructure:"post_theme"`
}

// FormatterConfig tunes the sanitation pipeline.
type FormatterConfig struct {
	MinTextRatio     float64 `mapstructure:"min_text_ratio"`
	MaxHeadingLength int     `mapstructure:"max_heading_length"`
}

// StandardizeConfig tunes quality-driven rewrites.
type StandardizeConfig struct {
	SkipScore     int `mapstructure:"skip_score"`
	BulkSkipScore int `mapstructure:"bulk_skip_score"`
	BatchSize     int `mapstructure:"batch_size"`
}

// VerifierConfig configures backlink verification fetches.
type VerifierConfig struct {
	UserAgent      string         `mapstructure:"user_agent"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	RespectRobots  bool           `mapstructure:"respect_robots"`
	RPS            float64        `mapstructure:"rps"`
	Burst          int            `mapstructure:"burst"`
	Headless       HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	MaxParallel    int  `mapstructure:"max_parallel"`
	NavTimeoutSec  int  `mapstructure:"nav_timeout_seconds"`
	ShortBodyBytes int  `mapstructure:"short_body_bytes"`
}

// WorkersConfig sizes the job pipeline.
type WorkersConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	QueueDepth       int `mapstructure:"queue_depth"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.snapshot_prefix", "snapshots")
	v.SetDefault("storage.supabase.base_url", "")
	v.SetDefault("storage.supabase.timeout_seconds", 10)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "blog-events")
	v.SetDefault("blog.primary_hosts", []string{"backlinkoo.com"})
	v.SetDefault("blog.main_site_url", "https://backlinkoo.com")
	v.SetDefault("blog.proxy_secret", "")
	v.SetDefault("blog.theme_bucket", "themes")
	v.SetDefault("blog.theme_prefix", "themes")
	v.SetDefault("blog.default_theme", "minimal")
	v.SetDefault("blog.post_theme", "HTML")
	v.SetDefault("formatter.min_text_ratio", 0.2)
	v.SetDefault("formatter.max_heading_length", 80)
	v.SetDefault("standardize.skip_score", 90)
	v.SetDefault("standardize.bulk_skip_score", 85)
	v.SetDefault("standardize.batch_size", 10)
	v.SetDefault("verifier.user_agent", "backlinkoo-verifier/1.0")
	v.SetDefault("verifier.timeout_seconds", 15)
	v.SetDefault("verifier.respect_robots", true)
	v.SetDefault("verifier.rps", 1.0)
	v.SetDefault("verifier.burst", 1)
	v.SetDefault("verifier.headless.enabled", false)
	v.SetDefault("verifier.headless.max_parallel", 1)
	v.SetDefault("verifier.headless.nav_timeout_seconds", 25)
	v.SetDefault("verifier.headless.short_body_bytes", 2048)
	v.SetDefault("workers.concurrency", 4)
	v.SetDefault("workers.queue_depth", 64)
	v.SetDefault("workers.max_retries", 2)
	v.SetDefault("workers.backoff_initial_ms", 250)
	v.SetDefault("workers.backoff_max_ms", 5000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Workers.Concurrency <= 0 {
		return fmt.Errorf("workers.concurrency must be > 0")
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		return fmt.Errorf("verifier.timeout_seconds must be > 0")
	}
	if c.Verifier.Headless.Enabled && c.Verifier.Headless.MaxParallel <= 0 {
		return fmt.Errorf("verifier.headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Formatter.MinTextRatio < 0 || c.Formatter.MinTextRatio >= 1 {
		return fmt.Errorf("formatter.min_text_ratio must be in [0, 1)")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case BackendSupabase:
		if c.Storage.Supabase.BaseURL == "" {
			return fmt.Errorf("storage.supabase.base_url must be set for the supabase backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of gcs, local, memory, supabase", c.Storage.Backend)
	}
	return nil
}

// RequestTimeout is the per-request deadline applied by the API.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
