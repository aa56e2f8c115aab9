// Package cmd defines the blog-engine command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/config"
	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/logging"
	"github.com/backlinkoo/blog-engine/internal/server"
	"github.com/backlinkoo/blog-engine/internal/standardize"
	"github.com/backlinkoo/blog-engine/internal/verify"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the set of services the commands use. Tests swap in a fake.
type App interface {
	Run(ctx context.Context) error
	Close(ctx context.Context)
	Logger() *zap.Logger
	Formatter() *formatter.Processor
	Standardizer() *standardize.Service
	Verifier() *verify.Verifier
	Migrate(ctx context.Context) error
	HasDatabase() bool
}

// newApp is the application factory. It is a variable so tests can replace
// it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return server.Build(ctx, &cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "blog-engine",
		Short: "Serves Backlinkoo blog domains and maintains their posts.",
		Long: `blog-engine renders host-based blog sites from stored posts and themes,
standardizes generated post content and verifies backlinks.`,
		SilenceUsage: true,

		// Config is loaded and the application built before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close(cmd.Context())
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); BLOG_* env vars override it")

	cmd.AddCommand(
		newServeCmd(),
		newFormatCmd(),
		newStandardizeCmd(),
		newVerifyCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logger, lerr := logging.New(false)
		if lerr != nil {
			panic(err)
		}
		logger.Fatal("command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
