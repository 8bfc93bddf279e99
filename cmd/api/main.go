package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/n0dr1e/internal/config"
)

// app is shared by the sub-commands once the root pre-run loaded config.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	a := &app{}

	// path config.yaml
	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}

	rootCmd := &cobra.Command{
		Use:           "n0dr1e",
		Short:         "n0dr1e antivirus dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags().Changed("config"))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			sentry.Flush(2 * time.Second)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultPath, "Path to the YAML config file")

	rootCmd.AddCommand(
		serveCommand(a),
		migrateCommand(a),
		profileCommand(a),
		simulateCommand(a),
	)
	return rootCmd
}

// setup loads config, builds the logger and initializes Sentry. A missing
// default config file falls back to built-in defaults; an explicit one must exist.
func (a *app) setup(explicit bool) error {
	cfg, err := config.Load(a.configPath)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return fmt.Errorf("config load error: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(cfg)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		a.logger.Info("sentry error reporting enabled", "environment", cfg.Sentry.Environment)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
