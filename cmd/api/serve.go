package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	appai "github.com/bryanwahyu/n0dr1e/internal/application/ai"
	appscans "github.com/bryanwahyu/n0dr1e/internal/application/scans"
	appthreats "github.com/bryanwahyu/n0dr1e/internal/application/threats"
	"github.com/bryanwahyu/n0dr1e/internal/domain/ai"
	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/infra/ai/openai"
	"github.com/bryanwahyu/n0dr1e/internal/infra/cache"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db"
	"github.com/bryanwahyu/n0dr1e/internal/infra/events/mqtt"
	"github.com/bryanwahyu/n0dr1e/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/n0dr1e/internal/infra/storage"
	"github.com/bryanwahyu/n0dr1e/internal/middleware"
)

func serveCommand(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Create the database schema before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg, logger := a.cfg, a.logger

	// connect record store
	store, err := db.Open(ctx, cfg.Database, migrate)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("record store ready", "driver", store.Driver)

	health := map[string]middleware.HealthChecker{
		"database": middleware.PingChecker{Target: store},
	}

	// profile set runs in another process, so a cached tier lags by up to the TTL
	var profileRepo profiles.Repository = store.Profiles
	if cfg.ProfileCacheEnabled() {
		profileRepo = cache.NewProfiles(store.Profiles, cfg.Cache.ProfileTTL, 2*cfg.Cache.ProfileTTL)
	}

	scansSvc := &appscans.Service{
		Scans:    store.Scans,
		Threats:  store.Threats,
		Profiles: profileRepo,
		Clock:    application.SystemClock{},
		Random:   application.NewRandom(cfg.Simulator.Seed),
		Logger:   logger.With("component", "scans"),
		Config: appscans.SimulatorConfig{
			TickInterval:    cfg.Simulator.TickInterval,
			FilesPerTickMin: cfg.Simulator.FilesPerTickMin,
			FilesPerTickMax: cfg.Simulator.FilesPerTickMax,
		},
	}

	// init minio
	if cfg.MinioEnabled() {
		reports, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init error: %w", err)
		}
		scansSvc.Reports = reports
		health["storage"] = middleware.PingChecker{Target: reports}
	}

	var events application.Publisher = application.NopPublisher{}
	if cfg.MQTTEnabled() {
		pub, err := mqtt.Connect(ctx, mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		defer pub.Close()
		events = pub
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}
	scansSvc.Events = events
	scansSvc.Metrics = metrics

	threatsSvc := appthreats.NewService(appthreats.Service{
		Threats:    store.Threats,
		Entries:    store.Quarantine,
		Events:     events,
		Metrics:    metrics,
		Clock:      application.SystemClock{},
		Random:     application.NewRandom(cfg.Simulator.Seed),
		Logger:     logger.With("component", "threats"),
	})

	var advisor ai.Client
	if cfg.OpenAIEnabled() {
		advisor = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, nil)
	}
	aiSvc := appai.NewService(store.Threats, advisor, logger.With("component", "ai"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	handler := httpserver.NewRouter(httpserver.Options{
		Scans:       scansSvc,
		Threats:     threatsSvc,
		AI:          aiSvc,
		Metrics:     metrics,
		RateLimiter: limiter,
		APIKeys:     cfg.Auth.APIKeys,
		CORSOrigins: cfg.Server.CORSOrigins,
		Health:      health,
		Logger:      logger.With("component", "http"),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx, time.Minute)
		return nil
	})
	// graceful shutdown: running scans are stopped and marked cancelled, and
	// scans in their completion writes finish before the deferred closes run
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if cerr := scansSvc.Close(sctx); cerr != nil {
			logger.Error("stopping running scans", "error", cerr)
		}
		return err
	})
	return g.Wait()
}
