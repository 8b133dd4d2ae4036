package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/jobmap/internal/boundary"
	"github.com/UnknownOlympus/jobmap/internal/cache"
	"github.com/UnknownOlympus/jobmap/internal/config"
	"github.com/UnknownOlympus/jobmap/internal/geocoding"
	"github.com/UnknownOlympus/jobmap/internal/metrics"
	"github.com/UnknownOlympus/jobmap/internal/render"
	"github.com/UnknownOlympus/jobmap/internal/repository"
	"github.com/UnknownOlympus/jobmap/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const boundaryDownloadTimeout = 10 * time.Minute

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobmap",
		Short: "Geocode H-2A employer addresses and plot them on a state map",
		Long: "Reads a job disclosure file, keeps the employers of one state, geocodes their addresses " +
			"through a rate-limited provider with a persistent CSV cache and renders the located jobs " +
			"on the state outline.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad(cmd.Flags())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "job disclosure file (.csv or .xlsx)")
	flags.String("cache", "", "geocoding cache file")
	flags.String("state", "", "two-letter EMPLOYER_STATE code to keep")
	flags.String("state-name", "", "boundary record to draw, e.g. Georgia")
	flags.String("plot", "", "output figure (.png, .svg, .pdf)")
	flags.String("provider", "", "geocoding provider: nominatim, google or census")
	flags.String("env", "", "logging environment: local, development or production")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	var (
		sink service.LocationSink
		dtb  pinger
	)
	if cfg.Database.Enabled() {
		pool, err := repository.NewDatabase(
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer pool.Close()

		repo := repository.NewRepository(pool, logger)
		if err = repo.EnsureSchema(ctx); err != nil {
			return err
		}
		sink, dtb = repo, pool
	}

	if cfg.HealthPort > 0 {
		go startMonitoringServer(ctx, logger, reg, dtb, cfg.HealthPort)
	}

	// Create geocoding provider using factory pattern based on configuration.
	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.Key,
		UserAgent: cfg.Provider.UserAgent,
		Timeout:   cfg.Provider.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	limiter := geocoding.NewRateLimiter(geoProvider, geocoding.LimiterConfig{
		MinDelay:   cfg.Limiter.MinDelay,
		MaxRetries: cfg.Limiter.MaxRetries,
		ErrorWait:  cfg.Limiter.ErrorWait,
	}, logger)
	logger.InfoContext(ctx, "Geocoding provider initialized",
		"type", cfg.Provider.Type, "min_delay", cfg.Limiter.MinDelay)

	store := cache.NewStore(cfg.CachePath, logger)
	geoService := service.NewGeocodingService(
		logger,
		limiter,
		cfg.Provider.Type, // Provider name for metrics
		appMetrics,
		store,
		cfg.Geocoder.FlushEvery,
		cfg.Geocoder.ErrorPause,
	)

	title := cfg.Plot.Title
	if title == "" {
		title = render.Title(cfg.StateName)
	}
	fetcher := boundary.NewFetcher(&http.Client{Timeout: boundaryDownloadTimeout}, cfg.Boundary.Dir, logger)
	stateMap := render.NewStateMap(
		boundary.Source{Fetcher: fetcher, URL: cfg.Boundary.URL, Field: cfg.Boundary.Field, Value: cfg.StateName},
		render.Options{Path: cfg.Plot.Path, Title: title},
		logger,
	)

	pipeline := service.NewPipeline(
		logger,
		service.PipelineConfig{InputPath: cfg.InputPath, StateCode: cfg.StateCode},
		store,
		geoService,
		appMetrics,
		stateMap,
		sink,
	)

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.", "input", cfg.InputPath)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		if service.Interrupted(err) {
			logger.WarnContext(ctx, "Run interrupted, progress saved to cache", "cache", store.Path())
		}
		logger.ErrorContext(ctx, "Run failed", "error", err)
		return err
	}

	logger.InfoContext(ctx, "Run completed",
		slog.Int("records", summary.Filtered),
		slog.Int("unique_addresses", summary.Unique),
		slog.Int("cache_hits", summary.Cached),
		slog.Int("geocoded", summary.Looked),
		slog.Int("resolved", summary.Resolved),
		slog.String("map", cfg.Plot.Path))

	return nil
}
