// Package main is the entry point for the Fork & Fire newsletter API.
//
// It loads configuration, connects the database pool, wires the SES email
// provider and the dispatch engine, mounts the HTTP surface, and serves
// until SIGINT/SIGTERM triggers a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"

	"forkfire/internal/api/handlers"
	"forkfire/internal/config"
	"forkfire/internal/core"
	"forkfire/internal/db"
	"forkfire/internal/external"
	"forkfire/internal/newsletter"
	"forkfire/internal/types"
)

// shutdownGracePeriod bounds how long in-flight requests may run after a
// termination signal.
const shutdownGracePeriod = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("newsletter API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database pool.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	subRepo := db.NewSubscriptionRepository(pool)
	userRepo := db.NewUserRepository(pool)

	// AWS clients.
	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.EndpointURL != "" {
		awsOpts = append(awsOpts, awsconfig.WithBaseEndpoint(cfg.AWS.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	provider := external.NewSESClient(awsCfg, external.SESClientConfig{
		ConfigSetName: cfg.Email.SESConfigSet,
		Logger:        logger,
	})

	var metrics newsletter.DispatchMetrics = newsletter.NoopDispatchMetrics{}
	if cfg.AWS.EnableMetrics {
		metrics = newsletter.NewCloudWatchDispatchMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.AWS.MetricsNamespace,
			logger,
		)
	}

	// Newsletter core.
	renderer, err := newsletter.NewRenderer(newsletter.BrandConfig{
		SiteURL:       cfg.Server.SiteURL,
		BrandName:     cfg.Email.BrandName,
		Tagline:       cfg.Email.BrandTagline,
		SignatureName: cfg.Email.SignatureName,
		AccentColor:   cfg.Email.AccentColor,
	})
	if err != nil {
		return fmt.Errorf("building renderer: %w", err)
	}

	service := newsletter.NewService(subRepo, userRepo, logger)
	dispatcher := newsletter.NewDispatcher(newsletter.DispatcherConfig{
		Subscribers: subRepo,
		Names:       userRepo,
		Renderer:    renderer,
		Provider:    provider,
		Metrics:     metrics,
		Logger:      logger,
		From: types.SenderIdentity{
			Address: cfg.Email.FromAddress,
			Name:    cfg.Email.FromName,
		},
		MaxConcurrentSends: cfg.Dispatch.MaxConcurrentSends,
	})

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	nlHandler := handlers.NewNewsletterHandler(service, dispatcher, srv.Validator, logger, srv.AdminOnly)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		nlHandler.RegisterRoutes(r)
	})
	srv.HealthProbes = append(srv.HealthProbes, db.NewPingProbe(pool))
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// newLogger builds the application-wide slog logger with a JSON handler at
// the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
