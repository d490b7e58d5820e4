package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"busrelay/internal/app/relay"
	"busrelay/internal/bus"
	"busrelay/internal/cache"
	"busrelay/internal/clients/webhook"
	"busrelay/internal/config"
	"busrelay/internal/http/handlers/health"
	"busrelay/internal/http/handlers/messages"
	"busrelay/internal/http/router"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
	"busrelay/internal/telemetry"
)

func main() {
	// Top-level context with graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1) Load configuration
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2) Initialize logger
	logger := logging.New(
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceEnv,
		cfg.Observability.LogLevel,
	)

	logger.Info("starting service",
		"env", cfg.Environment,
		"transport", cfg.Bus.Transport,
	)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	// 3) Initialize telemetry (OpenTelemetry)
	otelShutdown, err := telemetry.Setup(ctx, cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	// 4) Connection profiles
	var profiles secrets.ProfileStore = secrets.NewStaticStore(nil)
	if cfg.Bus.Transport != bus.TransportStub {
		profiles, err = secrets.LoadFile(cfg.Bus.ProfilesFile)
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
	}

	// 5) Reply cache: Redis when enabled, in-process LRU otherwise
	var (
		replies     cache.ReplyCache
		redisHealth health.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis", "error", err)
			}
		}()
		replies = cache.NewRedisReplyCache(redisClient, cfg.Relay.ReplyTTL)
		redisHealth = redisClient
	} else {
		replies = cache.NewMemoryReplyCache(cfg.Relay.ReplyLimit, cfg.Relay.ReplyTTL)
	}

	// 6) Message bus
	b, err := bus.New(cfg.Bus, profiles, logger)
	if err != nil {
		return fmt.Errorf("init bus: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("failed to close bus", "error", err)
		}
	}()

	// 7) Relay service and its listener
	var opts []relay.Option
	if cfg.Relay.WebhookURL != "" {
		hook, err := webhook.New(cfg.Relay.WebhookURL, cfg.Relay.WebhookTimeout, logger)
		if err != nil {
			return fmt.Errorf("init webhook: %w", err)
		}
		opts = append(opts, relay.WithForwarder(hook))
	}
	relayService := relay.NewService(cfg.Relay.Name, b, replies, logger, opts...)

	sub, err := relay.Listen(ctx, b, cfg.Relay.Endpoint, relayService, logger)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Relay.Endpoint, err)
	}

	// 8) HTTP
	httpRouter := router.NewRouter(
		logger,
		health.NewHandler(redisHealth),
		messages.NewHandler(relayService, logger),
	)
	srv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: otelhttp.NewHandler(
			httpRouter,
			cfg.Observability.ServiceName, // span name prefix
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			"host", cfg.HTTP.Host,
			"port", cfg.HTTP.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 9) Wait for shutdown signal or an error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-sub.Done():
		if ctx.Err() == nil {
			runErr = errors.New("relay subscription stopped unexpectedly")
		}
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	// 10) Graceful shutdown: stop taking requests, then drain the subscription
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", "error", err)
	}
	if err := sub.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop relay subscription", "error", err)
	}

	return runErr
}
