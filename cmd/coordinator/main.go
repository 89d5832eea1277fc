// Package main provides the CLI entry point for the emergency coordinator.
// It handles .env loading, flag parsing, dependency wiring and the HTTP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/afikmenashe/campus-alert/internal/archive"
	"github.com/afikmenashe/campus-alert/internal/config"
	"github.com/afikmenashe/campus-alert/internal/coordinator"
	"github.com/afikmenashe/campus-alert/internal/delivery"
	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/dispatcher"
	"github.com/afikmenashe/campus-alert/internal/handlers"
	"github.com/afikmenashe/campus-alert/internal/metrics"
	"github.com/afikmenashe/campus-alert/internal/producer"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/router"
	pkgmetrics "github.com/afikmenashe/campus-alert/pkg/metrics"
	"github.com/afikmenashe/campus-alert/pkg/shared"
)

const serviceName = "campus-alert"

func main() {
	// Load .env before flags so its values become flag defaults
	envErr := godotenv.Load()

	cfg := &config.Config{}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	// Set up structured logging
	// Allow DEBUG level via environment variable for troubleshooting
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	if envErr != nil {
		slog.Debug("No .env file loaded", "error", envErr)
	}

	slog.Info("Starting emergency coordinator",
		"http_port", cfg.HTTPPort,
		"roster_path", cfg.RosterPath,
		"delivery_channel", cfg.DeliveryChannel,
		"dispatch_workers", cfg.DispatchWorkers,
		"delivery_timeout", cfg.DeliveryTimeout,
		"kafka_brokers", cfg.KafkaBrokers,
		"emergency_topic", cfg.EmergencyTopic,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
		"redis_addr", cfg.RedisAddr,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// A missing roster is not fatal: every targeting call returns an empty population.
	store, err := roster.LoadCSV(cfg.RosterPath)
	if err != nil {
		slog.Warn("Roster unavailable, starting with an empty roster", "path", cfg.RosterPath, "error", err)
		store = roster.Empty()
	} else {
		slog.Info("Roster loaded", "path", cfg.RosterPath, "recipients", store.Len(), "branches", len(store.Branches()))
	}

	// Metrics are always collected in-process; Redis reporting is optional.
	collector := pkgmetrics.NewCollector(serviceName, nil)
	if cfg.RedisAddr != "" {
		redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Warn("Metrics reporting disabled", "error", err)
		} else {
			defer redisClient.Close()
			collector = pkgmetrics.NewCollector(serviceName, redisClient)
			collector.Start(ctx)
			defer collector.Stop()
			slog.Info("Metrics reporting to Redis", "addr", cfg.RedisAddr)
		}
	}
	recorder := metrics.NewCollectorAdapter(collector)

	// Delivery channels
	registry, closers := buildRegistry(ctx, cfg)
	for _, c := range closers {
		defer c.Close()
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.DeliveryRetries
	channel, err := delivery.NewRouter(registry, cfg.DeliveryChannel, retryCfg)
	if err != nil {
		slog.Error("Failed to configure delivery channel", "error", err)
		os.Exit(1)
	}

	d := dispatcher.New(channel,
		dispatcher.WithWorkers(cfg.DispatchWorkers),
		dispatcher.WithTimeout(cfg.DeliveryTimeout),
		dispatcher.WithMetrics(recorder),
	)

	opts := []coordinator.Option{coordinator.WithMetrics(recorder)}

	if cfg.PublishEvents() {
		slog.Info("Connecting to Kafka producer", "topic", cfg.EmergencyTopic)
		kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.EmergencyTopic)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		opts = append(opts, coordinator.WithPublisher(kafkaProducer))
	}

	if cfg.PostgresDSN != "" {
		slog.Info("Connecting to PostgreSQL archive")
		db, err := archive.NewDB(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			slog.Error("Failed to prepare archive schema", "error", err)
			os.Exit(1)
		}
		opts = append(opts, coordinator.WithArchive(db))
	}

	coord := coordinator.New(store, d, opts...)
	h := handlers.NewHandlers(coord, handlers.WithCollector(collector))
	server := router.NewServer(cfg.HTTPPort, h)

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
		slog.Info("HTTP server stopped")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Emergency coordinator stopped")
}
