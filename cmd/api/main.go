package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"postapi/internal/config"
	"postapi/internal/database"
	"postapi/internal/database/migration"
	"postapi/internal/events"
	handlers "postapi/internal/http/handler"
	"postapi/internal/http/middleware"
	"postapi/internal/image"
	"postapi/internal/ingest"
	"postapi/internal/logger"
	"postapi/internal/otel"
	"postapi/internal/repository/postgres"
	"postapi/internal/service"
	"postapi/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "postapi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, cfg.App.Name, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	backend, err := storage.New(cfg.Storage, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init image storage: %w", err)
	}
	images := image.NewStore(backend, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	ingestMetrics, err := ingest.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register ingest metrics: %w", err)
	}

	opts := []ingest.Option{ingest.WithMetrics(ingestMetrics)}
	if cfg.Avatar.FetchEnabled {
		opts = append(opts, ingest.WithAvatarFetcher(image.NewFetcher(images, cfg.Avatar.FetchTimeout)))
	}
	coordinator := ingest.NewCoordinator(images, log, opts...)

	publisher := events.New(cfg.Kafka, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("event_publisher_close_failed", zap.Error(err))
		}
	}()

	postSvc := service.NewPostService(postgres.NewPostPostgres(db), images, publisher, log)

	app := fiber.New(fiber.Config{
		AppName:           cfg.App.Name,
		StreamRequestBody: true,
		BodyLimit:         cfg.HTTP.BodyLimit,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ErrorHandler:      handlers.ErrorHandler(),
	})

	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", handlers.Metrics(reg))
	handlers.RegisterRoutes(app, db, coordinator, postSvc, log)

	addr := ":" + cfg.HTTP.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_server_start", zap.String("addr", addr), zap.String("storage_driver", cfg.Storage.Driver))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("http_server_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
