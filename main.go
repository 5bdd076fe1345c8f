package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/danielhkuo/orgvote/cliparse"
	"github.com/danielhkuo/orgvote/db"
	"github.com/danielhkuo/orgvote/handlers"
	"github.com/danielhkuo/orgvote/jobs"
	"github.com/danielhkuo/orgvote/mail"
	"github.com/danielhkuo/orgvote/metrics"
	"github.com/danielhkuo/orgvote/middleware"
	"github.com/danielhkuo/orgvote/router"
)

func main() {
	// A missing .env is fine; real deployments set the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Job state lives in Redis when configured so progress survives
	// restarts and is shared between instances.
	var store jobs.Store
	if cfg.RedisURL != "" {
		client, err := jobs.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		store = jobs.NewRedisStore(client)
		slog.Info("Job store ready", "backend", "redis")
	} else {
		store = jobs.NewMemoryStore()
		slog.Info("Job store ready", "backend", "memory")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := handlers.NewServices(dbConn, cfg, handlers.Options{
		JobStore: store,
		Mailer:   mail.NewSender(cfg),
		Metrics:  metrics.New(registry),
	})
	if svc.Runner != nil {
		svc.Runner.Start(ctx)
		defer svc.Runner.Stop()
		slog.Info("Job workers started", "workers", cfg.JobWorkers)
	}

	server := http.Server{
		Handler:           middleware.CORS(router.NewRouter(svc, registry)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
