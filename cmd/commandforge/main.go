package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/Strob0t/CommandForge/internal/adapter/gitcli"
	cfhttp "github.com/Strob0t/CommandForge/internal/adapter/http"
	cfnats "github.com/Strob0t/CommandForge/internal/adapter/nats"
	"github.com/Strob0t/CommandForge/internal/adapter/postgres"
	"github.com/Strob0t/CommandForge/internal/adapter/ristretto"
	"github.com/Strob0t/CommandForge/internal/adapter/toolcli"
	"github.com/Strob0t/CommandForge/internal/adapter/ws"
	"github.com/Strob0t/CommandForge/internal/adapter/zipfs"
	"github.com/Strob0t/CommandForge/internal/config"
	"github.com/Strob0t/CommandForge/internal/git"
	"github.com/Strob0t/CommandForge/internal/logger"
	"github.com/Strob0t/CommandForge/internal/middleware"
	"github.com/Strob0t/CommandForge/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"tool", cfg.Runner.Tool,
		"max_concurrent", cfg.Runner.MaxConcurrent,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := connectPostgres(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := connectNATS(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	archiver, err := zipfs.NewArchiver(cfg.Artifact.Dir)
	if err != nil {
		return fmt.Errorf("artifact dir: %w", err)
	}

	// --- Adapters ---

	gitPool := git.NewPool(cfg.Git.MaxConcurrent)
	provider := gitcli.NewProvider(gitPool, cfg.Git.Host)
	tool := toolcli.NewRunner(cfg.Runner.Tool)
	hub := ws.NewHub()
	store := postgres.NewStore(pool)

	// --- Services ---

	runner := service.NewRunner(store, provider, tool, archiver, queue, hub, cfg.Runner)
	sched := service.NewScheduler(runner, cfg.Runner.MaxConcurrent)
	commandSvc := service.NewCommandService(store, cache, archiver, sched, runner, cfg.Runner, cfg.Cache.TTL)
	repoSvc := service.NewRepoService(store, provider, cfg.Runner, cfg.Git.Host)
	authSvc := service.NewAuthService(store)

	// Fail commands left running by a previous process and requeue
	// pending ones.
	if err := commandSvc.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	// --- HTTP ---

	handlers := &cfhttp.Handlers{
		Commands: commandSvc,
		Repos:    repoSvc,
		Auth:     authSvc,
		Hub:      hub,
	}

	r := chi.NewRouter()

	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	cfhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	// Let in-flight runs reach a stage boundary before the process exits.
	if err := sched.Shutdown(shutdownCtx); err != nil {
		slog.Warn("scheduler shutdown", "error", err)
	}

	return queue.Drain()
}

// connectPostgres retries the initial connection so the orchestrator can
// start before its database in container environments.
func connectPostgres(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(10, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		pool, err = postgres.NewPool(ctx, cfg)
		if err != nil {
			slog.Warn("postgres not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return pool, err
}

func connectNATS(ctx context.Context, url string) (*cfnats.Queue, error) {
	var queue *cfnats.Queue
	backoff := retry.WithMaxRetries(10, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		queue, err = cfnats.Connect(ctx, url)
		if err != nil {
			slog.Warn("nats not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return queue, err
}
