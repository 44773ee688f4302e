package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aiadmin/ai-admin/internal/api"
	"github.com/aiadmin/ai-admin/internal/api/middleware"
	"github.com/aiadmin/ai-admin/internal/auth"
	"github.com/aiadmin/ai-admin/internal/config"
	"github.com/aiadmin/ai-admin/internal/events"
	"github.com/aiadmin/ai-admin/internal/jobs"
	"github.com/aiadmin/ai-admin/internal/metrics"
	"github.com/aiadmin/ai-admin/internal/platform/cli"
	"github.com/aiadmin/ai-admin/internal/platform/gemini"
	"github.com/aiadmin/ai-admin/internal/platform/kafka"
	"github.com/aiadmin/ai-admin/internal/platform/ollama"
	"github.com/aiadmin/ai-admin/internal/platform/postgres"
	"github.com/aiadmin/ai-admin/internal/platform/redis"
	"github.com/aiadmin/ai-admin/internal/task"
)

// application holds the wired dependencies of a running server.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *task.Registry
	queue    *task.TaskQueue
	events   *events.AsyncEmitter
	sweeper  *task.Sweeper
	metrics  *metrics.Metrics
	archive  api.TaskArchive
	auth     *middleware.AuthMiddleware

	closers []io.Closer
}

// appOptions lets tests replace collaborators that reach outside the process.
type appOptions struct {
	registerJobs func(*task.Registry) error
}

// newApplication wires the queue, its event sinks and the job runners. Sinks
// whose configuration is empty are skipped.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (app *application, err error) {
	app = &application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.shutdown(context.Background())
		}
	}()

	fanout := events.NewInMemoryEventEmitter(logger)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(cfg.Redis.Addr)
		app.closers = append(app.closers, client)
		fanout.RegisterHandler(redis.NewStateMirror(client, cfg.Redis.TTL, cfg.Redis.Channel, logger))
		logger.Info("task state mirror enabled", "redis_addr", cfg.Redis.Addr)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		app.closers = append(app.closers, publisher)
		fanout.RegisterHandler(publisher)
		logger.Info("task event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return app, fmt.Errorf("failed to open task archive database: %w", err)
		}
		app.closers = append(app.closers, db)
		archive := postgres.NewTaskArchive(db, logger)
		fanout.RegisterHandler(archive)
		app.archive = archive
		logger.Info("task archive enabled")
	}

	app.events = events.NewAsyncEmitter(fanout, events.DefaultBufferSize, logger)
	app.events.Start()

	queueOpts := []task.Option{task.WithObserver(events.NewTaskObserver(app.events, logger))}
	if cfg.Metrics.Enabled {
		app.metrics = metrics.New()
		queueOpts = append(queueOpts, task.WithObserver(app.metrics))
	}

	app.registry = task.NewRegistry()
	register := opts.registerJobs
	if register == nil {
		register = func(r *task.Registry) error { return registerJobs(ctx, r, cfg, logger) }
	}
	if err := register(app.registry); err != nil {
		return app, fmt.Errorf("failed to register job runners: %w", err)
	}

	app.queue = task.NewTaskQueue(app.registry, task.QueueConfig{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		JobTimeout:    cfg.Queue.JobTimeout,
	}, logger, queueOpts...)
	if app.metrics != nil {
		app.metrics.RegisterQueue(app.queue)
	}

	if cfg.Queue.Retention.Schedule != "" {
		sweeper, err := task.NewSweeper(app.queue, cfg.Queue.Retention.Schedule, cfg.Queue.Retention.MaxAge, logger)
		if err != nil {
			return app, err
		}
		app.sweeper = sweeper
		app.sweeper.Start()
	}

	if cfg.Auth.Enabled() {
		app.auth, err = newAuthMiddleware(cfg.Auth)
		if err != nil {
			return app, err
		}
	}

	logger.Info("task queue ready",
		"max_concurrent", app.queue.MaxConcurrent(),
		"kinds", app.registry.Kinds())
	return app, nil
}

// registerJobs binds the production runners. llm_generate is only available
// when a Gemini API key is configured.
func registerJobs(ctx context.Context, registry *task.Registry, cfg *config.Config, logger *slog.Logger) error {
	deps := jobs.Dependencies{
		Exec:             cli.NewExecRunner(logger),
		DockerBinary:     cfg.Docker.Binary,
		OllamaBinary:     cfg.Ollama.Binary,
		OllamaModelsPath: cfg.Ollama.ModelsPath,
		Ollama:           ollama.NewClient(cfg.Ollama.URL, cfg.Ollama.Timeout),
	}

	if cfg.LLM.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, logger, gemini.Config{
			APIKey: cfg.LLM.GeminiAPIKey,
			Model:  cfg.LLM.Model,
		})
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		deps.LLM = client
	} else {
		logger.Warn("llm.gemini_api_key not set, llm_generate tasks are disabled")
	}

	return jobs.Register(registry, deps)
}

func newAuthMiddleware(cfg config.AuthConfig) (*middleware.AuthMiddleware, error) {
	var (
		tokens middleware.TokenValidator
		keys   middleware.KeyVerifier
	)
	if cfg.JWTSecret != "" {
		svc, err := auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
		tokens = svc
	}
	if cfg.APIKeyHash != "" {
		verifier, err := auth.NewAPIKeyVerifier(cfg.APIKeyHash)
		if err != nil {
			return nil, fmt.Errorf("failed to create API key verifier: %w", err)
		}
		keys = verifier
	}
	return middleware.NewAuthMiddleware(tokens, keys), nil
}

// shutdown stops admission, waits for running jobs, drains pending events and
// then releases the sinks.
func (a *application) shutdown(ctx context.Context) error {
	var errs []error

	if a.sweeper != nil {
		if err := a.sweeper.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("retention sweeper: %w", err))
		}
	}
	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task queue: %w", err))
		}
	}
	if a.events != nil {
		if err := a.events.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("event emitter: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *application) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
