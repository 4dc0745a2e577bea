package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/procureflow/internal/app"
	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/platform/cache"
	"github.com/odyssey-erp/procureflow/internal/platform/db"
	"github.com/odyssey-erp/procureflow/internal/sheets"
	"github.com/odyssey-erp/procureflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	var store sheets.Store
	switch cfg.SheetsBackend {
	case "postgres":
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		store = sheets.NewPostgresStore(pool)
	case "workbook":
		store = sheets.NewWorkbookStore(cfg.WorkbookPath)
	default:
		logger.Warn("sheets backend is process local, refresh tasks will be no-ops", slog.String("backend", cfg.SheetsBackend))
		store = sheets.NewMemoryStore(nil)
	}

	snapshots, closeCache, err := snapshotCache(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeCache()
	repo := sheets.NewRepository(store, sheets.RepositoryConfig{Cache: snapshots, Logger: logger})

	mailer := jobs.NewSMTPMailer(jobs.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	emailJob := jobs.NewEmailJob(mailer, logger)
	refreshJob := jobs.NewSheetsRefreshJob(repo, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskSheetsRefresh, Handler: refreshJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// snapshotCache picks the worker's snapshot cache. Only the redis cache is
// shared with the server, so refreshes against the memory cache are local.
func snapshotCache(ctx context.Context, cfg *app.Config, logger *slog.Logger) (sheets.SnapshotCache, func(), error) {
	if cfg.SheetsCache != "redis" {
		logger.Warn("sheets cache is process local, refresh tasks only warm the worker cache", slog.String("cache", cfg.SheetsCache))
		return sheets.NewMemoryCache(cfg.SheetsCacheTTL), func() {}, nil
	}
	client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	return sheets.NewRedisCache(client, cfg.SheetsCacheTTL), closeFn, nil
}
