package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/procureflow/internal/app"
	"github.com/odyssey-erp/procureflow/internal/attachments"
	"github.com/odyssey-erp/procureflow/internal/numbering"
	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/platform/cache"
	"github.com/odyssey-erp/procureflow/internal/platform/db"
	"github.com/odyssey-erp/procureflow/internal/procurement"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
	"github.com/odyssey-erp/procureflow/internal/workflow"
	"github.com/odyssey-erp/procureflow/jobs"
)

// runtime holds the long-lived clients shared by the server and worker.
type runtime struct {
	cfg     *app.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	pool    *pgxpool.Pool
	redis   *redis.Client
	jobs    *jobs.Client
	gcs     *attachments.GCSBackend
	sheets  *sheets.Repository
	service *procurement.Service
}

func (rt *runtime) redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: rt.cfg.RedisAddr, Password: rt.cfg.RedisPassword, DB: rt.cfg.RedisDB}
}

func (rt *runtime) Close() {
	if rt.jobs != nil {
		if err := rt.jobs.Close(); err != nil {
			rt.logger.Warn("jobs client close", slog.Any("error", err))
		}
	}
	if rt.gcs != nil {
		if err := rt.gcs.Close(); err != nil {
			rt.logger.Warn("gcs close", slog.Any("error", err))
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// newRuntime connects the configured backends and assembles the service.
func newRuntime(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	needsPG := cfg.SheetsBackend == "postgres"
	if needsPG {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		if err := db.Migrate(ctx, pool); err != nil {
			return nil, err
		}
	}

	client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	rt.redis = client
	rt.jobs = jobs.NewClient(rt.redisOpts(), logger)

	var store sheets.Store
	switch cfg.SheetsBackend {
	case "postgres":
		store = sheets.NewPostgresStore(rt.pool)
	case "workbook":
		store = sheets.NewWorkbookStore(cfg.WorkbookPath)
	default:
		store = sheets.NewMemoryStore(nil)
	}
	var snapshots sheets.SnapshotCache = sheets.NewMemoryCache(cfg.SheetsCacheTTL)
	if cfg.SheetsCache == "redis" {
		snapshots = sheets.NewRedisCache(client, cfg.SheetsCacheTTL)
	}
	rt.sheets = sheets.NewRepository(store, sheets.RepositoryConfig{
		Cache:        snapshots,
		Scheduler:    rt.jobs,
		RefreshDelay: cfg.SheetsRefreshDelay,
		Logger:       logger,
	})

	backend, err := rt.attachmentBackend(ctx)
	if err != nil {
		return nil, err
	}

	var claims numbering.Claimer = numbering.NewMemoryClaimer()
	var audit procurement.AuditPort
	if rt.pool != nil {
		claims = shared.NewIdempotencyStore(rt.pool)
		audit = shared.NewAuditLogger(rt.pool)
	}
	allocator := numbering.NewAllocator(numbering.AllocatorConfig{
		Locker:      redislock.New(client),
		Claims:      claims,
		LockTTL:     cfg.SequenceLockTTL,
		MaxAttempts: cfg.SequenceAttempts,
		Metrics:     rt.metrics,
		Logger:      logger,
	})

	catalog, err := workflow.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	rt.service = procurement.NewService(procurement.Deps{
		Sheets:    rt.sheets,
		Catalog:   catalog,
		Uploads:   attachments.NewService(backend, rt.jobs, logger),
		Allocator: allocator,
		Audit:     audit,
		Metrics:   rt.metrics,
		Logger:    logger,
	}, procurement.Config{
		POSeries:    numbering.NewSeries(cfg.POPrefix),
		RoundPlaces: cfg.CostingRoundPlaces,
		Folders: procurement.Folders{
			PurchaseOrders: cfg.FolderPurchaseOrders,
			Indents:        cfg.FolderIndents,
			BillPhotos:     cfg.FolderBillPhotos,
			Mapping: map[string]string{
				"bill-photos":    cfg.FolderBillPhotos,
				"product-photos": cfg.FolderProductPhotos,
				"comparison":     cfg.FolderComparison,
			},
		},
	})
	ok = true
	return rt, nil
}

func (rt *runtime) attachmentBackend(ctx context.Context) (attachments.Backend, error) {
	switch rt.cfg.AttachmentsBackend {
	case "minio":
		return attachments.NewMinioBackend(ctx, attachments.MinioConfig{
			Endpoint:  rt.cfg.MinioEndpoint,
			AccessKey: rt.cfg.MinioAccessKey,
			SecretKey: rt.cfg.MinioSecretKey,
			Bucket:    rt.cfg.MinioBucket,
			UseSSL:    rt.cfg.MinioUseSSL,
			LinkTTL:   rt.cfg.MinioLinkTTL,
		})
	case "gcs":
		backend, err := attachments.NewGCSBackend(ctx, rt.cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		rt.gcs = backend
		return backend, nil
	case "memory":
		return attachments.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("attachments backend %q not supported", rt.cfg.AttachmentsBackend)
}
