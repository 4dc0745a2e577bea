package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// RefreshScheduler re-fetches a sheet some time after a write, giving the
// backing store time to reflect it.
type RefreshScheduler interface {
	ScheduleRefresh(ctx context.Context, sheet Sheet, delay time.Duration) error
}

// RepositoryConfig groups optional collaborators.
type RepositoryConfig struct {
	Cache        SnapshotCache
	Scheduler    RefreshScheduler
	RefreshDelay time.Duration
	Logger       *slog.Logger
}

// Repository is the snapshot view over a Store that every screen reads from.
// Snapshots are replaced wholesale on refresh, never patched.
type Repository struct {
	store     Store
	cache     SnapshotCache
	scheduler RefreshScheduler
	delay     time.Duration
	logger    *slog.Logger
	loads     singleflight.Group
	now       func() time.Time

	// generations counts writes per sheet. A load caches its snapshot only if
	// no write landed while it was fetching.
	mu          sync.Mutex
	generations map[Sheet]uint64
}

// NewRepository constructs a Repository. A nil cache falls back to an
// in-process cache without expiry.
func NewRepository(store Store, cfg RepositoryConfig) *Repository {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:       store,
		cache:       cache,
		scheduler:   cfg.Scheduler,
		delay:       cfg.RefreshDelay,
		logger:      logger,
		now:         time.Now,
		generations: make(map[Sheet]uint64),
	}
}

// Get returns the cached snapshot, loading it on a miss.
func (r *Repository) Get(ctx context.Context, sheet Sheet) (Snapshot, error) {
	if !sheet.Valid() {
		return Snapshot{}, fmt.Errorf("%w: sheet %q", shared.ErrNotFound, sheet)
	}
	snap, ok, err := r.cache.Get(ctx, sheet)
	if err != nil {
		r.logger.Warn("sheet cache read", slog.String("sheet", string(sheet)), slog.Any("error", err))
	}
	if ok {
		return snap, nil
	}
	return r.load(ctx, sheet)
}

// Refresh bypasses the cache, fetching and storing a fresh snapshot.
func (r *Repository) Refresh(ctx context.Context, sheet Sheet) (Snapshot, error) {
	if !sheet.Valid() {
		return Snapshot{}, fmt.Errorf("%w: sheet %q", shared.ErrNotFound, sheet)
	}
	return r.load(ctx, sheet)
}

// RefreshAll reloads every sheet concurrently.
func (r *Repository) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sheet := range All() {
		g.Go(func() error {
			_, err := r.load(ctx, sheet)
			return err
		})
	}
	return g.Wait()
}

// Invalidate drops the cached snapshot so the next Get reloads it.
func (r *Repository) Invalidate(ctx context.Context, sheet Sheet) error {
	return r.cache.Invalidate(ctx, sheet)
}

// Write posts a batch, then invalidates the sheet and schedules the delayed
// refresh. A failed write is never retried.
func (r *Repository) Write(ctx context.Context, sheet Sheet, mode Mode, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkPost(sheet, mode, rows); err != nil {
		return shared.Validationf("%s %s: %v", mode, sheet, err)
	}
	if err := r.store.Post(ctx, sheet, mode, rows); err != nil {
		return shared.UpstreamError(fmt.Sprintf("%s %s", mode, sheet), err)
	}
	r.mu.Lock()
	r.generations[sheet]++
	r.mu.Unlock()
	r.loads.Forget(string(sheet))
	if err := r.cache.Invalidate(ctx, sheet); err != nil {
		r.logger.Warn("sheet cache invalidate", slog.String("sheet", string(sheet)), slog.Any("error", err))
	}
	if r.scheduler != nil {
		if err := r.scheduler.ScheduleRefresh(ctx, sheet, r.delay); err != nil {
			r.logger.Warn("schedule sheet refresh", slog.String("sheet", string(sheet)), slog.Any("error", err))
		}
	}
	return nil
}

func (r *Repository) generation(sheet Sheet) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[sheet]
}

func (r *Repository) load(ctx context.Context, sheet Sheet) (Snapshot, error) {
	resultChan := r.loads.DoChan(string(sheet), func() (interface{}, error) {
		gen := r.generation(sheet)
		rows, err := r.store.Fetch(context.WithoutCancel(ctx), sheet)
		if err != nil {
			return Snapshot{}, shared.UpstreamError(fmt.Sprintf("fetch %s", sheet), err)
		}
		snap := Snapshot{Sheet: sheet, Rows: rows, FetchedAt: r.now()}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.generations[sheet] != gen {
			r.logger.Debug("sheet snapshot superseded by write", slog.String("sheet", string(sheet)))
			return snap, nil
		}
		if err := r.cache.Put(context.WithoutCancel(ctx), snap); err != nil {
			r.logger.Warn("sheet cache write", slog.String("sheet", string(sheet)), slog.Any("error", err))
		}
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}
