package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/shared"
)

// Claimer makes an allocated number final through a conditional insert.
// shared.IdempotencyStore is the PostgreSQL implementation.
type Claimer interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Request describes one allocation. Load must bypass any snapshot cache.
type Request struct {
	Series string
	Scope  string
	Load   func(ctx context.Context) ([]string, error)
	Next   func(existing []string) string
}

// AllocatorConfig wires the allocator collaborators. A nil Locker allocates
// without the distributed lock and relies on claims alone.
type AllocatorConfig struct {
	Locker      *redislock.Client
	Claims      Claimer
	LockTTL     time.Duration
	MaxAttempts int
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Allocator hands out sequence numbers with a single writer per scope.
type Allocator struct {
	locker   *redislock.Client
	claims   Claimer
	ttl      time.Duration
	attempts int
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewAllocator constructs an Allocator.
func NewAllocator(cfg AllocatorConfig) *Allocator {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	claims := cfg.Claims
	if claims == nil {
		claims = NewMemoryClaimer()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{locker: cfg.Locker, claims: claims, ttl: ttl, attempts: attempts, metrics: cfg.Metrics, logger: logger}
}

// Allocate locks the scope, reloads the numbers in use, computes the next one
// and claims it. A lost claim is added to the in-use set and retried.
func (a *Allocator) Allocate(ctx context.Context, req Request) (string, error) {
	if req.Load == nil || req.Next == nil {
		return "", errors.New("numbering: allocation request incomplete")
	}
	if a.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, a.ttl)
		defer cancel()
		lock, err := a.locker.Obtain(lockCtx, shared.SequenceLockKey(req.Series, req.Scope), a.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
		})
		// A busy lock surfaces as the lock timeout expiring, not ErrNotObtained.
		if errors.Is(err, redislock.ErrNotObtained) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			a.metrics.RecordSequenceConflict(req.Series)
			return "", fmt.Errorf("numbering: %s %s lock busy: %w", req.Series, req.Scope, shared.ErrIdempotencyConflict)
		}
		if err != nil {
			return "", fmt.Errorf("numbering: obtain %s lock: %w", req.Series, err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				a.logger.Warn("release sequence lock", slog.String("series", req.Series), slog.Any("error", err))
			}
		}()
	}

	existing, err := req.Load(ctx)
	if err != nil {
		return "", err
	}
	inUse := append([]string(nil), existing...)
	for attempt := 0; attempt < a.attempts; attempt++ {
		candidate := req.Next(inUse)
		err := a.claims.CheckAndInsert(ctx, claimKey(req.Series, candidate), req.Series)
		if err == nil {
			a.metrics.RecordSequenceAllocation(req.Series)
			return candidate, nil
		}
		if !errors.Is(err, shared.ErrIdempotencyConflict) {
			return "", fmt.Errorf("numbering: claim %s: %w", candidate, err)
		}
		a.metrics.RecordSequenceConflict(req.Series)
		a.logger.Info("sequence claim lost", slog.String("series", req.Series), slog.String("number", candidate))
		inUse = append(inUse, candidate)
	}
	return "", fmt.Errorf("numbering: %s exhausted %d attempts: %w", req.Series, a.attempts, shared.ErrIdempotencyConflict)
}

// Release gives a claimed number back after the write that used it failed.
func (a *Allocator) Release(ctx context.Context, series, number string) error {
	return a.claims.Delete(ctx, claimKey(series, number))
}

func claimKey(series, number string) string {
	return fmt.Sprintf("sequence:%s:%s", series, number)
}

// MemoryClaimer keeps claims in process.
type MemoryClaimer struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewMemoryClaimer constructs an empty claim set.
func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{keys: make(map[string]string)}
}

// CheckAndInsert claims key once.
func (c *MemoryClaimer) CheckAndInsert(ctx context.Context, key, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	c.keys[key] = module
	return nil
}

// Delete forgets key.
func (c *MemoryClaimer) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}
