package numbering

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/observability"
	"github.com/odyssey-erp/procureflow/internal/shared"
)

type numberBook struct {
	mu      sync.Mutex
	numbers []string
}

func (b *numberBook) load(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.numbers...), nil
}

func (b *numberBook) add(n string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.numbers = append(b.numbers, n)
}

func newLocker(t *testing.T) *redislock.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client)
}

func TestAllocatorSerializesConcurrentWriters(t *testing.T) {
	book := &numberBook{numbers: []string{"IS-0004"}}
	alloc := NewAllocator(AllocatorConfig{Locker: newLocker(t), LockTTL: 5 * time.Second, Metrics: observability.NewMetrics()})

	var wg sync.WaitGroup
	results := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := alloc.Allocate(context.Background(), Request{
				Series: "issue",
				Scope:  "all",
				Load:   book.load,
				Next:   NextIssueNumber,
			})
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			book.add(n)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for n := range results {
		require.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	require.Len(t, seen, 10)
	require.True(t, seen["IS-0005"])
	require.True(t, seen["IS-0014"])
}

func TestAllocatorRetriesLostClaim(t *testing.T) {
	claims := NewMemoryClaimer()
	require.NoError(t, claims.CheckAndInsert(context.Background(), claimKey("indent", "IN-0001"), "indent"))
	alloc := NewAllocator(AllocatorConfig{Claims: claims})

	n, err := alloc.Allocate(context.Background(), Request{
		Series: "indent",
		Load:   func(context.Context) ([]string, error) { return nil, nil },
		Next:   NextIndentNumber,
	})
	require.NoError(t, err)
	require.Equal(t, "IN-0002", n)
}

func TestAllocatorGivesUpAfterMaxAttempts(t *testing.T) {
	claims := NewMemoryClaimer()
	alloc := NewAllocator(AllocatorConfig{Claims: claims, MaxAttempts: 1})
	req := Request{
		Series: "lift",
		Load:   func(context.Context) ([]string, error) { return nil, nil },
		Next:   func([]string) string { return "LF-0001" },
	}
	_, err := alloc.Allocate(context.Background(), req)
	require.NoError(t, err)
	_, err = alloc.Allocate(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	require.NoError(t, alloc.Release(context.Background(), "lift", "LF-0001"))
	n, err := alloc.Allocate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "LF-0001", n)
}

func TestAllocatorLockBusy(t *testing.T) {
	locker := newLocker(t)
	held, err := locker.Obtain(context.Background(), shared.SequenceLockKey("po", "24-25"), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	alloc := NewAllocator(AllocatorConfig{Locker: locker, LockTTL: 100 * time.Millisecond})
	_, err = alloc.Allocate(context.Background(), Request{
		Series: "po",
		Scope:  "24-25",
		Load:   func(context.Context) ([]string, error) { return nil, nil },
		Next:   func([]string) string { return "JJSPL/STORES/24-25/1" },
	})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = alloc.Allocate(ctx, Request{
		Series: "po",
		Scope:  "24-25",
		Load:   func(context.Context) ([]string, error) { return nil, nil },
		Next:   func([]string) string { return "JJSPL/STORES/24-25/1" },
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, shared.ErrIdempotencyConflict)
}
