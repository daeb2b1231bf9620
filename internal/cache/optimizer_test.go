package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamecache/gamecache/internal/remote"
	"github.com/gamecache/gamecache/pkg/types"
)

func newTestOptimizer(t *testing.T, l2 types.RemoteStore) *Optimizer {
	t.Helper()

	if l2 == nil {
		l2 = remote.NewMemoryStore()
	}
	optimizer, err := NewOptimizer(Config{
		L1MaxEntries: 16,
		L2MaxSize:    100,
		DefaultTTL:   time.Minute,
		SessionTTL:   30 * time.Second,
	}, l2, nil, nil)
	require.NoError(t, err)
	return optimizer
}

// unavailableStore fails every call, standing in for a down remote tier.
type unavailableStore struct{}

var errRemoteDown = errors.New("connection refused")

func (unavailableStore) Get(context.Context, string) ([]byte, error) { return nil, errRemoteDown }
func (unavailableStore) Set(context.Context, string, []byte, time.Duration) error {
	return errRemoteDown
}
func (unavailableStore) Del(context.Context, string) error { return errRemoteDown }
func (unavailableStore) Exists(context.Context, string) (bool, error) {
	return false, errRemoteDown
}
func (unavailableStore) FlushAll(context.Context) error { return errRemoteDown }
func (unavailableStore) Ping(context.Context) error { return errRemoteDown }
func (unavailableStore) Close() error { return nil }

func TestOptimizer_ReadYourWrite(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	optimizer.Set(ctx, "player:7", map[string]interface{}{"elo": 1420}, 0)

	value, ok, err := optimizer.Get(ctx, "player:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"elo": 1420}, value)
}

func TestOptimizer_AbsentWithoutFallback(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)

	value, ok, err := optimizer.Get(context.Background(), "never-set")
	assert.NoError(t, err, "a miss with no fallback must not be an error")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestOptimizer_L2HitPromotesToL1(t *testing.T) {
	store := remote.NewMemoryStore()
	optimizer := newTestOptimizer(t, store)
	ctx := context.Background()

	// Seed only the remote tier, as another process would.
	data, err := json.Marshal("tournament-bracket")
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "match:9", data, 0))

	value, ok, err := optimizer.Get(ctx, "match:9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tournament-bracket", value)

	// The hit must have been promoted into L1.
	promoted, ok := optimizer.l1.Get("match:9")
	require.True(t, ok, "L2 hit was not promoted into L1")
	assert.Equal(t, "tournament-bracket", promoted)

	m := optimizer.Metrics()
	assert.Equal(t, uint64(1), m.L2Hits)
	assert.Equal(t, uint64(1), m.L1Misses)
}

func TestOptimizer_FallbackComputesAndStores(t *testing.T) {
	store := remote.NewMemoryStore()
	optimizer := newTestOptimizer(t, store)
	ctx := context.Background()

	var calls atomic.Int32
	fallback := func(context.Context) (interface{}, error) {
		calls.Add(1)
		return "computed", nil
	}

	value, ok, err := optimizer.Get(ctx, "cold", WithFallback(fallback), WithTTL(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "computed", value)
	assert.Equal(t, int32(1), calls.Load())

	// Result was written through to both tiers.
	_, ok = optimizer.l1.Get("cold")
	assert.True(t, ok, "fallback result missing from L1")
	exists, err := store.Exists(ctx, "cold")
	require.NoError(t, err)
	assert.True(t, exists, "fallback result missing from L2")

	// A second lookup is a pure L1 hit.
	_, ok, err = optimizer.Get(ctx, "cold", WithFallback(fallback))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(1), calls.Load(), "fallback recomputed on a warm key")
}

func TestOptimizer_StampedeCollapsing(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	const callers = 50
	var invocations atomic.Int32
	fallback := func(context.Context) (interface{}, error) {
		invocations.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "expensive", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, _, err := optimizer.Get(ctx, "hot-and-cold", WithFallback(fallback))
			results[i] = value
			errs[i] = err
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), invocations.Load(), "fallback must run once for concurrent callers")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "expensive", results[i])
	}
}

func TestOptimizer_FallbackErrorReachesAllWaiters(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	errBoom := errors.New("boom")
	release := make(chan struct{})
	var invocations atomic.Int32
	fallback := func(context.Context) (interface{}, error) {
		invocations.Add(1)
		<-release
		return nil, errBoom
	}

	const callers = 10
	var started, wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		started.Add(1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, _, err := optimizer.Get(ctx, "doomed", WithFallback(fallback))
			errs[i] = err
		}(i)
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond) // let every caller reach the in-flight marker
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), invocations.Load())
	for i := 0; i < callers; i++ {
		require.Error(t, errs[i])
		assert.ErrorIs(t, errs[i], errBoom, "the original failure must be surfaced verbatim")
	}

	// Nothing was published: a later lookup recomputes.
	_, ok, err := optimizer.Get(ctx, "doomed")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestOptimizer_RemoteFailureIsInvisible(t *testing.T) {
	optimizer := newTestOptimizer(t, unavailableStore{})
	ctx := context.Background()

	// Writes succeed locally even with the remote down.
	optimizer.Set(ctx, "k", "v", 0)
	value, ok, err := optimizer.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)

	// A double miss with the remote down runs the fallback, not an error.
	value, ok, err = optimizer.Get(ctx, "cold", WithFallback(func(context.Context) (interface{}, error) {
		return 42, nil
	}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, value)

	// A double miss without a fallback is plain absence.
	_, ok, err = optimizer.Get(ctx, "other")
	assert.NoError(t, err)
	assert.False(t, ok)

	m := optimizer.Metrics()
	assert.Equal(t, uint64(2), m.L2Misses, "remote failures must count as misses")
}

func TestOptimizer_WarmCache(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	optimizer.WarmCache(ctx, []types.WarmEntry{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
	})

	var invocations atomic.Int32
	fallback := func(context.Context) (interface{}, error) {
		invocations.Add(1)
		return nil, errors.New("must not run")
	}

	a, ok, err := optimizer.Get(ctx, "a", WithFallback(fallback))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, a)

	b, ok, err := optimizer.Get(ctx, "b", WithFallback(fallback))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, b)

	assert.Equal(t, int32(0), invocations.Load(), "warmed keys must be served without fallback")
}

func TestOptimizer_PreloadGameSession(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	optimizer.PreloadGameSession(ctx, "abc123", map[string]interface{}{"turn": 3})

	value, ok, err := optimizer.Get(ctx, SessionKey("abc123"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"turn": 3}, value)

	// The namespaced entry carries the tuned session TTL.
	element, exists := optimizer.l1.items[SessionKey("abc123")]
	require.True(t, exists)
	assert.Equal(t, optimizer.sessionTTL, element.Value.(*types.Entry).TTL)
}

func TestOptimizer_TTLExpiry(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	optimizer.Set(ctx, "volatile", "v", 50*time.Millisecond)

	_, ok, err := optimizer.Get(ctx, "volatile")
	require.NoError(t, err)
	require.True(t, ok, "entry expired before its TTL elapsed")

	time.Sleep(120 * time.Millisecond)

	_, ok, err = optimizer.Get(ctx, "volatile")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be absent after its TTL elapsed")
}

func TestOptimizer_Clear(t *testing.T) {
	store := remote.NewMemoryStore()
	optimizer := newTestOptimizer(t, store)
	ctx := context.Background()

	optimizer.Set(ctx, "a", 1, 0)
	optimizer.Set(ctx, "b", 2, 0)
	require.Equal(t, 2, optimizer.l1.Len())
	require.Equal(t, 2, store.Len())

	optimizer.Clear(ctx)

	assert.Equal(t, 0, optimizer.l1.Len())
	assert.Equal(t, 0, store.Len())
}

func TestOptimizer_MetricsAndSizes(t *testing.T) {
	optimizer := newTestOptimizer(t, nil)
	ctx := context.Background()

	optimizer.Set(ctx, "a", 1, 0)

	for i := 0; i < 4; i++ {
		_, _, err := optimizer.Get(ctx, "a")
		require.NoError(t, err)
	}
	for i := 0; i < 6; i++ {
		_, _, err := optimizer.Get(ctx, fmt.Sprintf("missing-%d", i))
		require.NoError(t, err)
	}

	m := optimizer.Metrics()
	assert.Equal(t, uint64(10), m.TotalRequests)
	assert.Equal(t, uint64(4), m.L1Hits)
	assert.Equal(t, uint64(6), m.L1Misses)
	assert.Equal(t, uint64(6), m.L2Misses)
	assert.InDelta(t, 0.4, m.HitRate, 1e-9)
	assert.GreaterOrEqual(t, m.HitRate, 0.0)
	assert.LessOrEqual(t, m.HitRate, 1.0)

	sizes := optimizer.Sizes()
	assert.Equal(t, 1, sizes.L1Size)
	assert.Equal(t, 16, sizes.L1MaxSize)
	assert.Equal(t, 100, sizes.L2MaxSize)

	optimizer.ResetMetrics()
	m = optimizer.Metrics()
	assert.Zero(t, m.TotalRequests)
	assert.Zero(t, m.L1Hits)
	assert.Zero(t, m.HitRate)
}
