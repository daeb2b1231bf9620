package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gamecache/gamecache/internal/metrics"
	"github.com/gamecache/gamecache/pkg/types"
)

// SessionKeyPrefix namespaces game-session entries so a session preload can
// never collide with ordinary cache keys.
const SessionKeyPrefix = "session:"

// Config represents optimizer configuration
type Config struct {
	L1MaxEntries int           `yaml:"l1_max_entries"`
	L2MaxSize    int           `yaml:"l2_max_size"`
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

// Optimizer composes the in-process L1 tier, the shared L2 tier, metrics, and
// caller-supplied fallback computation into a single get/set contract. It
// owns eviction triggering, stampede collapsing, and promotion; the remote
// tier is never a hard dependency of the read path.
type Optimizer struct {
	l1      *L1Store
	l2      types.RemoteStore
	metrics *metrics.Collector
	logger  *slog.Logger
	sf      singleflight.Group

	defaultTTL time.Duration
	sessionTTL time.Duration
	l2MaxSize  int
}

// NewOptimizer creates an optimizer over the given remote store. A nil
// collector is replaced with a disabled one, so accounting stays consistent
// for callers without a metrics pipeline.
func NewOptimizer(cfg Config, l2 types.RemoteStore, collector *metrics.Collector, logger *slog.Logger) (*Optimizer, error) {
	if l2 == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		var err error
		collector, err = metrics.NewCollector(&metrics.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics collector: %w", err)
		}
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Second
	}

	return &Optimizer{
		l1:         NewL1Store(cfg.L1MaxEntries, logger),
		l2:         l2,
		metrics:    collector,
		logger:     logger,
		defaultTTL: cfg.DefaultTTL,
		sessionTTL: cfg.SessionTTL,
		l2MaxSize:  cfg.L2MaxSize,
	}, nil
}

// GetOption configures a single lookup.
type GetOption func(*getOptions)

type getOptions struct {
	fallback types.Fallback
	ttl      time.Duration
	hasTTL   bool
}

// WithFallback supplies the computation to run when both tiers miss. Its
// result is written through to both tiers and shared with every concurrent
// caller for the same key.
func WithFallback(fn types.Fallback) GetOption {
	return func(o *getOptions) { o.fallback = fn }
}

// WithTTL overrides the optimizer's default TTL for values stored by this
// lookup's fallback.
func WithTTL(ttl time.Duration) GetOption {
	return func(o *getOptions) {
		o.ttl = ttl
		o.hasTTL = true
	}
}

// Get looks key up in L1, then L2, then the fallback if one was supplied.
// An L2 hit is promoted into L1. A double miss without a fallback returns
// (nil, false, nil): absence is not an error. Remote failures degrade to
// misses; only a fallback failure is surfaced.
func (o *Optimizer) Get(ctx context.Context, key string, opts ...GetOption) (interface{}, bool, error) {
	var options getOptions
	for _, opt := range opts {
		opt(&options)
	}
	ttl := o.defaultTTL
	if options.hasTTL {
		ttl = options.ttl
	}

	o.metrics.RecordRequest()

	start := time.Now()
	value, ok := o.l1.Get(key)
	o.metrics.UpdateL1Latency(time.Since(start))
	o.metrics.RecordL1(ok)
	if ok {
		return value, true, nil
	}

	if value, ok := o.lookupL2(ctx, key, ttl); ok {
		return value, true, nil
	}

	if options.fallback == nil {
		return nil, false, nil
	}

	value, err := o.computeFallback(ctx, key, options.fallback, ttl)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set writes value through both tiers. The L1 write is synchronous and
// evicting; an L2 failure is logged, never surfaced, because L1 already
// holds the fresher value. A ttl of 0 stores without expiry.
func (o *Optimizer) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	o.store(ctx, key, value, ttl)
}

// WarmCache applies Set semantics to every entry. It is meant for startup or
// on-demand preloads, not the request hot path.
func (o *Optimizer) WarmCache(ctx context.Context, entries []types.WarmEntry) {
	for _, entry := range entries {
		o.store(ctx, entry.Key, entry.Value, entry.TTL)
	}
	o.logger.Info("cache warmed", "entries", len(entries))
}

// PreloadGameSession stores session data under a namespaced key with the
// short TTL tuned for active low-latency sessions.
func (o *Optimizer) PreloadGameSession(ctx context.Context, sessionID string, data interface{}) {
	o.store(ctx, SessionKey(sessionID), data, o.sessionTTL)
}

// SessionKey returns the cache key for a game session.
func SessionKey(sessionID string) string {
	return SessionKeyPrefix + sessionID
}

// Metrics returns a snapshot including derived hit rates.
func (o *Optimizer) Metrics() types.Metrics {
	o.metrics.SetL1Size(o.l1.Len())
	return o.metrics.Snapshot()
}

// ResetMetrics clears all counters and latency averages.
func (o *Optimizer) ResetMetrics() {
	o.metrics.Reset()
}

// Clear empties L1 and flushes the service's namespace in L2.
func (o *Optimizer) Clear(ctx context.Context) {
	o.l1.Clear()
	o.metrics.SetL1Size(0)

	if err := o.l2.FlushAll(ctx); err != nil {
		o.logger.Warn("remote flush failed", "error", err)
	}
}

// Sizes reports per-tier occupancy and capacity. L2MaxSize is the logical
// capacity carried for reporting; the remote tier owns its own eviction.
func (o *Optimizer) Sizes() types.TierSizes {
	return types.TierSizes{
		L1Size:    o.l1.Len(),
		L1MaxSize: o.l1.MaxEntries(),
		L2MaxSize: o.l2MaxSize,
	}
}

// L1 exposes the in-process store for the maintenance sweeper.
func (o *Optimizer) L1() *L1Store {
	return o.l1
}

// lookupL2 reads key from the remote tier and promotes a hit into L1. Any
// remote failure is a soft miss.
func (o *Optimizer) lookupL2(ctx context.Context, key string, ttl time.Duration) (interface{}, bool) {
	start := time.Now()
	data, err := o.l2.Get(ctx, key)
	o.metrics.UpdateL2Latency(time.Since(start))

	if err != nil {
		o.metrics.RecordL2(false)
		if !errors.Is(err, types.ErrNotFound) {
			o.logger.Warn("remote read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		o.metrics.RecordL2(false)
		o.logger.Warn("remote payload undecodable, treating as miss", "key", key, "error", err)
		return nil, false
	}

	o.metrics.RecordL2(true)
	o.l1.Set(key, value, ttl)
	o.metrics.SetL1Size(o.l1.Len())
	return value, true
}

// computeFallback runs the fallback under singleflight: one execution per
// cold key, its value or its error shared with every collapsed waiter.
func (o *Optimizer) computeFallback(ctx context.Context, key string, fallback types.Fallback, ttl time.Duration) (interface{}, error) {
	value, err, _ := o.sf.Do(key, func() (interface{}, error) {
		// A caller queued behind a finished computation finds the published
		// value in L1 instead of recomputing.
		if value, ok := o.l1.Get(key); ok {
			return value, nil
		}

		start := time.Now()
		value, err := fallback(ctx)
		o.metrics.ObserveFallback(time.Since(start))
		if err != nil {
			return nil, err
		}

		o.store(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fallback for key %q: %w", key, err)
	}
	return value, nil
}

// store is the write-through path shared by Set, WarmCache, session preload,
// and fallback publication.
func (o *Optimizer) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	start := time.Now()
	o.l1.Set(key, value, ttl)
	o.metrics.UpdateL1Latency(time.Since(start))
	o.metrics.SetL1Size(o.l1.Len())

	data, err := json.Marshal(value)
	if err != nil {
		o.logger.Warn("value not serializable, kept in L1 only", "key", key, "error", err)
		return
	}

	start = time.Now()
	if err := o.l2.Set(ctx, key, data, ttl); err != nil {
		o.logger.Warn("remote write failed", "key", key, "error", err)
	}
	o.metrics.UpdateL2Latency(time.Since(start))
}
