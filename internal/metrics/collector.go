package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamecache/gamecache/pkg/types"
)

// Collector accumulates per-tier hit/miss counts and rolling latency
// averages. It is pure bookkeeping: no I/O happens on the record path, and
// the optional Prometheus exposition server is started separately.
type Collector struct {
	mu     sync.Mutex
	config *Config

	l1Hits        uint64
	l1Misses      uint64
	l2Hits        uint64
	l2Misses      uint64
	totalRequests uint64

	// Incremental means in nanoseconds: avg += (sample - avg) / n.
	l1LatencyAvg float64
	l2LatencyAvg float64
	l1Samples    uint64
	l2Samples    uint64

	lastReset time.Time

	// Prometheus metrics
	registry         *prometheus.Registry
	lookupCounter    *prometheus.CounterVec
	tierLatency      *prometheus.GaugeVec
	l1SizeGauge      prometheus.Gauge
	hitRateGauge     prometheus.Gauge
	fallbackDuration prometheus.Histogram

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      8080,
			Path:      "/metrics",
			Namespace: "gamecache",
		}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	collector := &Collector{
		config:    config,
		registry:  prometheus.NewRegistry(),
		lastReset: time.Now(),
	}

	if err := collector.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return collector, nil
}

// Start starts the metrics exposition server
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the metrics exposition server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordRequest counts one lookup entering the optimizer.
func (c *Collector) RecordRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

// RecordL1 records an L1 lookup outcome.
func (c *Collector) RecordL1(hit bool) {
	c.mu.Lock()
	if hit {
		c.l1Hits++
	} else {
		c.l1Misses++
	}
	c.mu.Unlock()

	c.lookupCounter.With(prometheus.Labels{
		"tier":   "l1",
		"result": resultLabel(hit),
	}).Inc()
}

// RecordL2 records an L2 lookup outcome.
func (c *Collector) RecordL2(hit bool) {
	c.mu.Lock()
	if hit {
		c.l2Hits++
	} else {
		c.l2Misses++
	}
	c.mu.Unlock()

	c.lookupCounter.With(prometheus.Labels{
		"tier":   "l2",
		"result": resultLabel(hit),
	}).Inc()
}

// UpdateL1Latency folds one L1 operation latency into the rolling average.
func (c *Collector) UpdateL1Latency(d time.Duration) {
	c.mu.Lock()
	c.l1Samples++
	c.l1LatencyAvg += (float64(d.Nanoseconds()) - c.l1LatencyAvg) / float64(c.l1Samples)
	avg := c.l1LatencyAvg
	c.mu.Unlock()

	c.tierLatency.With(prometheus.Labels{"tier": "l1"}).Set(avg / float64(time.Second))
}

// UpdateL2Latency folds one L2 operation latency into the rolling average.
func (c *Collector) UpdateL2Latency(d time.Duration) {
	c.mu.Lock()
	c.l2Samples++
	c.l2LatencyAvg += (float64(d.Nanoseconds()) - c.l2LatencyAvg) / float64(c.l2Samples)
	avg := c.l2LatencyAvg
	c.mu.Unlock()

	c.tierLatency.With(prometheus.Labels{"tier": "l2"}).Set(avg / float64(time.Second))
}

// ObserveFallback records the duration of one fallback computation.
func (c *Collector) ObserveFallback(d time.Duration) {
	c.fallbackDuration.Observe(d.Seconds())
}

// SetL1Size updates the L1 occupancy gauge.
func (c *Collector) SetL1Size(n int) {
	c.l1SizeGauge.Set(float64(n))
}

// Snapshot returns the current metrics including derived hit rates.
func (c *Collector) Snapshot() types.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := types.Metrics{
		L1Hits:        c.l1Hits,
		L1Misses:      c.l1Misses,
		L2Hits:        c.l2Hits,
		L2Misses:      c.l2Misses,
		TotalRequests: c.totalRequests,
		AvgL1Latency:  time.Duration(c.l1LatencyAvg),
		AvgL2Latency:  time.Duration(c.l2LatencyAvg),
	}

	if c.totalRequests > 0 {
		m.HitRate = float64(c.l1Hits+c.l2Hits) / float64(c.totalRequests)
	}
	if total := c.l1Hits + c.l1Misses; total > 0 {
		m.L1HitRate = float64(c.l1Hits) / float64(total)
	}
	if total := c.l2Hits + c.l2Misses; total > 0 {
		m.L2HitRate = float64(c.l2Hits) / float64(total)
	}

	c.hitRateGauge.Set(m.HitRate)
	return m
}

// Reset clears all counters and averages.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.l1Hits = 0
	c.l1Misses = 0
	c.l2Hits = 0
	c.l2Misses = 0
	c.totalRequests = 0
	c.l1LatencyAvg = 0
	c.l2LatencyAvg = 0
	c.l1Samples = 0
	c.l2Samples = 0
	c.lastReset = time.Now()
}

// Registry exposes the prometheus registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Helper methods

func resultLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (c *Collector) initMetrics() error {
	c.lookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "lookups_total",
			Help:      "Total number of tier lookups by result",
		},
		[]string{"tier", "result"},
	)

	c.tierLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "tier_latency_avg_seconds",
			Help:      "Rolling average lookup latency per tier",
		},
		[]string{"tier"},
	)

	c.l1SizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Name:      "l1_entries",
		Help:      "Current number of entries in the in-process tier",
	})

	c.hitRateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Name:      "hit_rate",
		Help:      "Fraction of lookups satisfied by either cache tier",
	})

	c.fallbackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Name:      "fallback_duration_seconds",
		Help:      "Duration of fallback computations on double misses",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
	})

	for _, collector := range []prometheus.Collector{
		c.lookupCounter,
		c.tierLatency,
		c.l1SizeGauge,
		c.hitRateGauge,
		c.fallbackDuration,
	} {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}
