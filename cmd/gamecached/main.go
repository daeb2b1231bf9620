// Command gamecached runs the tiered cache service: an in-process L1 tier
// over a shared Redis L2 tier, with Prometheus metrics exposition and a
// background expiry sweeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamecache/gamecache/internal/cache"
	"github.com/gamecache/gamecache/internal/circuit"
	"github.com/gamecache/gamecache/internal/config"
	"github.com/gamecache/gamecache/internal/metrics"
	"github.com/gamecache/gamecache/internal/remote"
	"github.com/gamecache/gamecache/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gamecached: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Global)
	if err != nil {
		return err
	}
	defer closeLog()

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Global.MetricsPort,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
	})
	if err != nil {
		return err
	}

	store, err := newRemoteStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	optimizer, err := cache.NewOptimizer(cache.Config{
		L1MaxEntries: cfg.Cache.L1MaxEntries,
		L2MaxSize:    cfg.Cache.L2MaxSize,
		DefaultTTL:   cfg.Cache.DefaultTTL.Std(),
		SessionTTL:   cfg.Cache.SessionTTL.Std(),
	}, store, collector, logger)
	if err != nil {
		return err
	}

	sweeper := cache.NewSweeper(optimizer.L1(), cfg.Cache.SweepInterval.Std(), cfg.Cache.SweepBatchSize, logger)
	sweeper.Start()
	defer sweeper.Stop()

	ctx := context.Background()
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := collector.Stop(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("gamecached started",
		"l1_max_entries", cfg.Cache.L1MaxEntries,
		"redis_addr", cfg.Redis.Addr,
		"metrics_port", cfg.Global.MetricsPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", "signal", sig.String())
	return nil
}

// newRemoteStore picks the shared tier implementation: Redis when an address
// is configured, the in-memory stand-in otherwise (local development).
func newRemoteStore(cfg *config.Configuration, logger *slog.Logger) (types.RemoteStore, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("no redis address configured, using in-memory remote store")
		return remote.NewMemoryStore(), nil
	}

	var breaker *circuit.Breaker
	if cfg.Breaker.Enabled {
		breaker = circuit.New(circuit.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Interval:         cfg.Breaker.Interval.Std(),
			Timeout:          cfg.Breaker.Timeout.Std(),
			OnStateChange: func(from, to circuit.State) {
				logger.Warn("remote tier circuit state changed",
					"from", from.String(), "to", to.String())
			},
		})
	}

	store := remote.NewRedisStore(remote.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		KeyPrefix:    cfg.Redis.KeyPrefix,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout.Std(),
		ReadTimeout:  cfg.Redis.ReadTimeout.Std(),
		WriteTimeout: cfg.Redis.WriteTimeout.Std(),
		Breaker:      breaker,
	}, logger)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout.Std())
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		// The service still works local-only; the breaker handles recovery.
		logger.Warn("remote tier unreachable at startup", "error", err)
	}

	return store, nil
}

func newLogger(cfg config.GlobalConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stdout
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeLog = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeLog, nil
}
