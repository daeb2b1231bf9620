package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamecache/gamecache/internal/circuit"
	"github.com/gamecache/gamecache/pkg/types"
)

// Config represents the Redis-backed store configuration
type Config struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Breaker guards every call; nil disables circuit breaking.
	Breaker *circuit.Breaker
}

// RedisStore adapts a Redis server to the types.RemoteStore contract. All
// keys are namespaced under the configured prefix so several services can
// share one Redis deployment.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

var _ types.RemoteStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed remote store.
func NewRedisStore(cfg Config, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisStore{
		client:  client,
		prefix:  cfg.KeyPrefix,
		breaker: cfg.Breaker,
		logger:  logger,
	}
}

// Get returns the stored bytes for key, or types.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.guard(func() error {
		b, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return types.ErrNotFound
			}
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value under key with an optional expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.guard(func() error {
		return s.client.Set(ctx, s.buildKey(key), value, ttl).Err()
	})
}

// Del removes key. Deleting an absent key is not an error.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.guard(func() error {
		return s.client.Del(ctx, s.buildKey(key)).Err()
	})
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := s.guard(func() error {
		count, err := s.client.Exists(ctx, s.buildKey(key)).Result()
		if err != nil {
			return err
		}
		n = count
		return nil
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FlushAll empties the store's namespace. With a key prefix configured this
// scans and deletes only the namespaced keys, so other tenants of a shared
// Redis are untouched; without a prefix it issues FLUSHALL.
func (s *RedisStore) FlushAll(ctx context.Context) error {
	return s.guard(func() error {
		if s.prefix == "" {
			return s.client.FlushAll(ctx).Err()
		}

		iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		return iter.Err()
	})
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.guard(func() error {
		return s.client.Ping(ctx).Err()
	})
}

// Close releases the client's connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// guard routes a call through the circuit breaker when one is configured.
// Not-found is a successful outcome and must not trip the breaker.
func (s *RedisStore) guard(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}

	var notFound bool
	err := s.breaker.Execute(func() error {
		err := fn()
		if errors.Is(err, types.ErrNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if notFound {
		return types.ErrNotFound
	}
	return nil
}
