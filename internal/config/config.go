package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration wraps time.Duration so YAML values like "90s" or "5m" parse.
// Bare integers are accepted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Configuration represents the complete service configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Breaker    BreakerConfig    `yaml:"circuit_breaker"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
}

// CacheConfig represents cache tiering settings
type CacheConfig struct {
	L1MaxEntries   int      `yaml:"l1_max_entries"`
	L2MaxSize      int      `yaml:"l2_max_size"`
	DefaultTTL     Duration `yaml:"default_ttl"`
	SessionTTL     Duration `yaml:"session_ttl"`
	SweepInterval  Duration `yaml:"sweep_interval"`
	SweepBatchSize int      `yaml:"sweep_batch_size"`
}

// RedisConfig represents the shared L2 tier connection settings
type RedisConfig struct {
	Addr         string   `yaml:"addr"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	KeyPrefix    string   `yaml:"key_prefix"`
	PoolSize     int      `yaml:"pool_size"`
	DialTimeout  Duration `yaml:"dial_timeout"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// BreakerConfig represents circuit breaker settings for the remote tier
type BreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold uint32   `yaml:"failure_threshold"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics exposition settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 8080,
		},
		Cache: CacheConfig{
			L1MaxEntries:   1000,
			L2MaxSize:      10000,
			DefaultTTL:     Duration(5 * time.Minute),
			SessionTTL:     Duration(30 * time.Second),
			SweepInterval:  Duration(5 * time.Second),
			SweepBatchSize: 256,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			KeyPrefix:    "gamecache",
			PoolSize:     10,
			DialTimeout:  Duration(5 * time.Second),
			ReadTimeout:  Duration(100 * time.Millisecond),
			WriteTimeout: Duration(100 * time.Millisecond),
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			Interval:         Duration(60 * time.Second),
			Timeout:          Duration(30 * time.Second),
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Path:      "/metrics",
				Namespace: "gamecache",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("GAMECACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("GAMECACHE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("GAMECACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}

	// Cache settings
	if val := os.Getenv("GAMECACHE_L1_MAX_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.L1MaxEntries = n
		}
	}
	if val := os.Getenv("GAMECACHE_DEFAULT_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = Duration(duration)
		}
	}
	if val := os.Getenv("GAMECACHE_SESSION_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.SessionTTL = Duration(duration)
		}
	}

	// Redis settings
	if val := os.Getenv("GAMECACHE_REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("GAMECACHE_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("GAMECACHE_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			c.Redis.DB = db
		}
	}
	if val := os.Getenv("GAMECACHE_REDIS_KEY_PREFIX"); val != "" {
		c.Redis.KeyPrefix = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Cache.L1MaxEntries <= 0 {
		return fmt.Errorf("l1_max_entries must be greater than 0")
	}

	if c.Cache.L2MaxSize < 0 {
		return fmt.Errorf("l2_max_size cannot be negative")
	}

	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be greater than 0")
	}

	if c.Cache.SweepBatchSize <= 0 {
		return fmt.Errorf("sweep_batch_size must be greater than 0")
	}

	if c.Redis.Addr != "" && c.Redis.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// Load reads the configuration from an optional file path, applies
// environment overrides, and validates the result.
func Load(path string) (*Configuration, error) {
	cfg := NewDefault()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
