package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Auth            AuthConfig            `yaml:"auth"`
	Worker          WorkerConfig          `yaml:"worker"`
	Log             LogConfig             `yaml:"log"`
	SnapshotStorage SnapshotStorageConfig `yaml:"snapshot_storage"`
	Leaderboard     LeaderboardConfig     `yaml:"leaderboard"`
	Settlement      SettlementConfig      `yaml:"settlement"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains document store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// WorkerConfig contains background worker settings. A zero interval
// disables the corresponding worker.
type WorkerConfig struct {
	SnapshotInterval         Duration `yaml:"snapshot_interval"`
	CompactionInterval       Duration `yaml:"compaction_interval"`
	ChangeRetention          Duration `yaml:"change_retention"`
	IdempotencySweepInterval Duration `yaml:"idempotency_sweep_interval"`
	OverdueInterval          Duration `yaml:"overdue_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnapshotStorageConfig contains S3-compatible snapshot storage settings.
// An empty Bucket keeps snapshots local.
type SnapshotStorageConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"`
	SecretKey string   `yaml:"-"`
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// LeaderboardConfig selects the leaderboard backend. Without RedisAddr the
// ranking is kept in memory.
type LeaderboardConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// SettlementConfig contains transaction and idempotency settings.
type SettlementConfig struct {
	IdempotencyTTL Duration `yaml:"idempotency_ttl"`
	TxMaxRetries   int      `yaml:"tx_max_retries"`
	TxRetryBase    Duration `yaml:"tx_retry_base"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("PROCAS_CONFIG_PATH", "config/procas.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseConfig resolves only the database settings. Offline commands
// use it so they run without an API key.
func LoadDatabaseConfig() (DatabaseConfig, error) {
	cfg := newDefaults()
	if err := loadYAMLFile(cfg, getEnv("PROCAS_CONFIG_PATH", "config/procas.yaml")); err != nil {
		return DatabaseConfig{}, err
	}
	envString("PROCAS_DB_PATH", &cfg.Database.Path)
	return cfg.Database, nil
}

func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/procas.db",
		},
		Worker: WorkerConfig{
			SnapshotInterval:         Duration(1 * time.Hour),
			CompactionInterval:       Duration(1 * time.Hour),
			ChangeRetention:          Duration(7 * 24 * time.Hour),
			IdempotencySweepInterval: Duration(1 * time.Hour),
			OverdueInterval:          0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		SnapshotStorage: SnapshotStorageConfig{
			Region:    "us-east-1",
			UseSSL:    &useSSL,
			URLExpiry: Duration(15 * time.Minute),
		},
		Leaderboard: LeaderboardConfig{
			KeyPrefix: "procas:leaderboard",
		},
		Settlement: SettlementConfig{
			IdempotencyTTL: Duration(24 * time.Hour),
			TxMaxRetries:   5,
			TxRetryBase:    Duration(20 * time.Millisecond),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty, well-formed env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("PROCAS_PORT", &cfg.Server.Port)
	envDuration("PROCAS_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("PROCAS_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("PROCAS_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("PROCAS_DB_PATH", &cfg.Database.Path)

	// Auth
	envString("PROCAS_API_KEY", &cfg.Auth.APIKey)

	// Worker
	envDuration("PROCAS_SNAPSHOT_INTERVAL", &cfg.Worker.SnapshotInterval)
	envDuration("PROCAS_COMPACTION_INTERVAL", &cfg.Worker.CompactionInterval)
	envDuration("PROCAS_CHANGE_RETENTION", &cfg.Worker.ChangeRetention)
	envDuration("PROCAS_IDEMPOTENCY_SWEEP_INTERVAL", &cfg.Worker.IdempotencySweepInterval)
	envDuration("PROCAS_OVERDUE_INTERVAL", &cfg.Worker.OverdueInterval)

	// Log
	envString("PROCAS_LOG_LEVEL", &cfg.Log.Level)
	envString("PROCAS_LOG_FORMAT", &cfg.Log.Format)

	// Snapshot storage
	envString("PROCAS_SNAPSHOT_BUCKET", &cfg.SnapshotStorage.Bucket)
	envString("PROCAS_S3_ENDPOINT", &cfg.SnapshotStorage.Endpoint)
	envString("PROCAS_S3_REGION", &cfg.SnapshotStorage.Region)
	envString("PROCAS_S3_ACCESS_KEY", &cfg.SnapshotStorage.AccessKey)
	envString("PROCAS_S3_SECRET_KEY", &cfg.SnapshotStorage.SecretKey)
	if v := os.Getenv("PROCAS_S3_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SnapshotStorage.UseSSL = &b
		}
	}
	envDuration("PROCAS_S3_URL_EXPIRY", &cfg.SnapshotStorage.URLExpiry)

	// Leaderboard
	envString("PROCAS_REDIS_ADDR", &cfg.Leaderboard.RedisAddr)
	envString("PROCAS_REDIS_PASSWORD", &cfg.Leaderboard.RedisPassword)
	envInt("PROCAS_REDIS_DB", &cfg.Leaderboard.RedisDB)
	envString("PROCAS_LEADERBOARD_KEY", &cfg.Leaderboard.KeyPrefix)

	// Settlement
	envDuration("PROCAS_IDEMPOTENCY_TTL", &cfg.Settlement.IdempotencyTTL)
	envInt("PROCAS_TX_MAX_RETRIES", &cfg.Settlement.TxMaxRetries)
	envDuration("PROCAS_TX_RETRY_BASE", &cfg.Settlement.TxRetryBase)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that required configuration values are set.
// In dev mode (PROCAS_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.SnapshotStorage.Bucket != "" && c.SnapshotStorage.Endpoint == "" {
		return errors.New("snapshot_storage.endpoint is required when a bucket is set")
	}
	if c.Settlement.TxMaxRetries < 0 {
		return errors.New("settlement.tx_max_retries must not be negative")
	}

	if os.Getenv("PROCAS_DEV_MODE") == "true" {
		return nil
	}
	if c.Auth.APIKey == "" {
		return errors.New("PROCAS_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
