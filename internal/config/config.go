package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the nearby service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Sync     SyncConfig     `yaml:"sync"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Supported database drivers.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// DatabaseConfig holds index store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, sqlite (default: sqlite)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Path             string   `yaml:"path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// SearchConfig holds query limits and failure policy.
type SearchConfig struct {
	MaxRadiusKm       float64 `yaml:"max_radius_km"`
	DefaultTake       int     `yaml:"default_take"`
	MaxTake           int     `yaml:"max_take"`
	MaxSkip           int     `yaml:"max_skip"`
	MaxServiceFilters int     `yaml:"max_service_filters"`
	CountPolicy       string  `yaml:"count_policy"` // strict (default), best_effort
	RetryAttempts     *int    `yaml:"retry_attempts"`
	QueryTimeoutMs    int     `yaml:"query_timeout_ms"`
}

// SyncConfig holds projection synchronizer settings.
type SyncConfig struct {
	Partitions          int  `yaml:"partitions"`
	QueueSize           int  `yaml:"queue_size"`
	MaxRedeliveries     *int `yaml:"max_redeliveries"`
	RedeliveryBackoffMs int  `yaml:"redelivery_backoff_ms"`
	SequenceCacheSize   int  `yaml:"sequence_cache_size"`
	ApplyWorkers        int  `yaml:"apply_workers"`
	MaxBatchSize        int  `yaml:"max_batch_size"`
}

// QueryTimeout returns the search timeout as a duration.
func (c SearchConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMs) * time.Millisecond
}

// RedeliveryBackoff returns the redelivery interval as a duration.
func (c SyncConfig) RedeliveryBackoff() time.Duration {
	return time.Duration(c.RedeliveryBackoffMs) * time.Millisecond
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = filepath.Join("data", "nearby.db")
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "nearby:"
	}
	if c.Search.MaxRadiusKm <= 0 {
		c.Search.MaxRadiusKm = 500
	}
	if c.Search.DefaultTake <= 0 {
		c.Search.DefaultTake = 20
	}
	if c.Search.MaxTake <= 0 {
		c.Search.MaxTake = 100
	}
	if c.Search.MaxSkip <= 0 {
		c.Search.MaxSkip = 10000
	}
	if c.Search.MaxServiceFilters <= 0 {
		c.Search.MaxServiceFilters = 50
	}
	if c.Search.CountPolicy == "" {
		c.Search.CountPolicy = "strict"
	}
	if c.Search.RetryAttempts == nil {
		c.Search.RetryAttempts = intPtr(1)
	}
	if c.Search.QueryTimeoutMs <= 0 {
		c.Search.QueryTimeoutMs = 2000
	}
	if c.Sync.Partitions <= 0 {
		c.Sync.Partitions = 8
	}
	if c.Sync.QueueSize <= 0 {
		c.Sync.QueueSize = 1024
	}
	if c.Sync.MaxRedeliveries == nil {
		c.Sync.MaxRedeliveries = intPtr(5)
	}
	if c.Sync.RedeliveryBackoffMs <= 0 {
		c.Sync.RedeliveryBackoffMs = 500
	}
	if c.Sync.SequenceCacheSize <= 0 {
		c.Sync.SequenceCacheSize = 10000
	}
	if c.Sync.ApplyWorkers <= 0 {
		c.Sync.ApplyWorkers = 8
	}
	if c.Sync.MaxBatchSize <= 0 {
		c.Sync.MaxBatchSize = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidateIndex()
}

// ValidateIndex checks every section except http. Embedded use has no listener.
func (c *Config) ValidateIndex() error {
	switch c.Database.Driver {
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverRedis, DriverSQLite, c.Database.Driver)
	}
	switch c.Search.CountPolicy {
	case "strict", "best_effort":
		// ok
	default:
		return fmt.Errorf("search.count_policy must be \"strict\" or \"best_effort\", got %q", c.Search.CountPolicy)
	}
	if c.Search.DefaultTake > c.Search.MaxTake {
		return fmt.Errorf("search.default_take (%d) exceeds search.max_take (%d)", c.Search.DefaultTake, c.Search.MaxTake)
	}
	if c.Search.RetryAttempts != nil && *c.Search.RetryAttempts < 0 {
		return fmt.Errorf("search.retry_attempts must not be negative")
	}
	if c.Sync.MaxRedeliveries != nil && *c.Sync.MaxRedeliveries < 0 {
		return fmt.Errorf("sync.max_redeliveries must not be negative")
	}
	return nil
}

func intPtr(v int) *int { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
