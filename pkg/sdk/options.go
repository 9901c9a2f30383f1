package nearby

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/nearby/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis stores the index in a Redis 8+ instance (Query Engine required).
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverRedis
		c.cfg.Database.Addrs = []string{addr}
		c.cfg.Database.Password = password
	})
}

// WithSQLite stores the index in an embedded SQLite file. The directory is created if missing.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.Driver = config.DriverSQLite
		c.cfg.Database.Path = path
	})
}

// WithKeyPrefix namespaces Redis keys. Default: "nearby:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Storage.KeyPrefix = prefix
	})
}

// WithReadinessTimeout bounds the initial wait for the store. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Database.ReadinessTimeout = int(d.Round(time.Second) / time.Second)
	})
}

// WithSearchLimits bounds radius and page size. Zero values keep the defaults
// (500 km, take 20, max take 100).
func WithSearchLimits(maxRadiusKm float64, defaultTake, maxTake int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.MaxRadiusKm = maxRadiusKm
		c.cfg.Search.DefaultTake = defaultTake
		c.cfg.Search.MaxTake = maxTake
	})
}

// WithBestEffortCount returns pages without a total when counting fails
// instead of failing the search.
func WithBestEffortCount() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Search.CountPolicy = "best_effort"
	})
}

// WithMaxBatchSize sets the maximum number of events per ApplyBatch call.
// Default: 1000.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Sync.MaxBatchSize = size
	})
}

// WithSequenceCache sets how many last-applied sequences are cached. Default: 10000.
func WithSequenceCache(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Sync.SequenceCacheSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
