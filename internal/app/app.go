// Package app wires config into a store and the usecase services.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/config"
	"github.com/kailas-cloud/nearby/internal/db"
	dbRedis "github.com/kailas-cloud/nearby/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/nearby/internal/db/sqlite"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/nearby/internal/usecase/health"
	"github.com/kailas-cloud/nearby/internal/usecase/projection"
	searchuc "github.com/kailas-cloud/nearby/internal/usecase/search"
)

// App holds the wired services around one store.
type App struct {
	Store      db.Store
	Search     *searchuc.Service
	Sync       *projection.Service
	Dispatcher *projection.Dispatcher
	Health     *healthuc.Service
}

// OpenStore creates the store selected by cfg.Database.Driver. It does not wait for readiness.
func OpenStore(cfg *config.Config) (db.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Database.Addrs,
			Username:  cfg.Database.Username,
			Password:  cfg.Database.Password,
			DB:        cfg.Database.DB,
			KeyPrefix: cfg.Storage.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := dbSQLite.NewStore(dbSQLite.Config{Path: cfg.Database.Path})
		if err != nil {
			return nil, fmt.Errorf("create sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Open creates the store, waits for it and ensures the schema, then wires the services.
// The dispatcher is created but not started.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return Wire(store, cfg, logger)
}

// Wire builds the services over an existing store.
func Wire(store db.Store, cfg *config.Config, logger *zap.Logger) (*App, error) {
	policy, err := searchuc.ParseCountPolicy(cfg.Search.CountPolicy)
	if err != nil {
		return nil, err
	}

	search := searchuc.New(store, logger).
		WithLimits(SearchLimits(cfg.Search)).
		WithCountPolicy(policy).
		WithQueryTimeout(cfg.Search.QueryTimeout())
	if cfg.Search.RetryAttempts != nil {
		search = search.WithRetries(*cfg.Search.RetryAttempts)
	}

	sync := projection.New(store, logger).
		WithSequenceCache(cfg.Sync.SequenceCacheSize).
		WithApplyWorkers(cfg.Sync.ApplyWorkers).
		WithMaxBatchSize(cfg.Sync.MaxBatchSize)

	dcfg := projection.DispatcherConfig{
		Partitions:        cfg.Sync.Partitions,
		QueueSize:         cfg.Sync.QueueSize,
		RedeliveryBackoff: cfg.Sync.RedeliveryBackoff(),
		MaxRedeliveries:   projection.DefaultMaxRedeliveries,
	}
	if cfg.Sync.MaxRedeliveries != nil {
		dcfg.MaxRedeliveries = *cfg.Sync.MaxRedeliveries
	}
	dispatcher := projection.NewDispatcher(sync, dcfg, logger)

	return &App{
		Store:      store,
		Search:     search,
		Sync:       sync,
		Dispatcher: dispatcher,
		Health:     healthuc.New(store, dispatcher),
	}, nil
}

// SearchLimits converts search config to request limits.
func SearchLimits(c config.SearchConfig) request.Limits {
	return request.Limits{
		MaxRadiusKm:       c.MaxRadiusKm,
		DefaultTake:       c.DefaultTake,
		MaxTake:           c.MaxTake,
		MaxSkip:           c.MaxSkip,
		MaxServiceFilters: c.MaxServiceFilters,
	}
}

// Close releases the store. Callers stop the dispatcher first.
func (a *App) Close() {
	a.Store.Close()
}
