package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// Store is the index store facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the sub-interfaces
type Store interface {
	Pinger
	ProviderReader
	ChangeWriter
	ProviderSearcher
	SchemaManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderReader loads single rows and sequence state.
type ProviderReader interface {
	GetByID(ctx context.Context, id string) (provider.SearchableProvider, error)
	GetByProviderID(ctx context.Context, providerID string) (provider.SearchableProvider, error)
	// LastSequence returns the last committed event sequence for providerID, 0 when unseen.
	LastSequence(ctx context.Context, providerID string) (int64, error)
}

// ChangeWriter commits one unit of work atomically.
type ChangeWriter interface {
	// SaveChanges writes c together with a compare-and-set of the provider sequence.
	// Returns ErrStaleSequence when the stored sequence is not older than c.Sequence(),
	// ErrKeyExists when an add collides with an existing row, ErrKeyNotFound when an
	// update or delete targets a missing row.
	SaveChanges(ctx context.Context, c *Changes) error
}

// ProviderSearcher runs ranked radius queries.
type ProviderSearcher interface {
	// SearchProviders returns one page of matches ordered by tier desc, rating desc,
	// distance asc, provider id asc.
	SearchProviders(ctx context.Context, q *ProviderQuery) ([]ProviderHit, error)
	// CountProviders returns the number of matches of q ignoring paging.
	CountProviders(ctx context.Context, q *ProviderQuery) (int, error)
}

// SchemaManager creates tables or indexes on startup. Idempotent.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// Resetter wipes every row and sequence so the index can be rebuilt by replay.
type Resetter interface {
	Reset(ctx context.Context) error
}
