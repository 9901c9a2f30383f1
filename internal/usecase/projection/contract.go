package projection

import (
	"context"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// SequenceReader reads the last committed sequence of a provider (0 when none).
type SequenceReader interface {
	LastSequence(ctx context.Context, providerID string) (int64, error)
}

// ProviderReader loads the current row of a provider.
type ProviderReader interface {
	GetByProviderID(ctx context.Context, providerID string) (provider.SearchableProvider, error)
}

// ChangeWriter commits a row change together with its sequence.
type ChangeWriter interface {
	SaveChanges(ctx context.Context, c *db.Changes) error
}

// Store is the storage the projection needs.
type Store interface {
	SequenceReader
	ProviderReader
	ChangeWriter
}

// Applier applies one event. Implemented by Service, consumed by Dispatcher.
type Applier interface {
	Apply(ctx context.Context, e event.Event) (batch.ItemStatus, error)
}
