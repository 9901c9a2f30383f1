package search

import (
	"context"

	"github.com/kailas-cloud/nearby/internal/db"
)

// ProviderSearcher runs ranked radius queries. Both methods receive the same
// query value so the count matches the data.
type ProviderSearcher interface {
	SearchProviders(ctx context.Context, q *db.ProviderQuery) ([]db.ProviderHit, error)
	CountProviders(ctx context.Context, q *db.ProviderQuery) (int, error)
}
