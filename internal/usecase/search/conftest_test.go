package search

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// --- Fakes ---

// fakeSearcher returns canned results. Queued errors are consumed one per call.
type fakeSearcher struct {
	mu sync.Mutex

	hits       []db.ProviderHit
	total      int
	searchErrs []error
	countErrs  []error
	// waitForCtx makes both calls block until their context ends.
	waitForCtx bool

	searchQueries []db.ProviderQuery
	countQueries  []db.ProviderQuery
}

func (f *fakeSearcher) SearchProviders(ctx context.Context, q *db.ProviderQuery) ([]db.ProviderHit, error) {
	f.mu.Lock()
	f.searchQueries = append(f.searchQueries, *q)
	err := pop(&f.searchErrs)
	f.mu.Unlock()

	if f.waitForCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return f.hits, nil
}

func (f *fakeSearcher) CountProviders(ctx context.Context, q *db.ProviderQuery) (int, error) {
	f.mu.Lock()
	f.countQueries = append(f.countQueries, *q)
	err := pop(&f.countErrs)
	f.mu.Unlock()

	if f.waitForCtx {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	return f.total, nil
}

func (f *fakeSearcher) calls() (search, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searchQueries), len(f.countQueries)
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// --- Helpers ---

var (
	testNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	origin  = geo.Point{Lat: 51.5074, Lon: -0.1278}
)

func hit(pid string, distKm float64) db.ProviderHit {
	p, err := provider.New(pid, "Provider "+pid, geo.Offset(origin, distKm, 0), testNow)
	if err != nil {
		panic(err)
	}
	return db.ProviderHit{Provider: p, DistanceKm: distKm}
}

func ptr[T any](v T) *T { return &v }
