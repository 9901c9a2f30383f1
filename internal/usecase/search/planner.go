package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
)

// Execution is the raw outcome of one planned query.
// CountErr is set when the page was fetched but the total could not be.
type Execution struct {
	Hits     []result.Hit
	Total    int
	CountErr error
}

// Planner turns a validated request into storage queries.
// Filtering, ranking and paging all run inside the store.
type Planner struct {
	store ProviderSearcher
}

// NewPlanner creates a planner over store.
func NewPlanner(store ProviderSearcher) *Planner {
	return &Planner{store: store}
}

// Search fetches one page and the total match count concurrently.
// A non-positive radius short-circuits to an empty execution without touching storage.
func (p *Planner) Search(ctx context.Context, req *request.Request) (Execution, error) {
	if req.RadiusKm() <= 0 {
		return Execution{Hits: []result.Hit{}}, nil
	}

	q := queryFor(req)
	var (
		hits     []db.ProviderHit
		total    int
		countErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	if q.Limit > 0 {
		g.Go(func() error {
			h, err := p.store.SearchProviders(gctx, &q)
			if err != nil {
				return err
			}
			hits = h
			return nil
		})
	}
	g.Go(func() error {
		n, err := p.store.CountProviders(gctx, &q)
		if err != nil {
			countErr = err
			return nil
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Execution{}, err
	}

	out := make([]result.Hit, len(hits))
	for i := range hits {
		out[i] = result.NewHit(hits[i].Provider, hits[i].DistanceKm)
	}
	return Execution{Hits: out, Total: total, CountErr: countErr}, nil
}

func queryFor(req *request.Request) db.ProviderQuery {
	q := db.ProviderQuery{
		Origin:     req.Origin(),
		RadiusKm:   req.RadiusKm(),
		ServiceIDs: req.ServiceIDs(),
		Tiers:      req.Tiers(),
		Offset:     max(req.Skip(), 0),
		Limit:      max(req.Take(), 0),
	}
	if r, ok := req.MinRating(); ok {
		q.MinRating = &r
	}
	return q
}
