package nearby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/app"
	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/nearby/internal/usecase/health"
)

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	Search(ctx context.Context, params request.Params) (result.Page, error)
}

type syncUseCase interface {
	Apply(ctx context.Context, e event.Event) (batch.ItemStatus, error)
	ApplyBatch(ctx context.Context, events []event.Event) []batch.Result
	Forget()
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type storeHandle interface {
	db.Pinger
	Close()
}

// Client is the embedded nearby index.
type Client struct {
	store     storeHandle
	searchSvc searchUseCase
	syncSvc   syncUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New opens the index store, ensures its schema and wires the services.
// The provided context is used for the readiness check and schema creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}
	if cc.cfg.Database.Driver == "" {
		return nil, errors.New("nearby: index store required (use WithRedis or WithSQLite)")
	}
	cc.cfg.ApplyDefaults()
	if err := cc.cfg.ValidateIndex(); err != nil {
		return nil, fmt.Errorf("nearby: %w", err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.Open(ctx, &cc.cfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("nearby: %w", err)
	}

	return &Client{
		store:     a.Store,
		searchSvc: a.Search,
		syncSvc:   a.Sync,
		healthSvc: a.Health,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Health checks the store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Search runs a ranked radius query.
func (c *Client) Search(ctx context.Context, q Query) (page SearchPage, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("search", start, err, "radius_km", q.radiusKm, "hits", len(page.Hits))
	}()

	p, err := c.searchSvc.Search(ctx, q.params())
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", err)
	}
	return fromPage(&p), nil
}

// Apply applies one event. Stale and conflicting events return their status with a nil error.
func (c *Client) Apply(ctx context.Context, e Event) (status ApplyStatus, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("apply", start, err,
			"provider_id", e.ProviderID, "sequence", e.Sequence, "status", string(status))
	}()

	s, err := c.syncSvc.Apply(ctx, e)
	if err != nil {
		return StatusError, fmt.Errorf("apply: %w", err)
	}
	return ApplyStatus(s), nil
}

// ApplyBatch applies events, keeping per-provider sequence order.
// Results are positionally aligned with events.
func (c *Client) ApplyBatch(ctx context.Context, events []Event) []ApplyResult {
	start := time.Now()
	res := c.syncSvc.ApplyBatch(ctx, events)

	out := make([]ApplyResult, len(res))
	var failed int
	for i, r := range res {
		out[i] = ApplyResult{
			ProviderID: r.ID(),
			Sequence:   r.Sequence(),
			Status:     ApplyStatus(r.Status()),
			Err:        r.Err(),
		}
		if !r.OK() {
			failed++
		}
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("apply batch: %d of %d events failed", failed, len(events))
	}
	c.obs.observe("apply_batch", start, err, "events", len(events))
	return out
}

// Reset wipes every row and sequence. Replaying the event log afterwards rebuilds the index.
func (c *Client) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset", start, err) }()

	r, ok := c.store.(db.Resetter)
	if !ok {
		return errors.New("reset: store does not support reset")
	}
	if err = r.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	c.syncSvc.Forget()
	return nil
}

func fromPage(p *result.Page) SearchPage {
	items := p.Items()
	hits := make([]Hit, len(items))
	for i := range items {
		sp := items[i].Provider()
		hits[i] = Hit{
			Provider: Provider{
				ID:            sp.ID(),
				ProviderID:    sp.ProviderID(),
				Name:          sp.Name(),
				Location:      sp.Location(),
				City:          sp.City(),
				State:         sp.State(),
				Tier:          sp.Tier(),
				AverageRating: sp.AverageRating(),
				TotalReviews:  sp.TotalReviews(),
				ServiceIDs:    sp.ServiceIDs(),
			},
			DistanceKm: items[i].DistanceKm(),
		}
	}
	return SearchPage{Hits: hits, TotalCount: p.TotalCount(), CountAvailable: p.CountAvailable()}
}
