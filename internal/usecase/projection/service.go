package projection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
	"github.com/kailas-cloud/nearby/internal/metrics"
)

// Defaults for Service tuning.
const (
	DefaultSequenceCacheSize = 10000
	DefaultApplyWorkers      = 8
	MaxBatchSize             = 1000
	lockStripes              = 256
)

// Service keeps the search projection in sync with provider lifecycle events.
// Events for one provider are applied in sequence order at most once;
// different providers proceed in parallel.
type Service struct {
	store        Store
	locks        *keyLocks
	seqs         *lru.Cache[string, int64]
	workers      int
	maxBatchSize int
	now          func() time.Time
	logger       *zap.Logger
}

// New creates a projection service.
func New(store Store, logger *zap.Logger) *Service {
	s := &Service{
		store:        store,
		locks:        newKeyLocks(lockStripes),
		workers:      DefaultApplyWorkers,
		maxBatchSize: MaxBatchSize,
		now:          time.Now,
		logger:       logger,
	}
	return s.WithSequenceCache(DefaultSequenceCacheSize)
}

// WithSequenceCache sizes the last-applied sequence cache. Zero disables it.
func (s *Service) WithSequenceCache(size int) *Service {
	if size <= 0 {
		s.seqs = nil
		return s
	}
	if c, err := lru.New[string, int64](size); err == nil {
		s.seqs = c
	}
	return s
}

// WithApplyWorkers limits how many providers ApplyBatch processes concurrently.
func (s *Service) WithApplyWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithClock overrides the time source used for events without OccurredAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply validates e and projects it into the index.
// Stale and conflicting events are successful no-ops reported through the status.
func (s *Service) Apply(ctx context.Context, e event.Event) (batch.ItemStatus, error) {
	if err := e.Validate(); err != nil {
		s.observe(&e, batch.StatusError, err)
		return batch.StatusError, err
	}

	unlock := s.locks.lock(e.ProviderID)
	status, err := s.apply(ctx, &e)
	unlock()

	s.observe(&e, status, err)
	return status, err
}

func (s *Service) apply(ctx context.Context, e *event.Event) (batch.ItemStatus, error) {
	if s.seenAtLeast(e.ProviderID, e.Sequence) {
		return batch.StatusStale, nil
	}

	last, err := s.store.LastSequence(ctx, e.ProviderID)
	if err != nil {
		return batch.StatusError, storeErr(ctx, "load sequence", err)
	}
	s.remember(e.ProviderID, last)
	if e.Sequence <= last {
		return batch.StatusStale, nil
	}

	var cur *provider.SearchableProvider
	row, err := s.store.GetByProviderID(ctx, e.ProviderID)
	switch {
	case err == nil:
		cur = &row
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return batch.StatusError, storeErr(ctx, "load provider", err)
	}

	at := e.OccurredAt
	if at.IsZero() {
		at = s.now()
	}
	changes, err := project(cur, e, at)
	if err != nil {
		return batch.StatusError, err
	}

	err = s.store.SaveChanges(ctx, changes)
	switch {
	case err == nil:
		s.remember(e.ProviderID, e.Sequence)
		return batch.StatusApplied, nil
	case errors.Is(err, db.ErrStaleSequence):
		return batch.StatusStale, nil
	case errors.Is(err, db.ErrKeyExists):
		s.logger.Debug("provider row already exists, treating event as applied",
			zap.String("provider_id", e.ProviderID), zap.Int64("sequence", e.Sequence))
		return batch.StatusConflict, nil
	default:
		return batch.StatusError, storeErr(ctx, "commit "+changes.Op().String(), err)
	}
}

// ApplyBatch applies events grouped by provider. Each provider's events run in
// sequence order; providers run concurrently. Results follow input order.
// After a retryable failure the provider's later events are not attempted.
func (s *Service) ApplyBatch(ctx context.Context, events []event.Event) []batch.Result {
	results := make([]batch.Result, len(events))

	if len(events) > s.maxBatchSize {
		for i := range events {
			results[i] = batch.NewError(events[i].ProviderID, events[i].Sequence,
				domain.Validationf("batch size exceeds %d", s.maxBatchSize))
		}
		return results
	}

	groups := make(map[string][]int)
	var order []string
	for i := range events {
		pid := events[i].ProviderID
		if _, ok := groups[pid]; !ok {
			order = append(order, pid)
		}
		groups[pid] = append(groups[pid], i)
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, pid := range order {
		idx := groups[pid]
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Compare(events[a].Sequence, events[b].Sequence)
		})
		g.Go(func() error {
			var blocked error
			for _, i := range idx {
				e := events[i]
				if blocked != nil {
					results[i] = batch.NewError(e.ProviderID, e.Sequence, blocked)
					continue
				}
				status, err := s.Apply(ctx, e)
				if err != nil {
					results[i] = batch.NewError(e.ProviderID, e.Sequence, err)
					if domain.IsRetryable(err) {
						blocked = fmt.Errorf("skipped after sequence %d failed: %w", e.Sequence, err)
					}
					continue
				}
				results[i] = batch.New(e.ProviderID, e.Sequence, status)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) seenAtLeast(providerID string, seq int64) bool {
	if s.seqs == nil {
		return false
	}
	last, ok := s.seqs.Get(providerID)
	return ok && seq <= last
}

// remember caches a committed sequence. Callers hold the provider lock.
func (s *Service) remember(providerID string, seq int64) {
	if s.seqs == nil || seq <= 0 {
		return
	}
	if last, ok := s.seqs.Peek(providerID); ok && last >= seq {
		return
	}
	s.seqs.Add(providerID, seq)
}

// Forget drops cached sequences, e.g. after the store was reset.
func (s *Service) Forget() {
	if s.seqs != nil {
		s.seqs.Purge()
	}
}

func (s *Service) observe(e *event.Event, status batch.ItemStatus, err error) {
	outcome := string(status)
	if errors.Is(err, domain.ErrProviderNotIndexed) {
		outcome = metrics.OutcomeNotIndexed
	}
	metrics.SyncEventsTotal.WithLabelValues(string(e.Kind()), outcome).Inc()

	switch {
	case status == batch.StatusApplied && !e.OccurredAt.IsZero():
		metrics.SyncLagSeconds.Observe(s.now().Sub(e.OccurredAt).Seconds())
	case status == batch.StatusStale:
		s.logger.Debug("stale event ignored",
			zap.String("provider_id", e.ProviderID), zap.Int64("sequence", e.Sequence))
	}
}

// storeErr classifies a storage failure. Cancellation is passed through;
// everything else becomes a retryable infrastructure error.
func storeErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return domain.Infrastructure(op, err)
}
