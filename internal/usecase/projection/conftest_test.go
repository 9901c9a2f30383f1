package projection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

// --- Fakes ---

// memStore is an in-memory Store with the same sequence CAS rules as the real backends.
type memStore struct {
	mu   sync.Mutex
	rows map[string]provider.SearchableProvider
	seqs map[string]int64

	seqErr  error
	getErr  error
	saveErr error

	// gate, when set, holds every SaveChanges until a value is received.
	gate chan struct{}

	seqCalls  int
	saveCalls int
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[string]provider.SearchableProvider),
		seqs: make(map[string]int64),
	}
}

func (m *memStore) LastSequence(_ context.Context, providerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqCalls++
	if m.seqErr != nil {
		return 0, m.seqErr
	}
	return m.seqs[providerID], nil
}

func (m *memStore) GetByProviderID(_ context.Context, providerID string) (provider.SearchableProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return provider.SearchableProvider{}, m.getErr
	}
	row, ok := m.rows[providerID]
	if !ok {
		return provider.SearchableProvider{}, db.ErrKeyNotFound
	}
	return row, nil
}

func (m *memStore) SaveChanges(ctx context.Context, c *db.Changes) error {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	pid := c.ProviderID()
	if c.Sequence() <= m.seqs[pid] {
		return db.ErrStaleSequence
	}
	_, exists := m.rows[pid]
	switch c.Op() {
	case db.OpAdd:
		if exists {
			return db.ErrKeyExists
		}
		m.rows[pid] = c.Row()
	case db.OpUpdate:
		if !exists {
			return db.ErrKeyNotFound
		}
		m.rows[pid] = c.Row()
	case db.OpDelete:
		delete(m.rows, pid)
	case db.OpNone:
	}
	m.seqs[pid] = c.Sequence()
	return nil
}

func (m *memStore) row(providerID string) (provider.SearchableProvider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[providerID]
	return row, ok
}

func (m *memStore) sequence(providerID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqs[providerID]
}

// funcApplier adapts a function to Applier and records every call.
type funcApplier struct {
	mu    sync.Mutex
	fn    func(e event.Event) (batch.ItemStatus, error)
	calls []event.Event
}

func (f *funcApplier) Apply(_ context.Context, e event.Event) (batch.ItemStatus, error) {
	f.mu.Lock()
	f.calls = append(f.calls, e)
	f.mu.Unlock()
	return f.fn(e)
}

func (f *funcApplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- Helpers ---

var (
	t0   = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	home = geo.Point{Lat: 40.7128, Lon: -74.0060}
)

func newTestService(store Store) *Service {
	return New(store, zap.NewNop()).WithClock(func() time.Time { return t0.Add(time.Hour) })
}

func ev(pid string, seq int64, p event.Payload) event.Event {
	return event.Event{
		ProviderID: pid,
		Sequence:   seq,
		OccurredAt: t0.Add(time.Duration(seq) * time.Minute),
		Payload:    p,
	}
}

func activated(name string, loc geo.Point) event.Activated {
	return event.Activated{Name: name, Location: &loc}
}

func ptr[T any](v T) *T { return &v }
