package nearby

import (
	"context"

	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/nearby/internal/usecase/health"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, p request.Params) (result.Page, error)
}

func (m *mockSearchUC) Search(ctx context.Context, p request.Params) (result.Page, error) {
	return m.searchFn(ctx, p)
}

// --- syncUseCase mock ---

type mockSyncUC struct {
	applyFn      func(ctx context.Context, e event.Event) (batch.ItemStatus, error)
	applyBatchFn func(ctx context.Context, events []event.Event) []batch.Result
	forgotten    int
}

func (m *mockSyncUC) Apply(ctx context.Context, e event.Event) (batch.ItemStatus, error) {
	return m.applyFn(ctx, e)
}

func (m *mockSyncUC) ApplyBatch(ctx context.Context, events []event.Event) []batch.Result {
	return m.applyBatchFn(ctx, events)
}

func (m *mockSyncUC) Forget() { m.forgotten++ }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- store mock ---

type mockStore struct {
	pingErr  error
	resetErr error
	resets   int
	closed   bool
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Close() { m.closed = true }

func (m *mockStore) Reset(context.Context) error {
	m.resets++
	return m.resetErr
}

// pingOnlyStore cannot be reset.
type pingOnlyStore struct{}

func (pingOnlyStore) Ping(context.Context) error { return nil }

func (pingOnlyStore) Close() {}
