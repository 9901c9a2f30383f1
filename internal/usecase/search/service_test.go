package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/metrics"
)

func params(radius float64) request.Params {
	return request.Params{Lat: origin.Lat, Lon: origin.Lon, RadiusKm: radius}
}

func storeDown() error {
	return &db.Error{Op: db.OpSearch, Err: errors.New("connection refused")}
}

func TestSearch_ReturnsPage(t *testing.T) {
	store := &fakeSearcher{hits: []db.ProviderHit{hit("a", 1), hit("b", 3)}, total: 2}
	page, err := New(store, zap.NewNop()).Search(context.Background(), params(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Items()) != 2 || page.TotalCount() != 2 || !page.CountAvailable() {
		t.Errorf("page = %d items, total %d, available %v", len(page.Items()), page.TotalCount(), page.CountAvailable())
	}
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    request.Params
	}{
		{"latitude", request.Params{Lat: 91, RadiusKm: 1}},
		{"radius over max", request.Params{RadiusKm: request.DefaultMaxRadiusKm + 1}},
		{"min rating", request.Params{RadiusKm: 1, MinRating: ptr(5.5)}},
		{"negative skip", request.Params{RadiusKm: 1, Skip: -1}},
		{"take over max", request.Params{RadiusKm: 1, Take: ptr(request.DefaultMaxTake + 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeSearcher{}
			_, err := New(store, zap.NewNop()).Search(context.Background(), tt.p)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			if s, c := store.calls(); s+c != 0 {
				t.Error("invalid request reached storage")
			}
		})
	}
}

func TestSearch_NegativeRadiusIsEmptyNotError(t *testing.T) {
	store := &fakeSearcher{}
	page, err := New(store, zap.NewNop()).Search(context.Background(), params(-1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Items()) != 0 || page.TotalCount() != 0 {
		t.Errorf("page = %+v", page)
	}
	if s, c := store.calls(); s+c != 0 {
		t.Error("storage called for a non-positive radius")
	}
}

func TestSearch_RetriesOnce(t *testing.T) {
	store := &fakeSearcher{searchErrs: []error{storeDown()}, hits: []db.ProviderHit{hit("a", 1)}, total: 1}
	before := testutil.ToFloat64(metrics.SearchRetriesTotal)

	page, err := New(store, zap.NewNop()).Search(context.Background(), params(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Items()) != 1 {
		t.Errorf("items = %d", len(page.Items()))
	}
	if s, _ := store.calls(); s != 2 {
		t.Errorf("search calls = %d, want 2", s)
	}
	if d := testutil.ToFloat64(metrics.SearchRetriesTotal) - before; d != 1 {
		t.Errorf("retries delta = %v, want 1", d)
	}
}

func TestSearch_PersistentFailureIsInfrastructure(t *testing.T) {
	store := &fakeSearcher{searchErrs: []error{storeDown(), storeDown(), storeDown()}}
	_, err := New(store, zap.NewNop()).Search(context.Background(), params(5))
	if !errors.Is(err, domain.ErrInfrastructure) || !domain.IsRetryable(err) {
		t.Fatalf("err = %v, want ErrInfrastructure", err)
	}
	if s, _ := store.calls(); s != 2 {
		t.Errorf("search calls = %d, want 2", s)
	}
}

func TestSearch_NoRetryWhenDisabled(t *testing.T) {
	store := &fakeSearcher{searchErrs: []error{storeDown()}}
	_, err := New(store, zap.NewNop()).WithRetries(0).Search(context.Background(), params(5))
	if !errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("err = %v", err)
	}
	if s, _ := store.calls(); s != 1 {
		t.Errorf("search calls = %d, want 1", s)
	}
}

func TestSearch_CountPolicy(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		store := &fakeSearcher{hits: []db.ProviderHit{hit("a", 1)}, countErrs: []error{storeDown(), storeDown()}}
		_, err := New(store, zap.NewNop()).Search(context.Background(), params(5))
		if !errors.Is(err, domain.ErrInfrastructure) {
			t.Errorf("err = %v, want ErrInfrastructure", err)
		}
		if _, c := store.calls(); c != 2 {
			t.Errorf("count calls = %d, want 2", c)
		}
	})

	t.Run("strict recovers on retry", func(t *testing.T) {
		store := &fakeSearcher{hits: []db.ProviderHit{hit("a", 1)}, total: 1, countErrs: []error{storeDown()}}
		page, err := New(store, zap.NewNop()).Search(context.Background(), params(5))
		if err != nil || page.TotalCount() != 1 {
			t.Errorf("page total = %d, err = %v", page.TotalCount(), err)
		}
	})

	t.Run("best effort", func(t *testing.T) {
		store := &fakeSearcher{hits: []db.ProviderHit{hit("a", 1)}, countErrs: []error{storeDown()}}
		before := testutil.ToFloat64(metrics.SearchCountOmittedTotal)

		page, err := New(store, zap.NewNop()).WithCountPolicy(CountBestEffort).Search(context.Background(), params(5))
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if page.CountAvailable() || page.TotalCount() != -1 || len(page.Items()) != 1 {
			t.Errorf("page = %d items, total %d, available %v", len(page.Items()), page.TotalCount(), page.CountAvailable())
		}
		if d := testutil.ToFloat64(metrics.SearchCountOmittedTotal) - before; d != 1 {
			t.Errorf("omitted delta = %v, want 1", d)
		}
		if _, c := store.calls(); c != 1 {
			t.Errorf("count calls = %d, want 1 (no retry for best effort)", c)
		}
	})
}

func TestSearch_CancelledIsNotRetried(t *testing.T) {
	store := &fakeSearcher{waitForCtx: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store, zap.NewNop()).Search(ctx, params(5))
	if !errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s, _ := store.calls(); s != 1 {
		t.Errorf("search calls = %d, want 1", s)
	}
}

func TestSearch_QueryTimeout(t *testing.T) {
	store := &fakeSearcher{waitForCtx: true}
	_, err := New(store, zap.NewNop()).WithQueryTimeout(10*time.Millisecond).Search(context.Background(), params(5))
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, domain.ErrInfrastructure) {
		t.Fatalf("err = %v, want deadline as infrastructure", err)
	}
}

func TestParseCountPolicy(t *testing.T) {
	for in, want := range map[string]CountPolicy{"": CountStrict, "strict": CountStrict, "best_effort": CountBestEffort} {
		got, err := ParseCountPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseCountPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCountPolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
