package result

import (
	"testing"
	"time"

	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

func TestNewHit(t *testing.T) {
	p, err := provider.New("prov-1", "Acme", geo.Point{Lat: 1, Lon: 2}, time.Now())
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	h := NewHit(p, 3.25)
	got := h.Provider()
	if got.ProviderID() != "prov-1" {
		t.Errorf("Provider().ProviderID() = %q", got.ProviderID())
	}
	if h.DistanceKm() != 3.25 {
		t.Errorf("DistanceKm() = %v", h.DistanceKm())
	}
}

func TestEmpty(t *testing.T) {
	p := Empty()
	if p.Items() == nil || len(p.Items()) != 0 {
		t.Errorf("Items() = %v, want empty non-nil", p.Items())
	}
	if p.TotalCount() != 0 || !p.CountAvailable() {
		t.Errorf("count = %d/%v", p.TotalCount(), p.CountAvailable())
	}
}

func TestNewPageWithoutCount(t *testing.T) {
	p := NewPageWithoutCount([]Hit{{distanceKm: 1}})
	if p.CountAvailable() {
		t.Error("CountAvailable() = true")
	}
	if p.TotalCount() != -1 {
		t.Errorf("TotalCount() = %d, want -1", p.TotalCount())
	}
	if len(p.Items()) != 1 {
		t.Errorf("Items() len = %d", len(p.Items()))
	}
}
