package projection

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/geo"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
)

func existing(t *testing.T) *provider.SearchableProvider {
	t.Helper()
	p, err := provider.New("p-1", "Acme Plumbing", home, t0)
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	p = p.WithLocality("New York", "NY", t0)
	if p, err = p.WithService("plumbing", t0); err != nil {
		t.Fatalf("WithService: %v", err)
	}
	if p, err = p.WithRating(4.2, 10, t0); err != nil {
		t.Fatalf("WithRating: %v", err)
	}
	return &p
}

func TestProject_ActivatedCreatesRow(t *testing.T) {
	e := ev("p-1", 1, event.Activated{
		Name: "Acme", Location: &home, City: ptr("Brooklyn"), Tier: ptr(provider.TierGold),
	})
	c, err := project(nil, &e, t0)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if c.Op() != db.OpAdd || c.Sequence() != 1 {
		t.Fatalf("op = %v seq = %d", c.Op(), c.Sequence())
	}
	row := c.Row()
	if row.Name() != "Acme" || row.City() != "Brooklyn" || row.Tier() != provider.TierGold || !row.Active() {
		t.Errorf("row = %+v", row.Snapshot())
	}
	if !row.CreatedAt().Equal(t0) {
		t.Errorf("CreatedAt() = %v, want %v", row.CreatedAt(), t0)
	}
}

func TestProject_ActivatedRefreshesExistingRow(t *testing.T) {
	cur := existing(t)
	*cur = cur.WithActive(false, t0)
	moved := geo.Point{Lat: 40.73, Lon: -73.99}
	e := ev("p-1", 5, event.Activated{Name: "Acme Again", Location: &moved})

	c, err := project(cur, &e, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if c.Op() != db.OpUpdate {
		t.Fatalf("op = %v, want update", c.Op())
	}
	row := c.Row()
	if row.ID() != cur.ID() {
		t.Error("row id changed on refresh")
	}
	if row.Name() != "Acme Again" || row.Location() != moved || !row.Active() {
		t.Errorf("row = %+v", row.Snapshot())
	}
	if row.City() != "New York" || !slices.Equal(row.ServiceIDs(), []string{"plumbing"}) || row.AverageRating() != 4.2 {
		t.Errorf("omitted fields not kept: %+v", row.Snapshot())
	}
}

func TestProject_Mutations(t *testing.T) {
	moved := geo.Point{Lat: 41, Lon: -73}
	tests := []struct {
		name    string
		payload event.Payload
		check   func(t *testing.T, row *provider.SearchableProvider)
	}{
		{"profile name only", event.ProfileUpdated{Name: ptr("Renamed")}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.Name() != "Renamed" || row.City() != "New York" || row.State() != "NY" {
				t.Errorf("row = %+v", row.Snapshot())
			}
		}},
		{"profile city only", event.ProfileUpdated{City: ptr("Queens")}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.Name() != "Acme Plumbing" || row.City() != "Queens" || row.State() != "NY" {
				t.Errorf("row = %+v", row.Snapshot())
			}
		}},
		{"location", event.LocationChanged{Location: &moved}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.Location() != moved {
				t.Errorf("Location() = %v", row.Location())
			}
		}},
		{"service added", event.ServiceAdded{ServiceID: "heating"}, func(t *testing.T, row *provider.SearchableProvider) {
			if !slices.Equal(row.ServiceIDs(), []string{"heating", "plumbing"}) {
				t.Errorf("ServiceIDs() = %v", row.ServiceIDs())
			}
		}},
		{"service removed", event.ServiceRemoved{ServiceID: "plumbing"}, func(t *testing.T, row *provider.SearchableProvider) {
			if len(row.ServiceIDs()) != 0 {
				t.Errorf("ServiceIDs() = %v", row.ServiceIDs())
			}
		}},
		{"rating", event.RatingChanged{AverageRating: 3.5, TotalReviews: 11}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.AverageRating() != 3.5 || row.TotalReviews() != 11 {
				t.Errorf("rating = %v/%d", row.AverageRating(), row.TotalReviews())
			}
		}},
		{"tier", event.TierChanged{NewTier: provider.TierPlatinum}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.Tier() != provider.TierPlatinum {
				t.Errorf("Tier() = %v", row.Tier())
			}
		}},
		{"deactivated", event.Deactivated{}, func(t *testing.T, row *provider.SearchableProvider) {
			if row.Active() {
				t.Error("row still active")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ev("p-1", 2, tt.payload)
			c, err := project(existing(t), &e, t0.Add(time.Hour))
			if err != nil {
				t.Fatalf("project: %v", err)
			}
			if c.Op() != db.OpUpdate {
				t.Fatalf("op = %v, want update", c.Op())
			}
			row := c.Row()
			if !row.UpdatedAt().Equal(t0.Add(time.Hour)) {
				t.Errorf("UpdatedAt() = %v", row.UpdatedAt())
			}
			tt.check(t, &row)
		})
	}
}

func TestProject_DeletedRemovesRow(t *testing.T) {
	cur := existing(t)
	e := ev("p-1", 3, event.Deleted{})
	c, err := project(cur, &e, t0)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if c.Op() != db.OpDelete || c.RowID() != cur.ID() {
		t.Errorf("op = %v row = %q", c.Op(), c.RowID())
	}
}

func TestProject_MissingRow(t *testing.T) {
	for _, p := range []event.Payload{event.Deactivated{}, event.Deleted{}} {
		e := ev("p-9", 4, p)
		c, err := project(nil, &e, t0)
		if err != nil {
			t.Fatalf("%s: %v", p.Kind(), err)
		}
		if c.Op() != db.OpNone || c.Sequence() != 4 {
			t.Errorf("%s: op = %v seq = %d, want tombstone", p.Kind(), c.Op(), c.Sequence())
		}
	}

	for _, p := range []event.Payload{
		event.ProfileUpdated{Name: ptr("x")},
		event.LocationChanged{Location: &home},
		event.ServiceAdded{ServiceID: "s"},
		event.ServiceRemoved{ServiceID: "s"},
		event.RatingChanged{AverageRating: 1, TotalReviews: 1},
		event.TierChanged{NewTier: provider.TierGold},
	} {
		e := ev("p-9", 4, p)
		_, err := project(nil, &e, t0)
		if !errors.Is(err, domain.ErrProviderNotIndexed) {
			t.Errorf("%s: err = %v, want ErrProviderNotIndexed", p.Kind(), err)
		}
	}
}
