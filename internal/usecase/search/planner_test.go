package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/nearby/internal/db"
	"github.com/kailas-cloud/nearby/internal/domain/provider"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
)

func mustRequest(t *testing.T, p request.Params) request.Request {
	t.Helper()
	req, err := request.New(p, request.DefaultLimits())
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return req
}

func TestPlanner_NonPositiveRadiusSkipsStorage(t *testing.T) {
	for _, radius := range []float64{0, -5} {
		store := &fakeSearcher{}
		req := mustRequest(t, request.Params{Lat: origin.Lat, Lon: origin.Lon, RadiusKm: radius})

		exec, err := NewPlanner(store).Search(context.Background(), &req)
		if err != nil {
			t.Fatalf("radius %v: %v", radius, err)
		}
		if exec.Hits == nil || len(exec.Hits) != 0 || exec.Total != 0 {
			t.Errorf("radius %v: exec = %+v", radius, exec)
		}
		if s, c := store.calls(); s != 0 || c != 0 {
			t.Errorf("radius %v: %d search and %d count calls, want none", radius, s, c)
		}
	}
}

func TestPlanner_DataAndCountShareQuery(t *testing.T) {
	store := &fakeSearcher{hits: []db.ProviderHit{hit("a", 1), hit("b", 2)}, total: 7}
	req := mustRequest(t, request.Params{
		Lat: origin.Lat, Lon: origin.Lon, RadiusKm: 10,
		ServiceIDs: []string{"plumbing", "heating"},
		MinRating:  ptr(4.0),
		Tiers:      []provider.Tier{provider.TierPlatinum, provider.TierGold},
		Skip:       20,
		Take:       ptr(10),
	})

	exec, err := NewPlanner(store).Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(exec.Hits) != 2 || exec.Total != 7 || exec.CountErr != nil {
		t.Errorf("exec = %+v", exec)
	}
	if exec.Hits[0].DistanceKm() != 1 {
		t.Errorf("first hit distance = %v", exec.Hits[0].DistanceKm())
	}

	if len(store.searchQueries) != 1 || len(store.countQueries) != 1 {
		t.Fatalf("calls = %d/%d", len(store.searchQueries), len(store.countQueries))
	}
	q := store.searchQueries[0]
	if !reflect.DeepEqual(q, store.countQueries[0]) {
		t.Errorf("count query differs:\n data  %+v\n count %+v", q, store.countQueries[0])
	}
	if q.Offset != 20 || q.Limit != 10 || q.RadiusKm != 10 || *q.MinRating != 4 {
		t.Errorf("query = %+v", q)
	}
	if !reflect.DeepEqual(q.ServiceIDs, []string{"heating", "plumbing"}) {
		t.Errorf("ServiceIDs = %v", q.ServiceIDs)
	}
	if !reflect.DeepEqual(q.Tiers, []provider.Tier{provider.TierGold, provider.TierPlatinum}) {
		t.Errorf("Tiers = %v", q.Tiers)
	}
}

func TestPlanner_TakeZeroCountsOnly(t *testing.T) {
	store := &fakeSearcher{total: 12}
	req := mustRequest(t, request.Params{Lat: origin.Lat, Lon: origin.Lon, RadiusKm: 5, Take: ptr(0)})

	exec, err := NewPlanner(store).Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(exec.Hits) != 0 || exec.Total != 12 {
		t.Errorf("exec = %+v", exec)
	}
	if s, c := store.calls(); s != 0 || c != 1 {
		t.Errorf("calls = %d/%d, want 0/1", s, c)
	}
}

func TestPlanner_ClampsRawPaging(t *testing.T) {
	store := &fakeSearcher{}
	req := request.Reconstruct(request.Params{Lat: origin.Lat, Lon: origin.Lon, RadiusKm: 5, Skip: -3, Take: ptr(-1)})

	if _, err := NewPlanner(store).Search(context.Background(), &req); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if s, _ := store.calls(); s != 0 {
		t.Errorf("negative take issued %d data queries", s)
	}
	if q := store.countQueries[0]; q.Offset != 0 || q.Limit != 0 {
		t.Errorf("query = %+v", q)
	}
}

func TestPlanner_Failures(t *testing.T) {
	boom := errors.New("boom")
	req := mustRequest(t, request.Params{Lat: origin.Lat, Lon: origin.Lon, RadiusKm: 5})

	store := &fakeSearcher{searchErrs: []error{boom}, total: 1}
	if _, err := NewPlanner(store).Search(context.Background(), &req); !errors.Is(err, boom) {
		t.Errorf("data failure: err = %v", err)
	}

	store = &fakeSearcher{hits: []db.ProviderHit{hit("a", 1)}, countErrs: []error{boom}}
	exec, err := NewPlanner(store).Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("count failure must not fail the execution: %v", err)
	}
	if !errors.Is(exec.CountErr, boom) || len(exec.Hits) != 1 {
		t.Errorf("exec = %+v", exec)
	}
}
