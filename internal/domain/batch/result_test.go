package batch

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	r := New("prov-1", 4, StatusApplied)
	if r.ID() != "prov-1" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Sequence() != 4 {
		t.Errorf("Sequence() = %d", r.Sequence())
	}
	if r.Status() != StatusApplied {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusApplied)
	}
	if !r.OK() || r.Err() != nil {
		t.Errorf("OK() = %v, Err() = %v", r.OK(), r.Err())
	}
}

func TestNew_NoOpStatusesAreOK(t *testing.T) {
	for _, s := range []ItemStatus{StatusStale, StatusConflict} {
		if !New("p", 1, s).OK() {
			t.Errorf("%q must be OK", s)
		}
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError("prov-2", 9, err)
	if r.ID() != "prov-2" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if r.OK() {
		t.Error("OK() = true for error result")
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusApplied != "applied" || StatusStale != "stale" || StatusConflict != "conflict" || StatusError != "error" {
		t.Error("status wire values changed")
	}
}
