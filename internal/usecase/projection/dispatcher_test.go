package projection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
)

func newTestDispatcher(t *testing.T, apply Applier, cfg DispatcherConfig) *Dispatcher {
	t.Helper()
	if cfg.RedeliveryBackoff == 0 {
		cfg.RedeliveryBackoff = 5 * time.Millisecond
	}
	d := NewDispatcher(apply, cfg, zap.NewNop())
	d.Start()
	t.Cleanup(d.Stop)
	return d
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDispatcher_AppliesInOrderPerProvider(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, newTestService(store), DispatcherConfig{Partitions: 4, QueueSize: 8})

	for p := range 10 {
		pid := fmt.Sprintf("p-%d", p)
		if err := d.Enqueue(context.Background(), ev(pid, 1, activated("Provider "+pid, home))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		for seq := int64(2); seq <= 6; seq++ {
			e := ev(pid, seq, event.ServiceAdded{ServiceID: fmt.Sprintf("svc-%d", seq)})
			if err := d.Enqueue(context.Background(), e); err != nil {
				t.Fatalf("Enqueue: %v", err)
			}
		}
	}
	drain(t, d)

	for p := range 10 {
		pid := fmt.Sprintf("p-%d", p)
		row, ok := store.row(pid)
		if !ok {
			t.Fatalf("%s not indexed", pid)
		}
		if len(row.ServiceIDs()) != 5 || store.sequence(pid) != 6 {
			t.Errorf("%s: services %v seq %d", pid, row.ServiceIDs(), store.sequence(pid))
		}
	}
}

func TestDispatcher_RedeliversAfterActivation(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, newTestService(store), DispatcherConfig{Partitions: 1, QueueSize: 8, MaxRedeliveries: 10})

	for _, e := range []event.Event{
		ev("p-1", 2, event.ServiceAdded{ServiceID: "plumbing"}),
		ev("p-1", 3, event.TierChanged{NewTier: 2}),
		ev("p-1", 1, activated("Acme", home)),
	} {
		if err := d.Enqueue(context.Background(), e); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	drain(t, d)

	row, ok := store.row("p-1")
	if !ok {
		t.Fatal("provider not indexed")
	}
	if !row.HasService("plumbing") || row.Tier() != 2 {
		t.Errorf("row = %+v", row.Snapshot())
	}
	if store.sequence("p-1") != 3 {
		t.Errorf("sequence = %d, want 3", store.sequence("p-1"))
	}
}

func TestDispatcher_GivesUpAfterMaxRedeliveries(t *testing.T) {
	apply := &funcApplier{fn: func(event.Event) (batch.ItemStatus, error) {
		return batch.StatusError, fmt.Errorf("x: %w", domain.ErrProviderNotIndexed)
	}}
	d := newTestDispatcher(t, apply, DispatcherConfig{Partitions: 1, QueueSize: 4, MaxRedeliveries: 2})

	if err := d.Enqueue(context.Background(), ev("p-1", 2, event.Deactivated{})); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "redeliveries", func() bool { return apply.callCount() >= 3 })
	time.Sleep(30 * time.Millisecond)
	drain(t, d)

	if n := apply.callCount(); n != 3 {
		t.Errorf("Apply calls = %d, want 3 (1 + 2 redeliveries)", n)
	}
}

func TestDispatcher_NonRetryableErrorIsNotRedelivered(t *testing.T) {
	apply := &funcApplier{fn: func(event.Event) (batch.ItemStatus, error) {
		return batch.StatusError, domain.Validationf("bad")
	}}
	d := newTestDispatcher(t, apply, DispatcherConfig{Partitions: 1, QueueSize: 4, MaxRedeliveries: 5})

	_ = d.Enqueue(context.Background(), ev("p-1", 1, event.Deactivated{}))
	_ = d.Enqueue(context.Background(), ev("p-1", 2, event.Deactivated{}))
	drain(t, d)

	if n := apply.callCount(); n != 2 {
		t.Errorf("Apply calls = %d, want 2", n)
	}
}

func TestDispatcher_EventualConsistency(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	d := newTestDispatcher(t, newTestService(store), DispatcherConfig{Partitions: 2, QueueSize: 4})

	if err := d.Enqueue(context.Background(), ev("p-1", 1, activated("Acme", home))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, ok := store.row("p-1"); ok {
		t.Fatal("row visible before the projection committed")
	}

	close(store.gate)
	waitFor(t, "row to become visible", func() bool {
		_, ok := store.row("p-1")
		return ok
	})
}

func TestDispatcher_EnqueueValidates(t *testing.T) {
	d := newTestDispatcher(t, newTestService(newMemStore()), DispatcherConfig{})
	err := d.Enqueue(context.Background(), event.Event{ProviderID: "p-1", Sequence: 0, Payload: event.Deleted{}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestDispatcher_ClosedAfterDrain(t *testing.T) {
	d := newTestDispatcher(t, newTestService(newMemStore()), DispatcherConfig{})
	drain(t, d)
	if err := d.Enqueue(context.Background(), ev("p-1", 1, event.Deleted{})); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("err = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcher_EnqueueHonoursContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	apply := &funcApplier{fn: func(event.Event) (batch.ItemStatus, error) {
		<-block
		return batch.StatusApplied, nil
	}}
	d := NewDispatcher(apply, DispatcherConfig{Partitions: 1, QueueSize: 1}, zap.NewNop())
	d.Start()
	defer func() {
		close(block)
		d.Stop()
	}()

	_ = d.Enqueue(context.Background(), ev("p-1", 1, event.Deleted{}))
	waitFor(t, "worker to pick up the first event", func() bool { return apply.callCount() == 1 })
	_ = d.Enqueue(context.Background(), ev("p-1", 2, event.Deleted{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Enqueue(ctx, ev("p-1", 3, event.Deleted{})); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if d.Depth() != 1 || d.Capacity() != 1 {
		t.Errorf("Depth() = %d Capacity() = %d", d.Depth(), d.Capacity())
	}
}

func TestPartitionOf_Stable(t *testing.T) {
	for _, key := range []string{"p-1", "p-2", "", "provider/with/slashes"} {
		a, b := partitionOf(key, 16), partitionOf(key, 16)
		if a != b || a < 0 || a >= 16 {
			t.Errorf("partitionOf(%q) = %d, %d", key, a, b)
		}
	}
}
