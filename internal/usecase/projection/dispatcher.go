package projection

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/metrics"
)

// ErrDispatcherClosed is returned by Enqueue after Drain or Stop.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher defaults.
const (
	DefaultPartitions        = 8
	DefaultQueueSize         = 1024
	DefaultMaxRedeliveries   = 5
	DefaultRedeliveryBackoff = 500 * time.Millisecond
)

// DispatcherConfig sizes the asynchronous apply pipeline.
type DispatcherConfig struct {
	Partitions        int
	QueueSize         int
	MaxRedeliveries   int
	RedeliveryBackoff time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MaxRedeliveries < 0 {
		c.MaxRedeliveries = DefaultMaxRedeliveries
	}
	if c.RedeliveryBackoff <= 0 {
		c.RedeliveryBackoff = DefaultRedeliveryBackoff
	}
}

// Dispatcher applies events asynchronously. Events are routed to a partition by
// ProviderID, so each provider has a single writer and keeps its order.
// Retryable failures are parked and redelivered; later events of the same
// provider wait behind them.
type Dispatcher struct {
	apply      Applier
	cfg        DispatcherConfig
	partitions []*partition
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type partition struct {
	label  string
	queue  chan event.Event
	parked map[string][]parkedEvent // by provider, sorted by sequence
}

type parkedEvent struct {
	event    event.Event
	attempts int
}

// NewDispatcher creates a dispatcher. Call Start to launch the workers.
func NewDispatcher(apply Applier, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{apply: apply, cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}
	for i := range cfg.Partitions {
		d.partitions = append(d.partitions, &partition{
			label:  strconv.Itoa(i),
			queue:  make(chan event.Event, cfg.QueueSize),
			parked: make(map[string][]parkedEvent),
		})
	}
	return d
}

// Start launches one worker per partition.
func (d *Dispatcher) Start() {
	for _, p := range d.partitions {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(p)
		}()
	}
}

// Enqueue validates e and hands it to its partition, blocking while the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	p := d.partitions[partitionOf(e.ProviderID, len(d.partitions))]
	select {
	case p.queue <- e:
		metrics.SyncQueueDepth.WithLabelValues(p.label).Set(float64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	}
}

// Depth returns the number of queued events across partitions.
func (d *Dispatcher) Depth() int {
	n := 0
	for _, p := range d.partitions {
		n += len(p.queue)
	}
	return n
}

// Capacity returns the total queue capacity.
func (d *Dispatcher) Capacity() int {
	return d.cfg.Partitions * d.cfg.QueueSize
}

// Drain stops accepting events and waits until queued events are processed.
// When ctx expires first the workers are stopped and ctx.Err is returned.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Stop abandons queued events and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.close()
	d.wg.Wait()
}

func (d *Dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, p := range d.partitions {
		close(p.queue)
	}
}

func (d *Dispatcher) run(p *partition) {
	ticker := time.NewTicker(d.cfg.RedeliveryBackoff)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.abandon(p)
			return
		case e, ok := <-p.queue:
			if !ok {
				d.redeliverAll(p)
				d.abandon(p)
				return
			}
			metrics.SyncQueueDepth.WithLabelValues(p.label).Set(float64(len(p.queue)))
			d.handle(p, e)
		case <-ticker.C:
			d.redeliverAll(p)
		}
	}
}

func (d *Dispatcher) handle(p *partition, e event.Event) {
	if q := p.parked[e.ProviderID]; len(q) > 0 && e.Sequence > q[0].event.Sequence {
		p.park(parkedEvent{event: e})
		return
	}
	if d.attempt(e) {
		p.park(parkedEvent{event: e, attempts: 1})
		return
	}
	if len(p.parked[e.ProviderID]) > 0 {
		d.redeliver(p, e.ProviderID)
	}
}

// attempt applies e once and reports whether it should be redelivered.
func (d *Dispatcher) attempt(e event.Event) bool {
	_, err := d.apply.Apply(d.ctx, e)
	if err == nil {
		return false
	}
	if domain.IsRetryable(err) && d.ctx.Err() == nil {
		return true
	}
	if d.ctx.Err() == nil {
		d.logger.Error("event dropped",
			zap.String("provider_id", e.ProviderID),
			zap.Int64("sequence", e.Sequence),
			zap.String("type", string(e.Kind())),
			zap.Error(err))
	}
	return false
}

func (d *Dispatcher) redeliverAll(p *partition) {
	for pid := range p.parked {
		d.redeliver(p, pid)
	}
}

// redeliver retries the provider's parked events in order until one still fails.
func (d *Dispatcher) redeliver(p *partition, providerID string) {
	q := p.parked[providerID]
	for len(q) > 0 && d.ctx.Err() == nil {
		head := q[0]
		if head.attempts > 0 {
			metrics.SyncRedeliveriesTotal.Inc()
		}
		if !d.attempt(head.event) {
			q = q[1:]
			continue
		}
		head.attempts++
		if head.attempts > d.cfg.MaxRedeliveries {
			d.logger.Error("event dropped after redeliveries",
				zap.String("provider_id", providerID),
				zap.Int64("sequence", head.event.Sequence),
				zap.Int("attempts", head.attempts))
			q = q[1:]
			continue
		}
		q[0] = head
		break
	}
	if len(q) == 0 {
		delete(p.parked, providerID)
		return
	}
	p.parked[providerID] = q
}

func (d *Dispatcher) abandon(p *partition) {
	for pid, q := range p.parked {
		d.logger.Warn("parked events abandoned",
			zap.String("provider_id", pid), zap.Int("count", len(q)))
		delete(p.parked, pid)
	}
	metrics.SyncQueueDepth.WithLabelValues(p.label).Set(0)
}

func (p *partition) park(pe parkedEvent) {
	q := p.parked[pe.event.ProviderID]
	i, _ := slices.BinarySearchFunc(q, pe.event.Sequence, func(x parkedEvent, seq int64) int {
		switch {
		case x.event.Sequence < seq:
			return -1
		case x.event.Sequence > seq:
			return 1
		}
		return 0
	})
	p.parked[pe.event.ProviderID] = slices.Insert(q, i, pe)
}
