package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const maxBatch = 64

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events when the buffer is full instead of waiting.
	// Retained event types are never shed.
	DropIfFull bool
}

// Retained reports whether events of eventType record an external side
// effect. They wait for buffer room even when DropIfFull is set.
func Retained(eventType string) bool {
	switch eventType {
	case EventFulfillmentFiled, EventNotificationFailed:
		return true
	default:
		return false
	}
}

// Dispatcher relays events to a sink from one goroutine, in emission order,
// handing over whatever has queued up in batches. A nil Dispatcher accepts
// and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink
	now  func() time.Time

	queue   chan Event
	stop    chan struct{}
	stopped chan struct{}
	closing sync.Once
	closed  atomic.Bool

	emitted atomic.Uint64
	shed    atomic.Uint64
	mu      sync.Mutex
	shedBy  map[string]uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing
// is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		now:     time.Now,
		queue:   make(chan Event, cfg.BufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		shedBy:  make(map[string]uint64),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	batch := make([]Event, 0, maxBatch)
	for {
		select {
		case ev := <-d.queue:
			batch = d.collect(append(batch[:0], ev))
			d.deliver(batch)
		case <-d.stop:
			for {
				batch = d.collect(batch[:0])
				if len(batch) == 0 {
					return
				}
				d.deliver(batch)
			}
		}
	}
}

// collect appends queued events without waiting, up to maxBatch.
func (d *Dispatcher) collect(batch []Event) []Event {
	for len(batch) < maxBatch {
		select {
		case ev := <-d.queue:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (d *Dispatcher) deliver(batch []Event) {
	for _, ev := range batch {
		d.sink.Emit(context.Background(), ev)
	}
	d.emitted.Add(uint64(len(batch)))
}

// Emit queues event and fills a missing timestamp. A full buffer sheds the
// event under DropIfFull unless its type is Retained; otherwise Emit waits
// for room until ctx is done, shedding on cancellation.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}

	if d.cfg.DropIfFull && !Retained(event.EventType) {
		select {
		case d.queue <- event:
		default:
			d.record(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.record(event.EventType)
	case <-d.stop:
	}
}

func (d *Dispatcher) record(eventType string) {
	d.shed.Add(1)
	d.mu.Lock()
	d.shedBy[eventType]++
	d.mu.Unlock()
}

// Shutdown stops accepting events and waits until the queue has been
// delivered or ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.closing.Do(func() {
		d.closed.Store(true)
		close(d.stop)
	})
	select {
	case <-d.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Emitted returns how many events reached the sink.
func (d *Dispatcher) Emitted() uint64 {
	if d == nil {
		return 0
	}
	return d.emitted.Load()
}

// Dropped returns how many events were shed.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.shed.Load()
}

// DroppedByType returns shed counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.shedBy {
		out[k] = v
	}
	return out
}
