package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering and event stamping.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull counts and drops events on a full buffer instead of blocking the caller.
	DropIfFull bool
	// RequestID extracts a request id from the emitting context. Optional.
	RequestID func(context.Context) string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher forwards audit events to a sink on one background goroutine.
// Every event accepted by Emit is delivered before Close returns.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	wg   sync.WaitGroup

	// mu orders sends on ch against its close.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when auditing is disabled.
// A nil *Dispatcher is valid and discards everything.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.ch {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event after filling a zero Timestamp and an empty RequestID.
// In blocking mode it waits for buffer space or ctx. Events emitted after
// Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.stamp(ctx, &event)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) stamp(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}
	if event.RequestID == "" && d.cfg.RequestID != nil {
		event.RequestID = d.cfg.RequestID(ctx)
	}
}

// Close stops accepting events, delivers everything already queued and waits
// for the sink. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped reports events lost to a full buffer or a cancelled emit.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
