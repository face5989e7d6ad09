package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// dropLogEvery spaces out drop warnings once the queue is saturated.
const dropLogEvery = 1000

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the queue is full instead of waiting
	// for room.
	DropIfFull bool
	// Logger receives drop warnings. Defaults to slog.Default().
	Logger     *slog.Logger
}

// Dispatcher hands engine events to a sink from one goroutine, so sinks
// never run on the request path.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	logger     *slog.Logger

	// gate orders sends against Close: senders hold it shared, Close holds it
	// exclusively while it closes queue.
	gate   sync.RWMutex
	closed bool
	queue  chan Event
	idle   chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts a dispatcher. Disabled auditing yields a nil
// *Dispatcher, whose methods are no-ops.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := max(cfg.BufferSize, 1)
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger.With(slog.String("component", "audit")),
		queue:      make(chan Event, size),
		idle:       make(chan struct{}),
	}
	go d.deliver()
	return d
}

// deliver drains the queue until Close closes it.
func (d *Dispatcher) deliver() {
	defer close(d.idle)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
		d.delivered.Add(1)
	}
}

// Emit queues ev. With DropIfFull a full queue drops ev at once; otherwise
// Emit waits for room and drops ev only when ctx ends first. Events emitted
// after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		default:
			d.drop(ev)
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.drop(ev)
	}
}

func (d *Dispatcher) drop(ev Event) {
	n := d.dropped.Add(1)
	if n == 1 || n%dropLogEvery == 0 {
		d.logger.Warn("audit event dropped",
			slog.String("type", ev.Type),
			slog.Uint64("dropped_total", n),
		)
	}
}

// Close stops intake and returns once every queued event reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.gate.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.gate.Unlock()
	<-d.idle
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
