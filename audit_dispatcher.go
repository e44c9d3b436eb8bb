package hooks

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// auditDispatcher fans audit events out to the host sink from a single
// goroutine so handlers never wait on sink latency. The backpressure policy
// comes from [AuditConfig]: with DropIfFull, a full buffer discards the event
// and counts it; otherwise Emit blocks until the buffer drains or the
// caller's context ends.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan AuditEvent
	done       chan struct{}
	wg         sync.WaitGroup
	dropIfFull bool

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	dropOnce  sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan AuditEvent, cfg.BufferSize),
		done:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is buffered at close time. Events emitted after the
// closed flag flips are never queued, so this terminates.
func (d *auditDispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
			// Log once per dispatcher lifetime; the running total is
			// available through Dropped.
			d.dropOnce.Do(func() {
				log.Print("hooks: audit buffer full, dropping events")
			})
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
