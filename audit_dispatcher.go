package sessionauth

import (
	"context"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// auditDispatcher hands events to the sink on its own goroutine so a slow
// sink never holds a login request.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	log       logrus.FieldLogger
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, log logrus.FieldLogger) *auditDispatcher {
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
		cfg:  cfg,
		sink: sink,
		log:  log,
		ch:   make(chan AuditEvent, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			// drain what was accepted before Close
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if p := recover(); p != nil && d.log != nil {
			d.log.WithField("audit", event.EventType).Errorf("audit sink panicked: %v", p)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full buffer drops the event;
// otherwise Emit waits for room, ctx, or Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.recordDrop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.recordDrop(event)
	case <-d.done:
	}
}

// recordDrop logs on the 1st, 2nd, 4th, 8th... drop.
func (d *auditDispatcher) recordDrop(event AuditEvent) {
	n := d.dropped.Add(1)
	if d.log != nil && bits.OnesCount64(n) == 1 {
		d.log.WithFields(logrus.Fields{
			"audit":   event.EventType,
			"dropped": n,
		}).Warn("audit buffer full, dropping events")
	}
}

// Close stops accepting events and waits for the queue to drain.
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

// Dropped returns the number of events lost to backpressure.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
