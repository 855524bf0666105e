package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"go.uber.org/zap"
)

const (
	forwarderQueueSize = 256
	sinkPublishTimeout = 5 * time.Second
)

// eventForwarder copies bus events to external sinks on its own goroutine so a
// slow broker never blocks Emit. Events are dropped when the queue is full.
type eventForwarder struct {
	tenantID domain.TenantID
	sinks    []ports.EventSink
	queue    chan domain.Event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64
	logger   *zap.SugaredLogger
}

func newEventForwarder(tenantID domain.TenantID, sinks []ports.EventSink, size int, logger *zap.SugaredLogger) *eventForwarder {
	if size <= 0 {
		size = forwarderQueueSize
	}
	return &eventForwarder{
		tenantID: tenantID,
		sinks:    sinks,
		queue:    make(chan domain.Event, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (f *eventForwarder) enqueue(event domain.Event) {
	select {
	case <-f.stop:
		return
	default:
	}

	select {
	case f.queue <- event:
	default:
		if n := f.dropped.Add(1); n == 1 || n%100 == 0 {
			f.logger.Warnw("event sink queue full, dropping events",
				"tenant_id", f.tenantID,
				"event", event.Name(),
				"dropped", n,
			)
		}
	}
}

func (f *eventForwarder) run() {
	defer close(f.done)

	for {
		select {
		case event := <-f.queue:
			f.publish(event)
		case <-f.stop:
			// flush what was queued before shutdown
			for {
				select {
				case event := <-f.queue:
					f.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (f *eventForwarder) publish(event domain.Event) {
	for _, sink := range f.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkPublishTimeout)
		if err := sink.Publish(ctx, f.tenantID, event); err != nil {
			f.logger.Debugw("event sink publish failed",
				"tenant_id", f.tenantID,
				"event", event.Name(),
				"error", err,
			)
		}
		cancel()
	}
}

// close stops accepting events, flushes the queue and waits for the worker.
func (f *eventForwarder) close() {
	f.stopOnce.Do(func() { close(f.stop) })
	<-f.done
}

func (f *eventForwarder) Dropped() int64 {
	return f.dropped.Load()
}
