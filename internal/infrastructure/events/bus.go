package events

import (
	"sync"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"

	"go.uber.org/zap"
)

type subscription struct {
	id      ports.SubscriptionID
	handler ports.EventHandler
}

// Bus is an in-process publish/subscribe hub owned by a single service
// instance. Handlers run synchronously on the emitting goroutine in
// registration order; a panicking handler is logged and skipped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventName][]subscription
	nextID   ports.SubscriptionID
	logger   *zap.SugaredLogger
}

func NewBus(logger *zap.SugaredLogger) *Bus {
	return &Bus{
		handlers: make(map[domain.EventName][]subscription),
		logger:   logger,
	}
}

func (b *Bus) On(name domain.EventName, handler ports.EventHandler) ports.SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[name] = append(b.handlers[name], subscription{id: b.nextID, handler: handler})
	return b.nextID
}

func (b *Bus) Off(name domain.EventName, id ports.SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		remaining := make([]subscription, 0, len(subs)-1)
		remaining = append(remaining, subs[:i]...)
		remaining = append(remaining, subs[i+1:]...)
		if len(remaining) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = remaining
		}
		return true
	}
	return false
}

func (b *Bus) Emit(event domain.Event) {
	b.mu.RLock()
	subs := b.handlers[event.Name()]
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, event)
	}
}

func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[domain.EventName][]subscription)
}

// Count returns the number of handlers registered for name.
func (b *Bus) Count(name domain.EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

func (b *Bus) dispatch(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("event handler panicked",
				"event", event.Name(),
				"subscription_id", sub.id,
				"panic", r,
			)
		}
	}()
	sub.handler(event)
}
