package bus

import (
	"fmt"
	"sync"

	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
)

const (
	historyCap     = 200
	subscriberQueue = 256
)

// Handler observes a published event. It must not block for long —
// subscriber delivery is serialized per handler, so a slow handler delays
// only its own later events, never siblings or the publisher.
type Handler func(Event)

// subscriber pairs a handler with its own ordered delivery queue so that
// per-subscriber FIFO holds regardless of goroutine scheduling: one
// dedicated goroutine drains the queue and invokes the handler in publish
// order.
type subscriber struct {
	handler Handler
	queue   chan Event
}

// EventBus is the only permitted in-band communication channel between
// components of one session. Subscriptions are additive-only for the
// lifetime of the bus; there is no unsubscribe because components live
// and die with the session.
type EventBus struct {
	log logging.Logger

	mu       sync.RWMutex
	handlers map[EventType][]*subscriber
	all      []*subscriber

	histMu  sync.Mutex
	history []Event
}

// New creates an EventBus for one session.
func New(log logging.Logger) *EventBus {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &EventBus{
		log:      log,
		handlers: make(map[EventType][]*subscriber),
	}
}

// Subscribe registers a handler for one event type.
func (b *EventBus) Subscribe(t EventType, h Handler) {
	s := b.spawn(h)
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], s)
	b.mu.Unlock()
}

// SubscribeAll registers a handler invoked for every event type.
func (b *EventBus) SubscribeAll(h Handler) {
	s := b.spawn(h)
	b.mu.Lock()
	b.all = append(b.all, s)
	b.mu.Unlock()
}

func (b *EventBus) spawn(h Handler) *subscriber {
	s := &subscriber{handler: h, queue: make(chan Event, subscriberQueue)}
	go func() {
		for e := range s.queue {
			b.invoke(s.handler, e)
		}
	}()
	return s
}

func (b *EventBus) invoke(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panic: type=%s recover=%v", e.Type, r)
		}
	}()
	h(e)
}

// Publish fans the event out to every matching subscriber. Each
// subscriber's handler runs on its own goroutine in strict publish order;
// delivery across different subscribers is concurrent and unordered
// relative to each other. Publish does not block on handler execution: a
// subscriber whose queue is full drops the event for that subscriber and
// logs the overflow rather than stalling the publisher. A handler
// panic/failure is isolated and never affects sibling handlers or the
// publisher.
func (b *EventBus) Publish(e Event) {
	b.histMu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > historyCap {
		b.history = b.history[len(b.history)-historyCap:]
	}
	b.histMu.Unlock()

	b.mu.RLock()
	typed := append([]*subscriber(nil), b.handlers[e.Type]...)
	all := append([]*subscriber(nil), b.all...)
	b.mu.RUnlock()

	for _, s := range typed {
		b.enqueue(s, e)
	}
	for _, s := range all {
		b.enqueue(s, e)
	}
}

func (b *EventBus) enqueue(s *subscriber, e Event) {
	select {
	case s.queue <- e:
	default:
		b.log.Warn("event subscriber queue full, dropping event: type=%s", e.Type)
	}
}

// GetRecentEvents returns a snapshot of the last n events (or fewer if
// the bus has not seen n yet), oldest first.
func (b *EventBus) GetRecentEvents(n int) []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	start := len(b.history) - n
	out := make([]Event, n)
	copy(out, b.history[start:])
	return out
}

// String helps tests and logs render an event concisely.
func (e Event) String() string {
	return fmt.Sprintf("%s@%s(source=%s)", e.Type, e.Timestamp.Format("15:04:05.000"), e.Source)
}
