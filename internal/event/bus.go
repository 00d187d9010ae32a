package event

import (
	"context"
	"sync"
	"sync/atomic"

	"reflex/internal/metrics"
)

const defaultSubscriberBuffer = 64

// Typed is implemented by events that carry a type tag, enabling
// type-filtered subscriptions.
type Typed interface {
	Type() string
}

// Options configures a Bus.
type Options struct {
	Name             string
	SubscriberBuffer int
	HistorySize      int
	Registry         *metrics.Registry
}

// Bus is an in-process publish/subscribe channel. Publishing never
// blocks: a subscriber whose buffer is full misses the event, which is
// counted as a drop in the metrics registry.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextID      uint64
	closed      bool
	closeOnce   sync.Once
	options     Options
	registry    *metrics.Registry
	history     []T
	historyNext int
	historyLen  int
	published   atomic.Int64
	dropped     atomic.Int64
}

type subscription[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
}

// NewBus creates a bus that closes when ctx is cancelled.
func NewBus[T any](ctx context.Context, options Options) *Bus[T] {
	if options.SubscriberBuffer <= 0 {
		options.SubscriberBuffer = defaultSubscriberBuffer
	}
	if options.Registry == nil {
		options.Registry = metrics.Default
	}
	bus := &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     options,
		registry:    options.Registry,
	}
	if options.HistorySize > 0 {
		bus.history = make([]T, options.HistorySize)
	}
	if ctx != nil {
		if done := ctx.Done(); done != nil {
			go func() {
				<-done
				bus.Close()
			}()
		}
	}
	return bus
}

// Subscribe delivers every published event.
func (bus *Bus[T]) Subscribe() (<-chan T, func()) {
	return bus.SubscribeFiltered(nil)
}

// SubscribeFiltered delivers events for which filter returns true. A
// nil filter matches everything.
func (bus *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	if bus == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}
	bus.nextID++
	id := bus.nextID
	ch := make(chan T, bus.options.SubscriberBuffer)
	bus.subscribers[id] = subscription[T]{id: id, ch: ch, filter: filter}
	bus.mu.Unlock()

	return ch, func() { bus.removeSubscriber(id) }
}

// SubscribeTypes delivers only events whose Type() matches one of the
// given names. Events that do not implement Typed never match.
func (bus *Bus[T]) SubscribeTypes(eventTypes ...string) (<-chan T, func()) {
	typeSet := make(map[string]struct{}, len(eventTypes))
	for _, eventType := range eventTypes {
		if eventType != "" {
			typeSet[eventType] = struct{}{}
		}
	}
	if len(typeSet) == 0 {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}
	return bus.SubscribeFiltered(func(value T) bool {
		typed, ok := any(value).(Typed)
		if !ok {
			return false
		}
		_, matched := typeSet[typed.Type()]
		return matched
	})
}

// Publish delivers the event to all matching subscribers without
// blocking the caller.
func (bus *Bus[T]) Publish(value T) {
	if bus == nil {
		return
	}

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return
	}
	bus.appendHistoryLocked(value)
	subscribers := make([]subscription[T], 0, len(bus.subscribers))
	for _, sub := range bus.subscribers {
		subscribers = append(subscribers, sub)
	}
	bus.mu.Unlock()

	bus.published.Add(1)
	bus.registry.IncEventPublished(bus.name())

	for _, sub := range subscribers {
		if !bus.filterAllows(sub, value) {
			continue
		}
		select {
		case sub.ch <- value:
		default:
			bus.dropped.Add(1)
			bus.registry.IncEventDropped(bus.name())
		}
	}
}

// Close terminates all subscriptions. Further publishes are ignored.
func (bus *Bus[T]) Close() {
	if bus == nil {
		return
	}
	bus.closeOnce.Do(func() {
		bus.mu.Lock()
		bus.closed = true
		subscribers := bus.subscribers
		bus.subscribers = make(map[uint64]subscription[T])
		bus.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
	})
}

// History returns up to count recent events in publish order. Zero or
// negative count returns the full retained history.
func (bus *Bus[T]) History(count int) []T {
	if bus == nil {
		return nil
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if len(bus.history) == 0 || bus.historyLen == 0 {
		return nil
	}
	total := bus.historyLen
	if count <= 0 || count > total {
		count = total
	}
	start := total - count
	if total == len(bus.history) {
		start = (bus.historyNext - count + len(bus.history)) % len(bus.history)
	}
	out := make([]T, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, bus.history[(start+i)%len(bus.history)])
	}
	return out
}

func (bus *Bus[T]) SubscriberCount() int {
	if bus == nil {
		return 0
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return len(bus.subscribers)
}

func (bus *Bus[T]) removeSubscriber(id uint64) {
	bus.mu.Lock()
	sub, ok := bus.subscribers[id]
	if ok {
		delete(bus.subscribers, id)
	}
	bus.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

func (bus *Bus[T]) filterAllows(sub subscription[T], value T) (allowed bool) {
	if sub.filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			bus.removeSubscriber(sub.id)
			allowed = false
		}
	}()
	return sub.filter(value)
}

func (bus *Bus[T]) appendHistoryLocked(value T) {
	if len(bus.history) == 0 {
		return
	}
	bus.history[bus.historyNext] = value
	if bus.historyLen < len(bus.history) {
		bus.historyLen++
	}
	bus.historyNext = (bus.historyNext + 1) % len(bus.history)
}

func (bus *Bus[T]) name() string {
	if bus.options.Name == "" {
		return "event_bus"
	}
	return bus.options.Name
}
