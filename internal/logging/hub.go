package logging

import "sync"

const defaultSubscriberBuffer = 64

// Hub fans live log entries out to subscribers. Slow subscribers drop
// entries rather than block the logging caller.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Entry
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Entry)}
}

func (hub *Hub) Subscribe(buffer int) (<-chan Entry, func()) {
	if hub == nil {
		return nil, func() {}
	}
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		ch := make(chan Entry)
		close(ch)
		return ch, func() {}
	}
	hub.nextID++
	id := hub.nextID
	ch := make(chan Entry, buffer)
	hub.subs[id] = ch
	return ch, func() {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		if existing, ok := hub.subs[id]; ok {
			delete(hub.subs, id)
			close(existing)
		}
	}
}

func (hub *Hub) Broadcast(entry Entry) {
	if hub == nil {
		return
	}
	hub.mu.Lock()
	if hub.closed {
		hub.mu.Unlock()
		return
	}
	subs := make([]chan Entry, 0, len(hub.subs))
	for _, ch := range hub.subs {
		subs = append(subs, ch)
	}
	hub.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (hub *Hub) Close() {
	if hub == nil {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		return
	}
	hub.closed = true
	for id, ch := range hub.subs {
		delete(hub.subs, id)
		close(ch)
	}
}
