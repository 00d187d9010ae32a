package notification

import (
	"context"

	"reflex/internal/event"
)

// historySize bounds the replay window offered to late-connecting
// notification clients.
const historySize = 64

var bus = event.NewBus[Event](context.Background(), event.Options{
	Name:        "notifications",
	HistorySize: historySize,
})

// Bus exposes the process-wide notification bus.
func Bus() *event.Bus[Event] {
	return bus
}

// Publish pushes one event to all notification subscribers.
func Publish(value Event) {
	bus.Publish(value)
}
