package event

import (
	"context"
	"testing"
	"time"

	"reflex/internal/metrics"
)

type testEvent struct {
	Kind string
	Path string
}

func (e testEvent) Type() string {
	return e.Kind
}

func newTestBus(t *testing.T, options Options) *Bus[testEvent] {
	t.Helper()
	if options.Registry == nil {
		options.Registry = &metrics.Registry{}
	}
	bus := NewBus[testEvent](context.Background(), options)
	t.Cleanup(bus.Close)
	return bus
}

func receive(t *testing.T, ch <-chan testEvent) testEvent {
	t.Helper()
	select {
	case value := <-ch:
		return value
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return testEvent{}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := newTestBus(t, Options{Name: "test"})

	first, cancelFirst := bus.Subscribe()
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	bus.Publish(testEvent{Kind: "route-updated", Path: "/api/posts"})

	if got := receive(t, first); got.Path != "/api/posts" {
		t.Fatalf("first subscriber got %+v", got)
	}
	if got := receive(t, second); got.Path != "/api/posts" {
		t.Fatalf("second subscriber got %+v", got)
	}
}

func TestSubscribeTypesFilters(t *testing.T) {
	bus := newTestBus(t, Options{Name: "test"})

	ch, cancel := bus.SubscribeTypes("reload-error")
	defer cancel()

	bus.Publish(testEvent{Kind: "route-updated"})
	bus.Publish(testEvent{Kind: "reload-error", Path: "lib/db.js"})

	got := receive(t, ch)
	if got.Kind != "reload-error" || got.Path != "lib/db.js" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	registry := &metrics.Registry{}
	bus := newTestBus(t, Options{Name: "drops", SubscriberBuffer: 1, Registry: registry})

	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(testEvent{Kind: "route-updated"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on full subscriber")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := newTestBus(t, Options{Name: "test"})

	ch, cancel := bus.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after cancel")
	}
	if count := bus.SubscriberCount(); count != 0 {
		t.Fatalf("expected 0 subscribers, got %d", count)
	}
}

func TestCloseViaContext(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	bus := NewBus[testEvent](ctx, Options{Name: "ctx", Registry: &metrics.Registry{}})

	ch, cancel := bus.Subscribe()
	defer cancel()

	cancelCtx()

	select {
	case _, open := <-ch:
		if open {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("bus did not close on context cancellation")
	}
}

func TestHistoryReplay(t *testing.T) {
	bus := newTestBus(t, Options{Name: "history", HistorySize: 2})

	bus.Publish(testEvent{Kind: "a"})
	bus.Publish(testEvent{Kind: "b"})
	bus.Publish(testEvent{Kind: "c"})

	events := bus.History(0)
	if len(events) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(events))
	}
	if events[0].Kind != "b" || events[1].Kind != "c" {
		t.Fatalf("unexpected history order: %+v", events)
	}

	last := bus.History(1)
	if len(last) != 1 || last[0].Kind != "c" {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestPanickingFilterRemovesSubscriber(t *testing.T) {
	bus := newTestBus(t, Options{Name: "test"})

	_, cancel := bus.SubscribeFiltered(func(testEvent) bool {
		panic("bad filter")
	})
	defer cancel()

	bus.Publish(testEvent{Kind: "route-updated"})

	if count := bus.SubscriberCount(); count != 0 {
		t.Fatalf("expected panicking subscriber removed, have %d", count)
	}
}
