package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"reflex/internal/event"
	"reflex/internal/logging"
	"reflex/internal/notification"
	"reflex/internal/state"
)

// NotificationsHandler streams reload notifications over a websocket.
// Clients may narrow the stream by sending {"subscribe": [...]} with
// the event names they want; the default is everything.
type NotificationsHandler struct {
	Bus            *event.Bus[notification.Event]
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
	// Limiter bounds connection attempts per client address. Nil
	// disables limiting.
	Limiter *state.RateLimit
	// Replay is how many recent events a new client receives before
	// the live stream. Zero replays nothing.
	Replay int
}

type notificationSubscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

var knownNotificationTypes = map[string]struct{}{
	notification.EventRouteUpdated:      {},
	notification.EventDependencyUpdated: {},
	notification.EventConfigUpdated:     {},
	notification.EventEnvUpdated:        {},
	notification.EventReloadError:       {},
}

type notificationFilter struct {
	mutex sync.RWMutex
	types map[string]struct{}
}

// Allows reports whether eventType passes. An empty filter passes
// everything; an explicit subscription passes only its members.
func (filter *notificationFilter) Allows(eventType string) bool {
	filter.mutex.RLock()
	defer filter.mutex.RUnlock()
	if filter.types == nil {
		return true
	}
	_, ok := filter.types[eventType]
	return ok
}

func (filter *notificationFilter) Set(subscriptions []string) {
	types := make(map[string]struct{})
	for _, eventType := range subscriptions {
		if _, ok := knownNotificationTypes[eventType]; ok {
			types[eventType] = struct{}{}
		}
	}
	filter.mutex.Lock()
	filter.types = types
	filter.mutex.Unlock()
}

func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}
	if h.Limiter != nil {
		if result := h.Limiter.Check(hostOnly(r.RemoteAddr)); !result.Allowed {
			logWSError(h.Logger, r, wsError{
				Status:  http.StatusTooManyRequests,
				Message: "connection rate limited",
			})
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
	}

	bus := h.Bus
	if bus == nil {
		bus = notification.Bus()
	}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}

	writer := newWSWriter(conn)
	defer writer.Close(websocket.CloseNormalClosure, "")

	// The history snapshot is taken before subscribing so an event
	// published in between lands in exactly one of the two sources.
	// The bus is lossy by design; a miss in that window is a drop,
	// never a duplicate.
	var replay []notification.Event
	if h.Replay > 0 {
		replay = bus.History(h.Replay)
	}

	events, cancel := bus.Subscribe()
	if events == nil {
		writer.Close(websocket.CloseTryAgainLater, "notification stream unavailable")
		return
	}
	defer cancel()

	filter := &notificationFilter{}

	for _, past := range replay {
		if err := writer.WriteJSON(past); err != nil {
			return
		}
	}

	streamJSON(writer, events, func(value notification.Event) (any, bool) {
		if !filter.Allows(value.EventType) {
			return nil, false
		}
		return value, true
	})

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload notificationSubscribeMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		filter.Set(payload.Subscribe)
	}
}
