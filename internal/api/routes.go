package api

import (
	"net/http"
	"time"

	"reflex/internal/depgraph"
	"reflex/internal/event"
	"reflex/internal/logging"
	"reflex/internal/metrics"
	"reflex/internal/notification"
	"reflex/internal/reload"
	"reflex/internal/routes"
	"reflex/internal/state"
)

// Config carries everything the HTTP surface needs. Nil components
// degrade to 503 on the endpoints that need them.
type Config struct {
	Coordinator    *reload.Coordinator
	Registry       *routes.Registry
	Graph          *depgraph.Graph
	Store          *state.Store
	Notifications  *event.Bus[notification.Event]
	Logger         *logging.Logger
	Metrics        *metrics.Registry
	AuthToken      string
	AllowedOrigins []string
	// NotificationReplay is how many past events a new websocket
	// client receives.
	NotificationReplay int
	// ConnectionsPerMinute bounds websocket connects per client
	// address. Zero disables the limit.
	ConnectionsPerMinute int
}

// RegisterRoutes attaches every handler to mux.
func RegisterRoutes(mux *http.ServeMux, config Config) {
	rest := &RestHandler{
		Coordinator: config.Coordinator,
		Registry:    config.Registry,
		Graph:       config.Graph,
		Store:       config.Store,
		Logger:      config.Logger,
		Metrics:     config.Metrics,
		StartedAt:   time.Now().UTC(),
	}

	var limiter *state.RateLimit
	if config.ConnectionsPerMinute > 0 && config.Store != nil {
		limiter = state.NewRateLimit(config.Store, "ws-connect", config.ConnectionsPerMinute, time.Minute)
	}

	mux.Handle("/ws/notifications", securityHeadersMiddleware(cacheControlNoStore, &NotificationsHandler{
		Bus:            config.Notifications,
		Logger:         config.Logger,
		AuthToken:      config.AuthToken,
		AllowedOrigins: config.AllowedOrigins,
		Limiter:        limiter,
		Replay:         config.NotificationReplay,
	}))

	wrap := func(handler apiHandler) http.Handler {
		return loggingMiddleware(config.Logger, restHandler(config.AuthToken, handler))
	}

	mux.Handle("/api/status", wrap(rest.handleStatus))
	mux.Handle("/api/reload/stats", wrap(rest.handleReloadStats))
	mux.Handle("/api/routes", wrap(rest.handleRoutes))
	mux.Handle("/api/dependencies", wrap(rest.handleDependencies))
	mux.Handle("/api/state", wrap(rest.handleState))
	mux.Handle("/api/logs", wrap(rest.handleLogs))
	mux.Handle("/metrics", securityHeadersMiddleware(cacheControlNoStore, http.HandlerFunc(rest.handleMetrics)))
	mux.Handle("/api/", securityHeadersMiddleware(cacheControlNoStore, http.NotFoundHandler()))
}
