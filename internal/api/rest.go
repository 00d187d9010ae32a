package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"reflex/internal/depgraph"
	"reflex/internal/logging"
	"reflex/internal/metrics"
	"reflex/internal/reload"
	"reflex/internal/routes"
	"reflex/internal/state"
)

type RestHandler struct {
	Coordinator *reload.Coordinator
	Registry    *routes.Registry
	Graph       *depgraph.Graph
	Store       *state.Store
	Logger      *logging.Logger
	Metrics     *metrics.Registry
	StartedAt   time.Time
}

type statusResponse struct {
	RouteCount    int       `json:"route_count"`
	Phase         string    `json:"phase"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	ServerTime    time.Time `json:"server_time"`
}

type routeSummary struct {
	Route string `json:"route"`
	File  string `json:"file"`
}

type dependencyEdge struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

type dependencyResponse struct {
	Path         string           `json:"path"`
	Dependents   []string         `json:"dependents"`
	Dependencies []dependencyEdge `json:"dependencies"`
}

type stateResponse struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

func (h *RestHandler) handleStatus(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	response := statusResponse{
		ServerTime: time.Now().UTC(),
	}
	if h.Registry != nil {
		response.RouteCount = h.Registry.Len()
	}
	if h.Coordinator != nil {
		response.Phase = string(h.Coordinator.Phase())
	}
	if !h.StartedAt.IsZero() {
		response.UptimeSeconds = int64(time.Since(h.StartedAt).Seconds())
	}

	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) handleReloadStats(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Coordinator == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "coordinator unavailable"}
	}
	writeJSON(w, http.StatusOK, h.Coordinator.Stats())
	return nil
}

func (h *RestHandler) handleRoutes(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Registry == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "registry unavailable"}
	}

	files := make([]string, 0, h.Registry.Len())
	for file := range h.Registry.Known() {
		files = append(files, file)
	}
	sort.Strings(files)

	summaries := make([]routeSummary, 0, len(files))
	for _, file := range files {
		route, ok := h.Registry.RoutePath(file)
		if !ok {
			continue
		}
		summaries = append(summaries, routeSummary{Route: route, File: file})
	}

	writeJSON(w, http.StatusOK, summaries)
	return nil
}

func (h *RestHandler) handleDependencies(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Graph == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "graph unavailable"}
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "path query parameter is required"}
	}

	response := dependencyResponse{
		Path:       path,
		Dependents: h.Graph.Dependents(path),
	}
	if response.Dependents == nil {
		response.Dependents = []string{}
	}
	edges := h.Graph.Dependencies(path)
	response.Dependencies = make([]dependencyEdge, 0, len(edges))
	for _, edge := range edges {
		response.Dependencies = append(response.Dependencies, dependencyEdge{
			Path:     edge.Path,
			Kind:     string(edge.Kind),
			External: edge.External,
		})
	}

	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) handleState(w http.ResponseWriter, r *http.Request) *apiError {
	if h.Store == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "state store unavailable"}
	}

	switch r.Method {
	case http.MethodGet:
		keys := h.Store.Keys(r.URL.Query().Get("prefix"))
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, http.StatusOK, stateResponse{Keys: keys, Count: len(keys)})
		return nil
	case http.MethodDelete:
		h.Store.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return nil
	default:
		return methodNotAllowed(w, "GET, DELETE")
	}
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Logger == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "logger unavailable"}
	}

	entries := h.Logger.Recent()
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}
	if entries == nil {
		entries = []logging.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	registry := h.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_ = registry.WritePrometheus(w)
}
