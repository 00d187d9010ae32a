package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reflex/internal/depgraph"
	"reflex/internal/notification"
	"reflex/internal/reload"
	"reflex/internal/routes"
	"reflex/internal/state"
)

func newTestServer(t *testing.T, config Config) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, config)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, target any) *http.Response {
	t.Helper()
	response, err := http.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()
	if target != nil {
		require.NoError(t, json.NewDecoder(response.Body).Decode(target))
	}
	return response
}

func testFixture(t *testing.T) Config {
	t.Helper()
	graph := depgraph.New()
	registry := routes.NewRegistry(routes.NewMapper("pages/api", "/api"))
	registry.Add("pages/api/users.js")
	registry.Add("pages/api/posts/[id].ts")
	graph.Update("pages/api/users.js", []depgraph.Edge{
		{Path: "lib/db.js", Kind: depgraph.EdgeImport},
		{Path: "stripe", Kind: depgraph.EdgeImport, External: true},
	})

	coordinator := reload.New(reload.Options{
		Graph:    graph,
		Registry: registry,
		Executor: reload.ExecutorFunc(func(ctx context.Context, filePath string) error { return nil }),
		Notify:   func(notification.Event) {},
	})
	t.Cleanup(coordinator.Close)

	return Config{
		Coordinator: coordinator,
		Registry:    registry,
		Graph:       graph,
		Store:       state.NewStore(0),
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	var status statusResponse
	response := getJSON(t, server.URL+"/api/status", &status)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, 2, status.RouteCount)
	assert.Equal(t, string(reload.PhaseIdle), status.Phase)
	assert.False(t, status.ServerTime.IsZero())
}

func TestReloadStatsEndpoint(t *testing.T) {
	config := testFixture(t)
	config.Coordinator.UpdateStats(true, 100*time.Millisecond)
	config.Coordinator.UpdateStats(false, 200*time.Millisecond)
	server := newTestServer(t, config)

	var stats reload.Stats
	response := getJSON(t, server.URL+"/api/reload/stats", &stats)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, int64(2), stats.TotalReloads)
	assert.Equal(t, int64(1), stats.SuccessfulReloads)
	assert.Equal(t, int64(1), stats.FailedReloads)
	assert.InDelta(t, 150.0, stats.AverageReloadTimeMs, 0.01)
}

func TestRoutesEndpoint(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	var summaries []routeSummary
	response := getJSON(t, server.URL+"/api/routes", &summaries)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	require.Len(t, summaries, 2)
	assert.Equal(t, "/api/posts/:id", summaries[0].Route)
	assert.Equal(t, "/api/users", summaries[1].Route)
}

func TestDependenciesEndpoint(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	var deps dependencyResponse
	response := getJSON(t, server.URL+"/api/dependencies?path=lib/db.js", &deps)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, []string{"pages/api/users.js"}, deps.Dependents)
	assert.Empty(t, deps.Dependencies)

	response = getJSON(t, server.URL+"/api/dependencies?path=pages/api/users.js", &deps)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	require.Len(t, deps.Dependencies, 2)

	var errBody errorResponse
	response = getJSON(t, server.URL+"/api/dependencies", &errBody)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Equal(t, "invalid_request", errBody.Code)
}

func TestStateEndpoint(t *testing.T) {
	config := testFixture(t)
	config.Store.Set("handler:abc", map[string]any{"count": 1})
	config.Store.Set("cache:sessions:u1", "token")
	server := newTestServer(t, config)

	var body stateResponse
	response := getJSON(t, server.URL+"/api/state", &body)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, 2, body.Count)

	response = getJSON(t, server.URL+"/api/state?prefix=cache:", &body)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, []string{"cache:sessions:u1"}, body.Keys)

	request, err := http.NewRequest(http.MethodDelete, server.URL+"/api/state", nil)
	require.NoError(t, err)
	deleteResponse, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	deleteResponse.Body.Close()
	assert.Equal(t, http.StatusOK, deleteResponse.StatusCode)
	assert.Equal(t, 0, config.Store.Len())
}

func TestAuthTokenRequired(t *testing.T) {
	config := testFixture(t)
	config.AuthToken = "secret"
	server := newTestServer(t, config)

	response := getJSON(t, server.URL+"/api/status", nil)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)

	request, err := http.NewRequest(http.MethodGet, server.URL+"/api/status", nil)
	require.NoError(t, err)
	request.Header.Set("Authorization", "Bearer secret")
	authorized, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	authorized.Body.Close()
	assert.Equal(t, http.StatusOK, authorized.StatusCode)

	response = getJSON(t, server.URL+"/api/status?token=secret", nil)
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	response, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, response.Header.Get("Content-Type"), "text/plain")
}

func TestSecurityHeaders(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	response := getJSON(t, server.URL+"/api/status", nil)
	assert.Equal(t, "nosniff", response.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, cacheControlNoStore, response.Header.Get("Cache-Control"))
}

func TestUnknownAPIRouteIs404(t *testing.T) {
	server := newTestServer(t, testFixture(t))

	response := getJSON(t, server.URL+"/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}
