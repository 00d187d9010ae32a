package depgraph

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imports(paths ...string) []Edge {
	edges := make([]Edge, 0, len(paths))
	for _, path := range paths {
		edges = append(edges, Edge{Path: path, Kind: EdgeImport})
	}
	return edges
}

func sorted(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func TestUpdateBuildsReverseMapping(t *testing.T) {
	graph := New()

	graph.Update("/app/api/posts.js", imports("/app/lib/db.js", "/app/lib/auth.js"))
	graph.Update("/app/api/users.js", imports("/app/lib/db.js"))

	assert.Equal(t,
		[]string{"/app/api/posts.js", "/app/api/users.js"},
		sorted(graph.Dependents("/app/lib/db.js")))
	assert.Equal(t,
		[]string{"/app/api/posts.js"},
		graph.Dependents("/app/lib/auth.js"))
}

func TestUpdateReplacesEdgeSetIncrementally(t *testing.T) {
	graph := New()

	graph.Update("/app/api/posts.js", imports("/app/lib/db.js", "/app/lib/auth.js"))
	graph.Update("/app/api/posts.js", imports("/app/lib/db.js", "/app/lib/cache.js"))

	assert.Empty(t, graph.Dependents("/app/lib/auth.js"))
	assert.Equal(t, []string{"/app/api/posts.js"}, graph.Dependents("/app/lib/db.js"))
	assert.Equal(t, []string{"/app/api/posts.js"}, graph.Dependents("/app/lib/cache.js"))
}

func TestUpdateInvariantBothDirections(t *testing.T) {
	graph := New()

	graph.Update("/b.js", imports("/a.js"))

	// if B is a dependent of A, some edge of B targets A
	require.Contains(t, graph.Dependents("/a.js"), "/b.js")
	edges := graph.Dependencies("/b.js")
	require.Len(t, edges, 1)
	assert.Equal(t, "/a.js", edges[0].Path)
}

func TestExternalEdgesAreNotIndexed(t *testing.T) {
	graph := New()

	graph.Update("/app/api/posts.js", []Edge{
		{Path: "/app/lib/db.js", Kind: EdgeImport},
		{Path: "next/server", Kind: EdgeImport, External: true},
	})

	assert.Empty(t, graph.Dependents("next/server"))
	assert.Len(t, graph.Dependencies("/app/api/posts.js"), 2)
}

func TestRemoveClearsOutgoingEdgesOnly(t *testing.T) {
	graph := New()

	graph.Update("/b.js", imports("/a.js"))
	graph.Update("/c.js", imports("/b.js"))

	graph.Remove("/b.js")

	assert.Empty(t, graph.Dependents("/a.js"))
	assert.Empty(t, graph.Dependencies("/b.js"))
	// /c.js still imports /b.js, so the reverse entry survives the
	// deletion: the importer's edge is live until /c.js is rescanned.
	assert.Equal(t, []string{"/c.js"}, graph.Dependents("/b.js"))
}

func TestRemoveThenRecreateKeepsDependents(t *testing.T) {
	graph := New()
	routes := routeSet("/app/api/posts.js")

	graph.Update("/app/api/posts.js", imports("/app/lib/db.js"))

	// Delete the shared module and recreate it, as a branch switch
	// does. Only the recreated file is rescanned.
	graph.Remove("/app/lib/db.js")
	graph.Update("/app/lib/db.js", nil)

	strategy := graph.Determine("/app/lib/db.js", routes, false, "")
	require.Equal(t, StrategySingle, strategy.Kind)
	assert.Equal(t, []string{"/app/api/posts.js"}, strategy.Routes)
}

func TestNilGraphIsSafe(t *testing.T) {
	var graph *Graph
	assert.NotPanics(t, func() {
		graph.Update("/a.js", imports("/b.js"))
		graph.Remove("/a.js")
		assert.Empty(t, graph.Dependents("/a.js"))
		assert.Empty(t, graph.Dependencies("/a.js"))
	})
}
