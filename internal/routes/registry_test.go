package routes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("export default () => {}\n"), 0o644))
}

func TestScanRegistersRouteModules(t *testing.T) {
	root := t.TempDir()
	apiDir := filepath.Join(root, "pages", "api")
	writeFile(t, filepath.Join(apiDir, "index.js"))
	writeFile(t, filepath.Join(apiDir, "posts", "[id].js"))
	writeFile(t, filepath.Join(apiDir, "readme.md"))

	registry := NewRegistry(NewMapper("pages/api", "/api"))
	require.NoError(t, registry.Scan(apiDir))

	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, []string{"/api", "/api/posts/:id"}, registry.Routes())
}

func TestAddRejectsNonModuleFiles(t *testing.T) {
	registry := NewRegistry(NewMapper("pages/api", "/api"))

	assert.True(t, registry.Add("pages/api/posts.js"))
	assert.False(t, registry.Add("pages/api/notes.txt"))
	assert.False(t, registry.Add("pages/components/button.js"))
	assert.Equal(t, 1, registry.Len())
}

func TestKnownAndRoutePath(t *testing.T) {
	registry := NewRegistry(NewMapper("pages/api", "/api"))
	registry.Add("pages/api/posts/[id].js")

	known := registry.Known()
	_, ok := known["pages/api/posts/[id].js"]
	assert.True(t, ok)

	route, ok := registry.RoutePath("pages/api/posts/[id].js")
	require.True(t, ok)
	assert.Equal(t, "/api/posts/:id", route)
}

func TestRemoveForgetsFile(t *testing.T) {
	registry := NewRegistry(NewMapper("pages/api", "/api"))
	registry.Add("pages/api/posts.js")

	registry.Remove("pages/api/posts.js")

	assert.Equal(t, 0, registry.Len())
	_, ok := registry.RoutePath("pages/api/posts.js")
	assert.False(t, ok)
}

func TestIsModuleFile(t *testing.T) {
	assert.True(t, IsModuleFile("a/b.js"))
	assert.True(t, IsModuleFile("a/b.TSX"))
	assert.False(t, IsModuleFile("a/b.css"))
	assert.False(t, IsModuleFile("a/b"))
}
