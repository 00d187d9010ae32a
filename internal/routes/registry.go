package routes

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var moduleExtensions = map[string]struct{}{
	".js":  {},
	".jsx": {},
	".mjs": {},
	".ts":  {},
	".tsx": {},
}

// Registry is the router's set of file paths currently recognized as
// routable API modules. The reload machinery reads it; only the
// router-side scan and the watcher mutate it.
type Registry struct {
	mu     sync.Mutex
	mapper *Mapper
	files  map[string]string
}

// NewRegistry creates an empty registry using mapper for route
// identities.
func NewRegistry(mapper *Mapper) *Registry {
	return &Registry{
		mapper: mapper,
		files:  make(map[string]string),
	}
}

// Scan walks the API directory and registers every route module file
// found. Files that do not map to a route are ignored.
func (registry *Registry) Scan(apiDir string) error {
	if registry == nil {
		return nil
	}
	return filepath.WalkDir(apiDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		registry.Add(path)
		return nil
	})
}

// Add registers one file if it is a route module, reporting whether it
// was accepted.
func (registry *Registry) Add(filePath string) bool {
	if registry == nil || !IsModuleFile(filePath) {
		return false
	}
	route, ok := registry.mapper.PathToRoute(filePath)
	if !ok {
		return false
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.files[filepath.ToSlash(filepath.Clean(filePath))] = route
	return true
}

// Remove forgets a file, typically after the watcher reports deletion.
func (registry *Registry) Remove(filePath string) {
	if registry == nil {
		return
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.files, filepath.ToSlash(filepath.Clean(filePath)))
}

// Known returns the current route file set, keyed by file path.
func (registry *Registry) Known() map[string]struct{} {
	if registry == nil {
		return nil
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	known := make(map[string]struct{}, len(registry.files))
	for path := range registry.files {
		known[path] = struct{}{}
	}
	return known
}

// RoutePath returns the route identity for a registered file.
func (registry *Registry) RoutePath(filePath string) (string, bool) {
	if registry == nil {
		return "", false
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	route, ok := registry.files[filepath.ToSlash(filepath.Clean(filePath))]
	return route, ok
}

// Routes lists the registered route paths, sorted.
func (registry *Registry) Routes() []string {
	if registry == nil {
		return nil
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]string, 0, len(registry.files))
	for _, route := range registry.files {
		out = append(out, route)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered route files.
func (registry *Registry) Len() int {
	if registry == nil {
		return 0
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.files)
}

// IsModuleFile reports whether a path looks like a route module
// candidate by extension.
func IsModuleFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	_, ok := moduleExtensions[ext]
	return ok
}
