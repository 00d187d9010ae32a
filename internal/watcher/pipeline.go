package watcher

import (
	"io/fs"
	"path/filepath"

	"reflex/internal/depgraph"
	"reflex/internal/reload"
	"reflex/internal/routes"
)

// Pipeline returns the change sink that keeps the dependency graph and
// route registry current before handing each change to the
// coordinator. Graph maintenance happens here, outside the
// coordinator's strategy computation, so mutation and traversal stay
// separate atomic steps.
func Pipeline(graph *depgraph.Graph, registry *routes.Registry, coordinator *reload.Coordinator) func(reload.FileChange) {
	scanner := Scanner{}
	return func(change reload.FileChange) {
		if change.Class == reload.ClassModule {
			if isFile(change.Path) {
				scanner.Sync(graph, change.Path)
				registry.Add(change.Path)
			} else {
				graph.Remove(filepath.ToSlash(change.Path))
				registry.Remove(change.Path)
			}
		}
		coordinator.OnFileChanged(change)
	}
}

// SeedGraph scans every module file under root so the graph is
// complete before the first change event arrives.
func SeedGraph(graph *depgraph.Graph, root string) error {
	scanner := Scanner{}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if _, skip := skipDirs[entry.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if isModuleExt(path) {
			scanner.Sync(graph, path)
		}
		return nil
	})
}
