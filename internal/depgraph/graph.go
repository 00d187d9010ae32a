package depgraph

import "sync"

// EdgeKind distinguishes static from dynamic imports.
type EdgeKind string

const (
	EdgeImport        EdgeKind = "import"
	EdgeDynamicImport EdgeKind = "dynamic-import"
)

// Edge is one outgoing dependency of a file.
type Edge struct {
	Path     string
	Kind     EdgeKind
	External bool
}

// Graph maintains the bidirectional import graph between files. Both
// mappings are keyed by absolute file path. Mutation and traversal are
// separate atomic steps: a strategy computation never observes a
// half-applied update.
type Graph struct {
	mu           sync.Mutex
	dependents   map[string]map[string]struct{}
	dependencies map[string][]Edge
}

func New() *Graph {
	return &Graph{
		dependents:   make(map[string]map[string]struct{}),
		dependencies: make(map[string][]Edge),
	}
}

// Update replaces the outgoing edge set of filePath and incrementally
// recomputes the reverse mapping: targets no longer imported lose
// filePath as a dependent, newly imported targets gain it. External
// package edges are recorded but never indexed as dependents, since a
// change to a file cannot propagate through node_modules.
func (graph *Graph) Update(filePath string, edges []Edge) {
	if graph == nil {
		return
	}
	graph.mu.Lock()
	defer graph.mu.Unlock()

	previousTargets := make(map[string]struct{})
	for _, edge := range graph.dependencies[filePath] {
		if !edge.External {
			previousTargets[edge.Path] = struct{}{}
		}
	}

	nextTargets := make(map[string]struct{})
	for _, edge := range edges {
		if !edge.External {
			nextTargets[edge.Path] = struct{}{}
		}
	}

	for target := range previousTargets {
		if _, still := nextTargets[target]; still {
			continue
		}
		if set, ok := graph.dependents[target]; ok {
			delete(set, filePath)
			if len(set) == 0 {
				delete(graph.dependents, target)
			}
		}
	}

	for target := range nextTargets {
		set, ok := graph.dependents[target]
		if !ok {
			set = make(map[string]struct{})
			graph.dependents[target] = set
		}
		set[filePath] = struct{}{}
	}

	if len(edges) == 0 {
		delete(graph.dependencies, filePath)
		return
	}
	stored := make([]Edge, len(edges))
	copy(stored, edges)
	graph.dependencies[filePath] = stored
}

// Remove clears the outgoing edges of filePath, used when the watcher
// reports a deletion. The reverse index entry for filePath stays: it
// is derived from other files' still-live edges, and those importers
// keep pointing at the path so a recreated file under the same name
// reconnects without every importer being rescanned.
func (graph *Graph) Remove(filePath string) {
	graph.Update(filePath, nil)
}

// Dependents returns the direct dependents of filePath, one hop only.
func (graph *Graph) Dependents(filePath string) []string {
	if graph == nil {
		return nil
	}
	graph.mu.Lock()
	defer graph.mu.Unlock()

	set := graph.dependents[filePath]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for path := range set {
		out = append(out, path)
	}
	return out
}

// Dependencies returns a copy of filePath's outgoing edges.
func (graph *Graph) Dependencies(filePath string) []Edge {
	if graph == nil {
		return nil
	}
	graph.mu.Lock()
	defer graph.mu.Unlock()

	edges := graph.dependencies[filePath]
	if len(edges) == 0 {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
