package watcher

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"reflex/internal/depgraph"
)

// Import syntax recognized in route modules. Static import/export-from
// forms share one pattern; dynamic import() and require() each get
// their own so the edge kind is preserved.
var (
	staticImportPattern  = regexp.MustCompile(`(?m)^\s*(?:import|export)\b[^'"]*?from\s+['"]([^'"]+)['"]`)
	bareImportPattern    = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	dynamicImportPattern = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
	requirePattern       = regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`)
)

var resolveExtensions = []string{".js", ".jsx", ".mjs", ".ts", ".tsx"}

// Scanner derives a file's outgoing dependency edges from its source
// text. Relative specifiers resolve against the importing file's
// directory with extension probing; bare specifiers are external
// packages.
type Scanner struct{}

// Scan reads filePath and extracts its dependency edges. A missing or
// unreadable file yields no edges and no error: the caller treats it
// as having no imports, which also covers deletions racing the scan.
func (scanner Scanner) Scan(filePath string) []depgraph.Edge {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}
	return scanner.ScanSource(filePath, string(source))
}

// ScanSource extracts edges from in-memory source text.
func (scanner Scanner) ScanSource(filePath, source string) []depgraph.Edge {
	baseDir := filepath.Dir(filePath)
	var edges []depgraph.Edge
	seen := make(map[string]struct{})

	collect := func(specifiers []string, kind depgraph.EdgeKind) {
		for _, specifier := range specifiers {
			edge := resolveSpecifier(baseDir, specifier, kind)
			identity := string(edge.Kind) + "\x00" + edge.Path
			if _, duplicate := seen[identity]; duplicate {
				continue
			}
			seen[identity] = struct{}{}
			edges = append(edges, edge)
		}
	}

	collect(matchSpecifiers(staticImportPattern, source), depgraph.EdgeImport)
	collect(matchSpecifiers(bareImportPattern, source), depgraph.EdgeImport)
	collect(matchSpecifiers(requirePattern, source), depgraph.EdgeImport)
	collect(matchSpecifiers(dynamicImportPattern, source), depgraph.EdgeDynamicImport)

	return edges
}

// Sync rescans filePath and replaces its outgoing edges in the graph.
func (scanner Scanner) Sync(graph *depgraph.Graph, filePath string) {
	graph.Update(filepath.ToSlash(filePath), scanner.Scan(filePath))
}

func matchSpecifiers(pattern *regexp.Regexp, source string) []string {
	matches := pattern.FindAllStringSubmatch(source, -1)
	if len(matches) == 0 {
		return nil
	}
	specifiers := make([]string, 0, len(matches))
	for _, match := range matches {
		specifiers = append(specifiers, match[1])
	}
	return specifiers
}

func resolveSpecifier(baseDir, specifier string, kind depgraph.EdgeKind) depgraph.Edge {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return depgraph.Edge{Path: specifier, Kind: kind, External: true}
	}

	resolved := filepath.ToSlash(filepath.Join(baseDir, specifier))
	if target, ok := probeModule(resolved); ok {
		return depgraph.Edge{Path: target, Kind: kind}
	}
	// Unresolvable on disk: keep the joined path so the edge still
	// connects if the target appears later under its exact name.
	return depgraph.Edge{Path: resolved, Kind: kind}
}

// probeModule resolves a specifier the way the bundler would: the
// exact path, then known extensions, then a directory index.
func probeModule(resolved string) (string, bool) {
	if isFile(resolved) {
		return resolved, true
	}
	for _, ext := range resolveExtensions {
		if candidate := resolved + ext; isFile(candidate) {
			return candidate, true
		}
	}
	for _, ext := range resolveExtensions {
		if candidate := resolved + "/index" + ext; isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
