package depgraph

import "sort"

// StrategyKind tags the reload strategy variants.
type StrategyKind string

const (
	// StrategySkip means no known route is affected.
	StrategySkip StrategyKind = "skip"
	// StrategySingle reloads exactly one route.
	StrategySingle StrategyKind = "single"
	// StrategySelective reloads the listed routes in discovery order.
	StrategySelective StrategyKind = "selective"
	// StrategyFull marks every route stale; shared infrastructure
	// such as process config or an environment file changed.
	StrategyFull StrategyKind = "full"
)

// Strategy is the reload decision for one changed file.
type Strategy struct {
	Kind   StrategyKind
	Routes []string
	Reason string
}

func Skip() Strategy {
	return Strategy{Kind: StrategySkip}
}

func Single(route string) Strategy {
	return Strategy{Kind: StrategySingle, Routes: []string{route}}
}

func Selective(routes []string) Strategy {
	return Strategy{Kind: StrategySelective, Routes: routes}
}

func Full(reason string) Strategy {
	return Strategy{Kind: StrategyFull, Reason: reason}
}

// Determine computes the reload strategy for a changed file. infra
// short-circuits to Full before any traversal; a direct member of
// knownRoutes is always Single for that exact path regardless of its
// dependents. Otherwise a cycle-safe breadth-first walk over the
// dependents mapping collects affected routes in discovery order.
// Sibling dependents expand in sorted order so a fixed graph always
// yields the same route sequence.
func (graph *Graph) Determine(changedPath string, knownRoutes map[string]struct{}, infra bool, reason string) Strategy {
	if infra {
		return Full(reason)
	}
	if _, ok := knownRoutes[changedPath]; ok {
		return Single(changedPath)
	}
	if graph == nil {
		return Skip()
	}

	graph.mu.Lock()
	defer graph.mu.Unlock()

	visited := map[string]struct{}{changedPath: {}}
	queue := []string{changedPath}
	var matches []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next := make([]string, 0, len(graph.dependents[current]))
		for dependent := range graph.dependents[current] {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}
			next = append(next, dependent)
		}
		sort.Strings(next)

		for _, dependent := range next {
			if _, ok := knownRoutes[dependent]; ok {
				matches = append(matches, dependent)
			}
			queue = append(queue, dependent)
		}
	}

	switch len(matches) {
	case 0:
		return Skip()
	case 1:
		return Single(matches[0])
	default:
		return Selective(matches)
	}
}
