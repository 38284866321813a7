// Package resource defines the named remote collections the gateway manages
// and the dependency relationships between them and their derived views.
package resource

import (
	"fmt"
	"sort"
)

// Graph holds the static dependency map between resources and the derived
// views that must be refreshed whenever the resource changes.
type Graph struct {
	dependents map[string][]string
	known      map[string]struct{}
}

// DefaultDependents is the built-in dependency map for the procurement
// domain. Keys are writable collections; values are the derived views whose
// cached state becomes stale when the collection changes.
func DefaultDependents() map[string][]string {
	return map[string][]string{
		"tenders":         {"tenders.stats", "dashboard.summary"},
		"budgets":         {"budgets.summary"},
		"budgets.summary": {"dashboard.summary"},
		"expenses":        {"expenses.stats", "expenses.byCategory", "budgets.summary"},
		"suppliers":       {"suppliers.ratings"},
		"inventory":       {"inventory.lowStock"},
	}
}

// NewGraph builds a validated dependency graph from the given map.
// Derived views that only appear as dependents become known leaf resources.
func NewGraph(dependents map[string][]string) (*Graph, error) {
	g := &Graph{
		dependents: make(map[string][]string, len(dependents)),
		known:      make(map[string]struct{}, len(dependents)),
	}

	for key, deps := range dependents {
		if key == "" {
			return nil, fmt.Errorf("resource key cannot be empty")
		}
		g.known[key] = struct{}{}

		seen := make(map[string]struct{}, len(deps))
		for _, dep := range deps {
			if dep == "" {
				return nil, fmt.Errorf("resource %q: dependent key cannot be empty", key)
			}
			if dep == key {
				return nil, fmt.Errorf("resource %q: cannot depend on itself", key)
			}
			if _, dup := seen[dep]; dup {
				return nil, fmt.Errorf("resource %q: duplicate dependent %q", key, dep)
			}
			seen[dep] = struct{}{}
			g.known[dep] = struct{}{}
		}
		g.dependents[key] = append([]string(nil), deps...)
	}

	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	return g, nil
}

// Default returns the graph for the built-in procurement dependency map.
func Default() *Graph {
	g, err := NewGraph(DefaultDependents())
	if err != nil {
		// The built-in map is validated by tests; failing here means the
		// defaults themselves are broken.
		panic(fmt.Sprintf("invalid built-in dependency map: %v", err))
	}
	return g
}

// Known reports whether key names a resource in the graph, either as a
// writable collection or as a derived view.
func (g *Graph) Known(key string) bool {
	_, ok := g.known[key]
	return ok
}

// Keys returns all known resource keys in sorted order.
func (g *Graph) Keys() []string {
	keys := make([]string, 0, len(g.known))
	for key := range g.known {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Dependents returns the transitive set of resources that depend on key,
// excluding key itself, in sorted order.
func (g *Graph) Dependents(key string) []string {
	visited := make(map[string]struct{})
	g.walk(key, visited)
	delete(visited, key)

	out := make([]string, 0, len(visited))
	for dep := range visited {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// Affected returns key plus its transitive dependents, the full invalidation
// set for a successful mutation of key.
func (g *Graph) Affected(key string) []string {
	visited := make(map[string]struct{})
	g.walk(key, visited)

	out := make([]string, 0, len(visited))
	for dep := range visited {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) walk(key string, visited map[string]struct{}) {
	if _, ok := visited[key]; ok {
		return
	}
	visited[key] = struct{}{}
	for _, dep := range g.dependents[key] {
		g.walk(dep, visited)
	}
}

// checkCycles rejects graphs where a resource transitively depends on itself.
func (g *Graph) checkCycles() error {
	const (
		unvisited = iota
		inProgress
		done
	)

	state := make(map[string]int, len(g.known))

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case inProgress:
			return fmt.Errorf("dependency cycle involving resource %q", key)
		case done:
			return nil
		}
		state[key] = inProgress
		for _, dep := range g.dependents[key] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[key] = done
		return nil
	}

	for key := range g.dependents {
		if err := visit(key); err != nil {
			return err
		}
	}
	return nil
}
