package component

import (
	"maps"
	"slices"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// Closure returns the requirement strings of domain and of every component
// reachable from it through dependencies and after-dependencies. The result
// is sorted and free of duplicates.
//
// Each component is visited at most once, so cyclic declarations terminate.
// Reaching a domain that is not in the graph is a configuration error.
func (g *Graph) Closure(domain string) ([]string, error) {
	reqs, _, err := g.collect(domain, map[string]bool{}, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(reqs)), nil
}

func (g *Graph) collect(domain string, visited, reqs map[string]bool) (map[string]bool, map[string]bool, error) {
	m, ok := g.components[domain]
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeUnknownComponent, "unknown component %q", domain)
	}
	visited[domain] = true
	for _, r := range m.Requirements {
		reqs[r] = true
	}
	for _, dep := range m.Deps() {
		if visited[dep] {
			continue
		}
		var err error
		if reqs, visited, err = g.collect(dep, visited, reqs); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeUnknownComponent, err, "dependency of %q", domain)
		}
	}
	return reqs, visited, nil
}

// Reachable returns every component reachable from domain, including domain
// itself, in sorted order.
func (g *Graph) Reachable(domain string) ([]string, error) {
	_, visited, err := g.collect(domain, map[string]bool{}, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(visited)), nil
}
