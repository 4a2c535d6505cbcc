package component

import (
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/errors"
)

// Graph maps component domains to their manifests. It is read-only after
// [Build] returns.
type Graph struct {
	components map[string]Manifest
}

// BuildOptions configures graph construction.
type BuildOptions struct {
	// ExtraDependencies are appended to the dependencies of the named
	// components. They cover dependencies that are loaded at runtime and
	// therefore never appear in a manifest.
	ExtraDependencies map[string][]string
	Logger            *log.Logger
}

// Build assembles a Graph from parsed manifests. Disabled components are
// left out entirely. Duplicate domains are a configuration error.
//
// Dependencies on unknown components are not checked here; they surface
// when a closure reaches them.
func Build(manifests []Manifest, opts BuildOptions) (*Graph, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	g := &Graph{components: make(map[string]Manifest, len(manifests))}
	seen := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		if seen[m.Domain] {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "duplicate component %q", m.Domain)
		}
		seen[m.Domain] = true

		if extra := opts.ExtraDependencies[m.Domain]; len(extra) > 0 {
			m.Dependencies = append(slices.Clone(m.Dependencies), extra...)
			logger.Debug("injected extra dependencies", "component", m.Domain, "deps", extra)
		}
		if m.Disabled {
			logger.Debug("skipping disabled component", "component", m.Domain, "reason", m.DisabledReason)
			continue
		}
		g.components[m.Domain] = m
	}
	return g, nil
}

// Len returns the number of enabled components.
func (g *Graph) Len() int { return len(g.components) }

// Get returns the manifest of domain.
func (g *Graph) Get(domain string) (Manifest, bool) {
	m, ok := g.components[domain]
	return m, ok
}

// Domains returns all component domains in sorted order.
func (g *Graph) Domains() []string {
	return slices.Sorted(maps.Keys(g.components))
}
