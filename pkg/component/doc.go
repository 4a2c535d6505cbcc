// Package component models the components of an upstream project and the
// dependency graph between them.
//
// A component (a Home Assistant integration, for instance) ships a
// manifest.json listing the third-party packages it requires and the other
// components it depends on:
//
//	{
//	  "domain": "hue",
//	  "requirements": ["aiohue==4.7.1"],
//	  "dependencies": ["http"],
//	  "after_dependencies": ["zeroconf"]
//	}
//
// [ParseManifest] decodes one such document, [Build] assembles the enabled
// components into a [Graph], and [Graph.Closure] collects every requirement
// string reachable from a component:
//
//	g, err := component.Build(manifests, component.BuildOptions{
//	    ExtraDependencies: map[string][]string{"conversation": {"intent"}},
//	})
//	reqs, err := g.Closure("hue")
package component
