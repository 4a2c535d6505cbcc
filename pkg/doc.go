// Package pkg provides the libraries behind compkgs, which maps Home
// Assistant components to the nixpkgs Python packages they need.
//
// # Overview
//
// Every Home Assistant component declares pinned Python requirements and
// other components it depends on. The home-assistant derivation in nixpkgs
// needs, per component, the list of package attributes covering the
// requirements of the component and of everything it depends on. compkgs
// computes that list and records what is missing or outdated.
//
// # Architecture
//
// The data flow of a generate run:
//
//	Release tarball / local checkout
//	         ↓
//	    [source] (manifests + tested components)
//	         ↓
//	    [component] (manifest parsing, dependency graph, closures)
//	         ↓
//	    [registry] (package set dump, extra probes)  ←  [cache]
//	         ↓
//	    [matcher] + [audit] (requirement → attribute, version check)
//	         ↓
//	    [report] (per-component results, outdated packages)
//	         ↓
//	    [nixout] (component-packages.nix)   [store] (report history)
//
// [pipeline] runs these stages for the CLI.
//
// # Main Packages
//
// [requirement] - Parses pinned requirement strings ("name[extra]==1.2").
//
// [component] - Parses manifest.json documents and resolves requirement
// closures over the component dependency graph, cycles included.
//
// [registry] - Snapshot of a Nix package set (nix-env dump) and probes for
// optional-dependency attributes (nix-instantiate).
//
// [matcher] - Matches requirement names to package attributes through an
// override table and derivation-name patterns. Ambiguous matches are errors.
//
// [audit] - Compares packaged versions with pinned versions under PEP 440,
// with manual floors for versions that do not parse.
//
// [report] - Builds the per-component report that every output is derived
// from.
//
// [nixout] - Writes component-packages.nix and runs the formatter.
//
// ## Infrastructure
//
// [config] - TOML configuration with the built-in override, extra
// dependency and version floor tables.
//
// [cache] - File, Redis and no-op caches for package set dumps and source
// trees.
//
// [store] - File and MongoDB report history, read by browse and serve.
//
// [api] - HTTP API over stored reports.
//
// [render] - Graphviz diagrams of the component graph and SVG conversion.
//
// [observability] - Hooks for pipeline stage, cache and HTTP events.
//
// [errors] - Coded errors shared by all packages.
//
// # Testing
//
// Run tests:
//
//	go test ./...                        # All tests
//	go test ./pkg/matcher/...            # Specific package
//	go test -run Example ./pkg/...       # Examples only
//	go test -tags integration ./pkg/...  # Include MongoDB and Redis tests
//
// [source]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/source
// [component]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/component
// [registry]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/registry
// [requirement]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/requirement
// [matcher]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/matcher
// [audit]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/audit
// [report]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/report
// [nixout]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/nixout
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/pipeline
// [config]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/store
// [api]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/api
// [render]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/render
// [observability]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/compkgs/pkg/errors
package pkg
