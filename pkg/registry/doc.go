// Package registry provides a read-only snapshot of a target package
// registry and the collaborators that query it.
//
// For nixpkgs the snapshot comes from evaluating a Python package set:
//
//	nix-env -f <nixpkgs> -qa -A home-assistant.python.pkgs --json
//
// which yields, per attribute path, the derivation name (for example
// "python3.12-aiohttp-3.9.1") and version. [NixEnv] runs that command,
// [CachedDumper] keeps its output between runs, and [Index] holds the
// decoded result.
//
// Optional features ("extras") are probed per package with [NixInstantiate];
// [MemoProber] avoids asking twice within a run.
package registry
