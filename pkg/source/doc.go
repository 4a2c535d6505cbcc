// Package source loads the component manifests and the test suite layout of
// an upstream Home Assistant release.
//
// Two layouts are read, both rooted at a source tree:
//
//	homeassistant/components/<domain>/manifest.json
//	tests/components/<domain>/
//
// [LoadDir] reads them from a local checkout. [Fetcher] streams the release
// tarball from GitHub and picks the same files out of it without unpacking
// anything to disk. Either way the result is a [Project].
//
// [ReadPinnedVersion] extracts the release version pinned in the Nix
// expression of the home-assistant package, so that a run without
// --version targets the release nixpkgs currently builds.
package source
