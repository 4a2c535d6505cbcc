package registry

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/cache"
	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/observability"
)

// cacheKeyType labels registry snapshots in cache hooks.
const cacheKeyType = "registry"

// Dumper produces a snapshot of the registry.
type Dumper interface {
	Dump(ctx context.Context) (*Index, error)
}

// DumperFunc adapts a function to [Dumper].
type DumperFunc func(ctx context.Context) (*Index, error)

// Dump calls f.
func (f DumperFunc) Dump(ctx context.Context) (*Index, error) { return f(ctx) }

// NixEnv dumps a package set by evaluating a nixpkgs checkout with nix-env.
type NixEnv struct {
	Root        string // nixpkgs checkout passed to -f
	PackageSet  string // attribute path of the package set, e.g. "home-assistant.python.pkgs"
	Binary      string // nix-env executable; defaults to "nix-env"
	Fingerprint string // checkout state from [Fingerprint]; part of the cache key
}

// Args returns the nix-env command line without the binary.
func (n NixEnv) Args() []string {
	return []string{
		"-f", n.Root,
		"-qa",
		"-A", n.PackageSet,
		"--arg", "config", "{ allowAliases = false; }",
		"--json",
	}
}

// Dump runs nix-env and decodes its output. A failing evaluation aborts the
// run; there is no retry.
func (n NixEnv) Dump(ctx context.Context) (*Index, error) {
	if err := errors.ValidateAttrPath(n.PackageSet); err != nil {
		return nil, err
	}
	bin := n.Binary
	if bin == "" {
		bin = "nix-env"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, n.Args()...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryDump, err, "%s %s: %s", bin, n.PackageSet, bytes.TrimSpace(stderr.Bytes()))
	}
	return DecodeIndex(out)
}

// CachedDumper keeps the result of an expensive [Dumper] in a [cache.Cache].
type CachedDumper struct {
	Dumper  Dumper
	Cache   cache.Cache
	Key     string        // Cache key; see [NixEnv.CacheKey]
	TTL     time.Duration // Entry lifetime; 0 keeps entries forever
	Refresh bool          // Skip the lookup and overwrite the entry
	Logger  *log.Logger
}

// CacheKey derives a cache key from the evaluation arguments and the
// checkout fingerprint.
func (n NixEnv) CacheKey() string {
	return cache.Key("registry", n.Root, n.PackageSet, n.Fingerprint)
}

// Dump returns the cached snapshot if one exists, otherwise dumps and
// stores the result. Cache failures are logged and never fail the run.
func (c CachedDumper) Dump(ctx context.Context) (*Index, error) {
	ix, _, err := c.DumpWithCacheInfo(ctx)
	return ix, err
}

// DumpWithCacheInfo is [CachedDumper.Dump] that also reports whether the
// snapshot came from the cache.
func (c CachedDumper) DumpWithCacheInfo(ctx context.Context) (*Index, bool, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.Default()
	}

	hooks := observability.Cache()
	if !c.Refresh {
		data, hit, err := c.Cache.Get(ctx, c.Key)
		switch {
		case err != nil:
			logger.Warn("registry cache read failed", "err", err)
		case hit:
			if ix, err := DecodeIndex(data); err == nil {
				logger.Debug("registry snapshot from cache", "packages", ix.Len())
				hooks.OnCacheHit(ctx, cacheKeyType)
				return ix, true, nil
			}
			logger.Warn("discarding corrupt registry cache entry")
		}
	}
	hooks.OnCacheMiss(ctx, cacheKeyType)

	ix, err := c.Dumper.Dump(ctx)
	if err != nil {
		return nil, false, err
	}
	if data, err := ix.MarshalJSON(); err == nil {
		if err := c.Cache.Set(ctx, c.Key, data, c.TTL); err != nil {
			logger.Warn("registry cache write failed", "err", err)
		} else {
			hooks.OnCacheSet(ctx, cacheKeyType, len(data))
		}
	}
	return ix, false, nil
}
