package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/audit"
	"github.com/matzehuels/compkgs/pkg/buildinfo"
	"github.com/matzehuels/compkgs/pkg/cache"
	"github.com/matzehuels/compkgs/pkg/component"
	"github.com/matzehuels/compkgs/pkg/matcher"
	"github.com/matzehuels/compkgs/pkg/nixout"
	"github.com/matzehuels/compkgs/pkg/observability"
	"github.com/matzehuels/compkgs/pkg/registry"
	"github.com/matzehuels/compkgs/pkg/report"
	"github.com/matzehuels/compkgs/pkg/source"
	"github.com/matzehuels/compkgs/pkg/store"
)

// Runner executes runs against a cache and a report store. It keeps no
// per-run state, so one Runner can serve several runs.
type Runner struct {
	Cache  cache.Cache
	Store  store.Store
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil store
// discards reports.
func NewRunner(c cache.Cache, s store.Store, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if s == nil {
		s = store.Discard{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Store: s, Logger: logger}
}

// Close releases the cache and the store.
func (r *Runner) Close() error {
	cerr := r.Cache.Close()
	if err := r.Store.Close(); err != nil {
		return err
	}
	return cerr
}

// Execute performs a complete run.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts = r.withLogger(opts)
	cfg := opts.Config
	result := &Result{}

	var (
		g       *component.Graph
		project *source.Project
		version string
		index   *registry.Index
		rep     *report.Report
		err     error
	)

	// Stage 1: Sources
	result.Stats.SourceTime, err = runStage(ctx, observability.StageSources, func() (err error) {
		g, project, version, result.CacheInfo.SourceHit, err = r.loadGraph(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Stats.Components = g.Len()
	opts.Logger.Info("loaded components",
		"version", version,
		"components", g.Len(),
		"tested", len(project.Tested),
		"duration", result.Stats.SourceTime)

	// Stage 2: Registry
	result.Stats.DumpTime, err = runStage(ctx, observability.StageRegistry, func() (err error) {
		index, result.CacheInfo.RegistryHit, err = r.loadIndex(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Stats.Packages = index.Len()
	opts.Logger.Info("dumped package set",
		"set", cfg.PackageSet,
		"packages", index.Len(),
		"cached", result.CacheInfo.RegistryHit,
		"duration", result.Stats.DumpTime)

	// Stage 3: Resolve
	result.Stats.ResolveTime, err = runStage(ctx, observability.StageResolve, func() error {
		m, err := r.newMatcher(index, opts)
		if err != nil {
			return err
		}
		hooks := observability.Pipeline()
		b := &report.Builder{
			Graph:      g,
			Resolver:   m,
			Index:      index,
			Auditor:    audit.New(cfg.VersionFloors, opts.Logger),
			Tested:     project.Tested,
			Version:    version,
			PackageSet: cfg.PackageSet,
			Logger:     opts.Logger,
			OnComponent: func(done, total int, c report.ComponentResult) {
				hooks.OnComponent(ctx, c.Domain, c.Supported())
				if opts.OnComponent != nil {
					opts.OnComponent(done, total, c)
				}
			},
		}
		if rep, err = b.Build(ctx); err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Report = rep
	opts.Logger.Info("resolved components",
		"supported", rep.Summary.Supported,
		"total", rep.Summary.Total,
		"outdated", rep.Summary.Outdated,
		"duration", result.Stats.ResolveTime)

	if opts.DryRun {
		return result, nil
	}

	// Stage 4: Write
	result.Stats.WriteTime, err = runStage(ctx, observability.StageWrite, func() error {
		if err := nixout.WriteFile(opts.Output, rep, nixout.Options{Generator: "compkgs " + buildinfo.Version}); err != nil {
			return fmt.Errorf("write %s: %w", opts.Output, err)
		}
		return nixout.Format(ctx, cfg.Formatter, opts.Output)
	})
	if err != nil {
		return nil, err
	}
	result.OutputPath = opts.Output
	opts.Logger.Info("wrote component packages", "path", opts.Output, "duration", result.Stats.WriteTime)

	// Stage 5: Store
	_, err = runStage(ctx, observability.StageStore, func() error {
		return r.Store.Save(ctx, rep)
	})
	if err != nil {
		opts.Logger.Warn("report not stored", "err", err)
	} else {
		result.Stored = true
		opts.Logger.Debug("stored report", "run", rep.RunID)
	}
	return result, nil
}

// runStage times fn and reports it to the pipeline hooks.
func runStage(ctx context.Context, stage string, fn func() error) (time.Duration, error) {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, stage)
	start := time.Now()
	err := fn()
	d := time.Since(start)
	hooks.OnStageComplete(ctx, stage, d, err)
	return d, err
}

// LoadGraph loads the upstream components and builds the component graph.
// It returns the graph, the raw project and the upstream version.
func (r *Runner) LoadGraph(ctx context.Context, opts Options) (*component.Graph, *source.Project, string, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, "", fmt.Errorf("invalid options: %w", err)
	}
	opts = r.withLogger(opts)
	g, p, v, _, err := r.loadGraph(ctx, opts)
	return g, p, v, err
}

// LoadIndex dumps (or loads from cache) the configured package set.
func (r *Runner) LoadIndex(ctx context.Context, opts Options) (*registry.Index, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts = r.withLogger(opts)
	ix, _, err := r.loadIndex(ctx, opts)
	return ix, err
}

// NewMatcher dumps the package set and returns a matcher over it.
func (r *Runner) NewMatcher(ctx context.Context, opts Options) (*matcher.Matcher, *registry.Index, error) {
	opts = r.withLogger(opts)
	ix, err := r.LoadIndex(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	m, err := r.newMatcher(ix, opts)
	if err != nil {
		return nil, nil, err
	}
	return m, ix, nil
}

// Version returns opts.Version or, if empty, the version pinned in the
// nixpkgs checkout.
func Version(opts Options) (string, error) {
	if opts.Version != "" {
		return opts.Version, nil
	}
	cfg := opts.Config
	v, err := source.ReadPinnedVersion(cfg.Resolve(cfg.VersionFile), cfg.VersionPattern)
	if err != nil {
		return "", fmt.Errorf("determine version (use --version to set one): %w", err)
	}
	return v, nil
}

func (r *Runner) loadGraph(ctx context.Context, opts Options) (*component.Graph, *source.Project, string, bool, error) {
	cfg := opts.Config
	version, err := Version(opts)
	if err != nil {
		return nil, nil, "", false, err
	}

	var project *source.Project
	var hit bool
	if opts.SourceDir != "" {
		opts.Logger.Debug("reading local source tree", "dir", opts.SourceDir)
		project, err = source.LoadDir(opts.SourceDir)
	} else {
		f := &source.Fetcher{
			HTTP:      opts.HTTP,
			UserAgent: "compkgs/" + buildinfo.Version,
			Cache:     r.Cache,
			TTL:       0, // release tarballs are immutable
			Refresh:   opts.Refresh,
			Logger:    opts.Logger,
		}
		url := source.URL(cfg.SourceURL, version)
		opts.Logger.Debug("fetching release", "url", url)
		project, hit, err = f.FetchWithCacheInfo(ctx, url)
	}
	if err != nil {
		return nil, nil, "", false, fmt.Errorf("load sources: %w", err)
	}

	manifests, err := project.Components()
	if err != nil {
		return nil, nil, "", false, err
	}
	g, err := component.Build(manifests, component.BuildOptions{
		ExtraDependencies: cfg.ExtraDependencies,
		Logger:            opts.Logger,
	})
	if err != nil {
		return nil, nil, "", false, err
	}
	return g, project, version, hit, nil
}

func (r *Runner) loadIndex(ctx context.Context, opts Options) (*registry.Index, bool, error) {
	cfg := opts.Config
	refresh := opts.Refresh
	fp, err := registry.Fingerprint(cfg.NixpkgsRoot, cfg.Cache.RegistryPaths, opts.Output)
	if err != nil {
		opts.Logger.Warn("cannot fingerprint nixpkgs checkout; not reusing cached package set", "err", err)
		refresh = true
	}

	dumper := opts.Dumper
	key := cache.Key("registry", "custom", cfg.PackageSet, fp)
	if dumper == nil {
		nixEnv := registry.NixEnv{Root: cfg.NixpkgsRoot, PackageSet: cfg.PackageSet, Fingerprint: fp}
		dumper = nixEnv
		key = nixEnv.CacheKey()
	}
	cd := registry.CachedDumper{
		Dumper:  dumper,
		Cache:   r.Cache,
		Key:     key,
		TTL:     cfg.Cache.TTL,
		Refresh: refresh,
		Logger:  opts.Logger,
	}
	return cd.DumpWithCacheInfo(ctx)
}

func (r *Runner) newMatcher(index *registry.Index, opts Options) (*matcher.Matcher, error) {
	cfg := opts.Config
	prober := opts.Prober
	if prober == nil {
		prober = registry.NixInstantiate{Root: cfg.NixpkgsRoot}
	}
	return matcher.New(index, registry.NewMemoProber(prober), matcher.Options{
		PackageSet: cfg.PackageSet,
		LangPrefix: cfg.LangPrefix,
		Overrides:  cfg.Overrides,
		Logger:     opts.Logger,
	})
}

// withLogger returns opts with the runner's logger filled in when the call
// brings none. The runner itself is never changed.
func (r *Runner) withLogger(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	return opts
}
