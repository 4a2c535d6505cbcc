// Package pipeline runs a complete compkgs generation.
//
// A run has five stages:
//
//  1. Sources: determine the upstream version and load its component
//     manifests and test layout (local checkout or release tarball)
//  2. Registry: dump the Python package set of the nixpkgs checkout
//  3. Resolve: build the component graph and resolve every closure
//  4. Write: render component-packages.nix and run the formatter
//  5. Store: persist the report for browse and serve
//
// The CLI drives the whole run with [Runner.Execute]; the debugging
// commands reuse individual stages ([Runner.LoadGraph],
// [Runner.LoadIndex], [Runner.NewMatcher]).
//
//	runner := pipeline.NewRunner(cache, store, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{Config: cfg})
//	fmt.Println(res.Report.Summary.Supported)
package pipeline

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compkgs/pkg/config"
	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/registry"
	"github.com/matzehuels/compkgs/pkg/report"
)

// Options configures a run. Config is required; everything else has a
// default derived from it.
type Options struct {
	Config *config.Config

	Version   string // Upstream release; empty reads the pin from Config.VersionFile
	SourceDir string // Local upstream checkout; empty downloads the release tarball
	Output    string // Generated file; empty uses Config.Output below the nixpkgs root
	DryRun    bool   // Resolve and report without writing or storing anything
	Refresh   bool   // Bypass cached registry dumps and source trees

	Logger *log.Logger

	// Collaborators. Nil values select the nix tooling and a default HTTP
	// client.
	Dumper registry.Dumper
	Prober registry.Prober
	HTTP   *http.Client

	// OnComponent is forwarded to [report.Builder.OnComponent].
	OnComponent func(done, total int, result report.ComponentResult)
}

// ValidateAndSetDefaults checks opts and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Config == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "no configuration")
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if o.Output == "" {
		o.Output = o.Config.Resolve(o.Config.Output)
	}
	return nil
}

// Result is the outcome of [Runner.Execute].
type Result struct {
	Report     *report.Report
	OutputPath string // Empty for dry runs
	Stored     bool   // Whether the report was persisted
	Stats      Stats
	CacheInfo  CacheInfo
}

// Stats holds sizes and stage timings.
type Stats struct {
	Components  int
	Packages    int
	SourceTime  time.Duration
	DumpTime    time.Duration
	ResolveTime time.Duration
	WriteTime   time.Duration
}

// CacheInfo reports which stages were served from cache.
type CacheInfo struct {
	SourceHit   bool
	RegistryHit bool
}
