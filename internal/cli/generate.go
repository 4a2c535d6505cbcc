package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/observability"
	"github.com/matzehuels/compkgs/pkg/pipeline"
	"github.com/matzehuels/compkgs/pkg/report"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	version   string // release to process (default: pinned in nixpkgs)
	sourceDir string // local Home Assistant checkout instead of the release tarball
	output    string // generated file (default: config output below nixpkgs)
	report    string // also write the JSON report here
	formatter string // formatter command; "-" keeps the configured one
	metrics   string // write Prometheus metrics here after the run
	dryRun    bool
	refresh   bool
	noCache   bool
}

// generateCommand creates the generate command, the main run.
func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{formatter: "-"}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate component-packages.nix",
		Long: `Generate component-packages.nix for the pinned Home Assistant release.

Every component's manifest is read from the release tarball (or --source-dir),
the Python package set is dumped with nix-env, and each component's
requirement closure is matched against it. Components whose requirements are
all packaged are supported; the rest are written with a comment naming the
missing inputs. Packaged versions older than the pinned requirement are
listed as outdated.

The package set dump is cached (see 'compkgs cache'); use --refresh to
re-evaluate it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", "", "Home Assistant version (default: pinned in nixpkgs)")
	cmd.Flags().StringVar(&opts.sourceDir, "source-dir", "", "read manifests from a local Home Assistant checkout")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: config output below nixpkgs)")
	cmd.Flags().StringVar(&opts.report, "report", "", "also write the JSON report to this file")
	cmd.Flags().StringVar(&opts.formatter, "formatter", opts.formatter, "formatter command run on the output (empty disables)")
	cmd.Flags().StringVar(&opts.metrics, "metrics-file", "", "write Prometheus metrics in textfile format to this file")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "resolve and print the summary without writing anything")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached package set dumps and sources")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runGenerate executes the pipeline and prints the summary.
func (c *CLI) runGenerate(ctx context.Context, opts generateOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.formatter != "-" {
		cfg.Formatter = opts.formatter
	}

	if opts.metrics != "" {
		m := observability.NewMetrics("")
		m.Register()
		defer func() {
			if err := m.WriteTextfile(opts.metrics); err != nil {
				logger.Warn("failed to write metrics", "path", opts.metrics, "err", err)
			}
		}()
	}

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	popts := pipeline.Options{
		Config:    cfg,
		Version:   opts.version,
		SourceDir: opts.sourceDir,
		Output:    opts.output,
		DryRun:    opts.dryRun,
		Refresh:   opts.refresh,
		Logger:    logger,
	}
	version, err := pipeline.Version(popts)
	if err != nil {
		return err
	}
	popts.Version = version
	printInfo("Generating component-packages.nix for version %s", StyleHighlight.Render(version))

	spinner := newSpinnerWithContext(ctx, "Loading components and package set...")
	popts.OnComponent = func(done, total int, _ report.ComponentResult) {
		spinner.SetMessage(fmt.Sprintf("Resolving components %d/%d...", done, total))
	}
	prog := newProgress(logger)
	spinner.Start()

	result, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Generation failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Resolved %d components", result.Stats.Components))

	if opts.report != "" {
		if err := writeReport(opts.report, result.Report); err != nil {
			return err
		}
	}

	printReport(result.Report)
	printNewline()
	if result.OutputPath != "" {
		printFile(result.OutputPath)
	}
	if opts.report != "" {
		printFile(opts.report)
	}
	printStats(result.Stats.Components, result.Stats.Packages, result.CacheInfo.RegistryHit)
	if result.Stored {
		printNewline()
		printNextStep("Browse", appName+" browse")
	}
	return nil
}

func writeReport(path string, rep *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := rep.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return f.Close()
}
