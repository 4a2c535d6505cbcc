package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/audit"
	"github.com/matzehuels/compkgs/pkg/matcher"
	"github.com/matzehuels/compkgs/pkg/pipeline"
	"github.com/matzehuels/compkgs/pkg/registry"
)

// sourceFlags selects the Home Assistant release for commands that read
// component manifests.
type sourceFlags struct {
	version   string
	sourceDir string
	refresh   bool
	noCache   bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.version, "version", "", "Home Assistant version (default: pinned in nixpkgs)")
	cmd.Flags().StringVar(&f.sourceDir, "source-dir", "", "read manifests from a local Home Assistant checkout")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cached package set dumps and sources")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
}

// resolveCommand creates the resolve command, a debugging aid that matches
// requirement strings against the package set.
func (c *CLI) resolveCommand() *cobra.Command {
	var flags sourceFlags

	cmd := &cobra.Command{
		Use:   "resolve <requirement>...",
		Short: "Match requirement strings against the package set",
		Long: `Match requirement strings against the package set and show the attribute,
its extras and whether the packaged version satisfies the pin.

Examples:
  compkgs resolve aiohttp==3.9.1
  compkgs resolve 'pyserial-asyncio==0.6' 'zha-quirks[full]==0.0.109'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), flags, args)
		},
	}
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "bypass the cached package set dump")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, flags sourceFlags, reqs []string) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Loading package set...")
	spinner.Start()
	m, ix, err := runner.NewMatcher(ctx, pipeline.Options{Config: cfg, Refresh: flags.refresh, Logger: logger})
	if err != nil {
		spinner.StopWithError("Loading package set failed")
		return err
	}
	spinner.Stop()

	auditor := audit.New(cfg.VersionFloors, logger)
	for i, raw := range reqs {
		out, err := m.Resolve(ctx, raw)
		if err != nil {
			return err
		}
		if i > 0 {
			printNewline()
		}
		printOutcome(out, ix, auditor)
	}
	return nil
}

func printOutcome(out matcher.Outcome, ix *registry.Index, auditor *audit.Auditor) {
	if !out.Resolved {
		printWarning("%s: no package", out.Spec.Raw)
		return
	}
	printSuccess("%s", out.Spec.Raw)

	attr := out.Attr
	if out.Override {
		attr += StyleDim.Render(" (override)")
	}
	printKeyValue("Attribute", attr)

	current := ix.Version(out.AttrPath)
	res := auditor.Check(out.Attr, current, out.Spec.Version)
	version := current
	if res.Outdated {
		version = StyleWarning.Render(fmt.Sprintf("%s < %s", current, out.Spec.Version))
	}
	printKeyValue("Version", version+StyleDim.Render(" "+string(res.Reason)))

	if len(out.ExtrasResolved) > 0 {
		printKeyValue("Extras", strings.Join(out.ExtrasResolved, " "))
	}
	if len(out.ExtrasMissing) > 0 {
		printKeyValue("Missing", StyleWarning.Render(strings.Join(out.ExtrasMissing, " ")))
	}
}

// closureCommand creates the closure command, which lists the requirements
// a component pulls in through its dependencies.
func (c *CLI) closureCommand() *cobra.Command {
	var (
		flags      sourceFlags
		components bool
	)

	cmd := &cobra.Command{
		Use:   "closure <domain>",
		Short: "List the transitive requirements of a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClosure(cmd.Context(), flags, args[0], components)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&components, "components", false, "list reachable components instead of requirements")

	return cmd
}

func (c *CLI) runClosure(ctx context.Context, flags sourceFlags, domain string, components bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	g, _, _, err := runner.LoadGraph(ctx, pipeline.Options{
		Config:    cfg,
		Version:   flags.version,
		SourceDir: flags.sourceDir,
		Refresh:   flags.refresh,
		Logger:    loggerFromContext(ctx),
	})
	if err != nil {
		return err
	}

	var lines []string
	if components {
		lines, err = g.Reachable(domain)
	} else {
		lines, err = g.Closure(domain)
	}
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}
