package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/pipeline"
	"github.com/matzehuels/compkgs/pkg/render"
	"github.com/matzehuels/compkgs/pkg/render/nodelink"
	"github.com/matzehuels/compkgs/pkg/report"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	sourceFlags
	output   string  // output file (stdout for dot if empty)
	format   string  // dot, svg, pdf or png
	detailed bool    // requirement counts and missing packages in labels
	latest   bool    // color nodes by the last stored report
	report   string  // color nodes by a JSON report file
	scale    float64 // PNG scale factor
}

// validFormats is the set of supported output formats.
var validFormats = map[string]bool{"dot": true, "svg": true, "pdf": true, "png": true}

// validateFormat checks that format is one of validFormats.
func validateFormat(format string) error {
	if !validFormats[format] {
		return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', 'pdf', or 'png')", format)
	}
	return nil
}

// graphCommand creates the graph command for drawing the component graph.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: "dot", scale: 2}

	cmd := &cobra.Command{
		Use:   "graph [domain]",
		Short: "Draw the component dependency graph",
		Long: `Draw the component dependency graph as Graphviz DOT, SVG, PDF or PNG.

With a domain argument only the components reachable from it are drawn.
Dashed edges are after-dependencies. With --latest or --report, supported
components are green and unsupported ones red.

PDF and PNG output requires rsvg-convert.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") && opts.output != "" {
				opts.format = formatFromPath(opts.output)
			}
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return c.runGraph(cmd.Context(), root, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout for dot, graph.<format> otherwise)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot (default), svg, pdf, png")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show requirement counts and missing packages")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "color components by the last stored report")
	cmd.Flags().StringVar(&opts.report, "report", "", "color components by a JSON report file")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

// formatFromPath infers the format from a file extension, defaulting to dot.
func formatFromPath(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if validFormats[ext] {
		return ext
	}
	return "dot"
}

func (c *CLI) runGraph(ctx context.Context, root string, opts graphOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	g, _, version, err := runner.LoadGraph(ctx, pipeline.Options{
		Config:    cfg,
		Version:   opts.version,
		SourceDir: opts.sourceDir,
		Refresh:   opts.refresh,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var rep *report.Report
	switch {
	case opts.report != "":
		if rep, err = report.ReadFile(opts.report); err != nil {
			return err
		}
	case opts.latest:
		if rep, err = runner.Store.Latest(ctx); err != nil {
			return err
		}
	}
	if rep != nil && rep.Version != version {
		logger.Warn("report is for a different release", "report", rep.Version, "graph", version)
	}

	dot, err := nodelink.ToDOT(g, nodelink.Options{Root: root, Detailed: opts.detailed, Report: rep})
	if err != nil {
		return err
	}
	if opts.format == "dot" && opts.output == "" {
		fmt.Print(dot)
		return nil
	}

	data, err := renderFormat(ctx, dot, opts)
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = "graph." + opts.format
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Rendered %s graph", opts.format)
	printFile(output)
	return nil
}

func renderFormat(ctx context.Context, dot string, opts graphOpts) ([]byte, error) {
	if opts.format == "dot" {
		return []byte(dot), nil
	}
	svg, err := nodelink.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch opts.format {
	case "pdf":
		return render.ToPDF(ctx, svg)
	case "png":
		return render.ToPNG(ctx, svg, opts.scale)
	}
	return svg, nil
}
