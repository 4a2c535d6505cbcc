package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/compkgs/pkg/component"
	"github.com/matzehuels/compkgs/pkg/report"
)

// Options configures diagram generation.
type Options struct {
	// Root limits the diagram to components reachable from Root. Empty
	// draws every component.
	Root string
	// Detailed adds requirement counts and missing packages to labels.
	Detailed bool
	// Report colors nodes by support status. Optional.
	Report *report.Report
}

const (
	colorSupported   = "#c8e6c9"
	colorUnsupported = "#ffcdd2"
)

// ToDOT converts the component graph to Graphviz DOT. Nodes and edges are
// emitted in sorted order.
func ToDOT(g *component.Graph, opts Options) (string, error) {
	domains := g.Domains()
	if opts.Root != "" {
		var err error
		if domains, err = g.Reachable(opts.Root); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, d := range domains {
		m, _ := g.Get(d)
		fmt.Fprintf(&buf, "  %q [%s];\n", d, strings.Join(fmtAttrs(m, opts), ", "))
	}

	buf.WriteString("\n")
	for _, d := range domains {
		m, _ := g.Get(d)
		for _, dep := range m.Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", d, dep)
		}
		for _, dep := range m.AfterDependencies {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", d, dep)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtAttrs(m component.Manifest, opts Options) []string {
	label := m.Domain
	var res report.ComponentResult
	var found bool
	if opts.Report != nil {
		res, found = opts.Report.Component(m.Domain)
	}
	if opts.Detailed {
		parts := []string{fmt.Sprintf("requirements: %d", len(m.Requirements))}
		if found && len(res.Missing) > 0 {
			parts = append(parts, "missing: "+strings.Join(res.Missing, ", "))
		}
		label += "\n" + strings.Join(parts, "\n")
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if found {
		color := colorSupported
		if !res.Supported() {
			color = colorUnsupported
		}
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", color))
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using the embedded Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz <svg> tag with one whose viewBox
// starts at the origin and whose size matches it.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
