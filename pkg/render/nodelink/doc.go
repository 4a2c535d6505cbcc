// Package nodelink draws the component dependency graph as a node-link
// diagram with Graphviz.
//
// [ToDOT] emits DOT source for a component and everything it reaches (or
// the whole graph). Solid edges are dependencies, dashed edges are
// after-dependencies. When a report is supplied, supported components are
// filled green and unsupported ones red:
//
//	dot, err := nodelink.ToDOT(g, nodelink.Options{Root: "hue", Report: rep})
//	svg, err := nodelink.RenderSVG(ctx, dot)
package nodelink
