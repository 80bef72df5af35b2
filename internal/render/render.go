// Package render draws a link graph with graphviz, shading each page by its
// rank when one is supplied.
package render

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/rank"
)

// FormatForPath picks the output format from a file extension. Unknown or
// missing extensions render SVG. Despite its name, graphviz.XDOT is the
// plain "dot" renderer; go-graphviz has no other DOT format.
func FormatForPath(path string) graphviz.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return graphviz.XDOT
	case ".png":
		return graphviz.PNG
	case ".jpg", ".jpeg":
		return graphviz.JPG
	default:
		return graphviz.SVG
	}
}

// Graph writes g to w in the given format. When ranks is non-nil every node
// is labeled with its rank and filled with a shade proportional to it.
func Graph(w io.Writer, g *linkgraph.Graph, ranks rank.Distribution, format graphviz.Format) error {
	if g == nil || g.Len() == 0 {
		return rank.ErrEmptyGraph
	}
	gv := graphviz.New()
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return fmt.Errorf("render: new graph: %w", err)
	}
	defer graph.Close()

	var top float64
	for _, v := range ranks {
		top = max(top, v)
	}

	nodes := make([]*cgraph.Node, g.Len())
	for i, page := range g.Pages() {
		n, err := graph.CreateNode(page)
		if err != nil {
			return fmt.Errorf("render: node %s: %w", page, err)
		}
		if ranks != nil {
			r := ranks[page]
			n.SetLabel(fmt.Sprintf("%s\n%.4f", page, r))
			n.SetStyle(cgraph.FilledNodeStyle)
			n.SetFillColor(shade(r, top))
		}
		nodes[i] = n
	}
	for i := range nodes {
		for _, j := range g.Outbound(i) {
			name := g.Page(i) + "->" + g.Page(j)
			if _, err := graph.CreateEdge(name, nodes[i], nodes[j]); err != nil {
				return fmt.Errorf("render: edge %s: %w", name, err)
			}
		}
	}

	if err := gv.Render(graph, format, w); err != nil {
		return fmt.Errorf("render: %s: %w", format, err)
	}
	return nil
}

// shade maps r in [0, top] onto a white-to-blue ramp.
func shade(r, top float64) string {
	frac := 0.0
	if top > 0 {
		frac = r / top
	}
	frac = min(max(frac, 0), 1)
	c := func(from, to int) int {
		return from + int(float64(to-from)*frac)
	}
	return fmt.Sprintf("#%02x%02x%02x", c(0xff, 0x5b), c(0xff, 0x8d), c(0xff, 0xef))
}
