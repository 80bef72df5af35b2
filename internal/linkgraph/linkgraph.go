// Package linkgraph models a corpus of pages and the hyperlinks between
// them as an immutable directed graph. Pages are enumerated in sorted order
// and addressed by a stable index, so rank vectors can be plain slices.
package linkgraph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyGraph is returned when a graph would contain no pages.
var ErrEmptyGraph = errors.New("graph has no pages")

// ErrUnknownPage is returned when a link or lookup references a page that
// is not part of the corpus.
var ErrUnknownPage = errors.New("unknown page")

// ErrSelfLink is returned when a page links to itself.
var ErrSelfLink = errors.New("self-referencing link")

// Graph is an immutable directed link graph. The zero value is not usable;
// construct one with New or a Builder.
type Graph struct {
	pages []string
	index map[string]int
	// out maps page index → sorted outbound page indices.
	out [][]int
	// in maps page index → sorted inbound page indices.
	in    [][]int
	links int
}

// New builds a graph from a page → outbound links mapping. Every link
// target must itself be a key, no page may link to itself, and at least
// one page must be present. Duplicate links are collapsed.
func New(links map[string][]string) (*Graph, error) {
	b := NewBuilder()
	for page := range links {
		b.AddPage(page)
	}
	for page, targets := range links {
		for _, to := range targets {
			if err := b.AddLink(page, to); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// Len returns the number of pages.
func (g *Graph) Len() int {
	return len(g.pages)
}

// LinkCount returns the number of distinct links.
func (g *Graph) LinkCount() int {
	return g.links
}

// Pages returns all page identifiers in enumeration (sorted) order.
func (g *Graph) Pages() []string {
	out := make([]string, len(g.pages))
	copy(out, g.pages)
	return out
}

// Page returns the identifier of the page at index i.
func (g *Graph) Page(i int) string {
	return g.pages[i]
}

// Index returns the enumeration index of page.
func (g *Graph) Index(page string) (int, bool) {
	i, ok := g.index[page]
	return i, ok
}

// Has reports whether page is part of the corpus.
func (g *Graph) Has(page string) bool {
	_, ok := g.index[page]
	return ok
}

// Links returns the pages that page links to, sorted. Returns
// ErrUnknownPage if page is not in the graph.
func (g *Graph) Links(page string) ([]string, error) {
	i, ok := g.index[page]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}
	out := make([]string, len(g.out[i]))
	for k, j := range g.out[i] {
		out[k] = g.pages[j]
	}
	return out, nil
}

// Outbound returns the indices of the pages linked from page i. The slice
// is shared with the graph and must not be modified.
func (g *Graph) Outbound(i int) []int {
	return g.out[i]
}

// Inbound returns the indices of the pages linking to page i. The slice is
// shared with the graph and must not be modified.
func (g *Graph) Inbound(i int) []int {
	return g.in[i]
}

// OutDegree returns the number of outbound links of page i.
func (g *Graph) OutDegree(i int) int {
	return len(g.out[i])
}

// Dangling reports whether page i has no outbound links.
func (g *Graph) Dangling(i int) bool {
	return len(g.out[i]) == 0
}

// DanglingPages returns the identifiers of all pages without outbound
// links, sorted.
func (g *Graph) DanglingPages() []string {
	var out []string
	for i, p := range g.pages {
		if len(g.out[i]) == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Map returns a copy of the graph as a page → sorted outbound links map.
func (g *Graph) Map() map[string][]string {
	m := make(map[string][]string, len(g.pages))
	for i, p := range g.pages {
		targets := make([]string, len(g.out[i]))
		for k, j := range g.out[i] {
			targets[k] = g.pages[j]
		}
		m[p] = targets
	}
	return m
}

// Builder accumulates pages and links before freezing them into a Graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	pages map[string]bool
	// adjacency maps page → set of link targets.
	adjacency map[string]map[string]bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		pages:     make(map[string]bool),
		adjacency: make(map[string]map[string]bool),
	}
}

// AddPage registers page. Adding an existing page is a no-op.
func (b *Builder) AddPage(page string) {
	if b.pages[page] {
		return
	}
	b.pages[page] = true
	b.adjacency[page] = make(map[string]bool)
}

// AddLink records a link from → to, registering from as a page if needed.
// The target does not have to exist yet; Build rejects links whose target
// was never added. Returns ErrSelfLink when from == to.
func (b *Builder) AddLink(from, to string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfLink, from)
	}
	b.AddPage(from)
	b.adjacency[from][to] = true
	return nil
}

// Build freezes the accumulated pages and links into a Graph.
func (b *Builder) Build() (*Graph, error) {
	if len(b.pages) == 0 {
		return nil, ErrEmptyGraph
	}

	pages := make([]string, 0, len(b.pages))
	for p := range b.pages {
		pages = append(pages, p)
	}
	sort.Strings(pages)

	index := make(map[string]int, len(pages))
	for i, p := range pages {
		index[p] = i
	}

	g := &Graph{
		pages: pages,
		index: index,
		out:   make([][]int, len(pages)),
		in:    make([][]int, len(pages)),
	}
	for i, p := range pages {
		targets := b.adjacency[p]
		out := make([]int, 0, len(targets))
		for to := range targets {
			j, ok := index[to]
			if !ok {
				return nil, fmt.Errorf("%w: %s (linked from %s)", ErrUnknownPage, to, p)
			}
			out = append(out, j)
		}
		sort.Ints(out)
		g.out[i] = out
		g.links += len(out)
		for _, j := range out {
			g.in[j] = append(g.in[j], i)
		}
	}
	return g, nil
}
