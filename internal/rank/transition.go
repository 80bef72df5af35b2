// Package rank estimates PageRank over a link graph two independent ways:
// a Monte-Carlo random walk (Sample) and power iteration (Solve). Both
// share the random-surfer transition model defined by Transition.
package rank

import (
	"fmt"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// Transition returns the probability of visiting each page next, given the
// surfer is on page. With probability damping the surfer follows one of
// page's links uniformly; otherwise it jumps to any page uniformly. A
// dangling page is treated as linking to the whole corpus, so every page
// gets 1/N and damping is ignored.
func Transition(g *linkgraph.Graph, page string, damping float64) (Distribution, error) {
	if err := checkGraph(g); err != nil {
		return nil, err
	}
	if err := checkDamping(damping); err != nil {
		return nil, err
	}
	i, ok := g.Index(page)
	if !ok {
		return nil, fmt.Errorf("%w: %s", linkgraph.ErrUnknownPage, page)
	}
	return fromVector(g, transitionInto(nil, g, i, damping)), nil
}

// transitionInto writes the transition distribution of page i into dst,
// reusing its storage when large enough, and returns it.
func transitionInto(dst []float64, g *linkgraph.Graph, i int, damping float64) []float64 {
	n := g.Len()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	out := g.Outbound(i)
	if len(out) == 0 {
		uniform := 1.0 / float64(n)
		for j := range dst {
			dst[j] = uniform
		}
		return dst
	}

	base := (1 - damping) / float64(n)
	for j := range dst {
		dst[j] = base
	}
	share := damping / float64(len(out))
	for _, j := range out {
		dst[j] += share
	}
	return dst
}
