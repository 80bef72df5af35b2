package rank

import (
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// Canonical computes textbook PageRank with gonum, where a dangling page
// spreads its rank uniformly over the corpus. It differs from Solve only
// in that treatment and is provided for comparison.
func Canonical(g *linkgraph.Graph, damping, tolerance float64) (Distribution, error) {
	if err := checkGraph(g); err != nil {
		return nil, err
	}
	if err := checkDamping(damping); err != nil {
		return nil, err
	}
	if err := checkThreshold(tolerance); err != nil {
		return nil, err
	}

	dg := simple.NewDirectedGraph()
	for i := 0; i < g.Len(); i++ {
		dg.AddNode(simple.Node(int64(i)))
	}
	for i := 0; i < g.Len(); i++ {
		for _, j := range g.Outbound(i) {
			dg.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
		}
	}

	scores := network.PageRank(dg, damping, tolerance)
	ranks := make(Distribution, len(scores))
	for id, score := range scores {
		ranks[g.Page(int(id))] = score
	}
	return ranks, nil
}
