package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/papapumpkin/linkrank/internal/corpus"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/report"
)

// ErrNoGraph is returned when a job carries neither an adjacency map nor an
// edge list.
var ErrNoGraph = errors.New("job has no graph")

// ErrConflictingGraph is returned when a job carries both forms of graph.
var ErrConflictingGraph = errors.New("job gives both graph and edges")

// Job is a self-contained ranking request as submitted to the HTTP, gRPC
// and queue surfaces: a graph plus the parameters to rank it with. The
// graph is given either as an adjacency map or as edge-list text.
type Job struct {
	Request
	Corpus string              `json:"corpus"`
	Graph  map[string][]string `json:"graph,omitempty"`
	Edges  string              `json:"edges,omitempty"`
}

// Build constructs the job's link graph.
func (j Job) Build() (*linkgraph.Graph, error) {
	switch {
	case len(j.Graph) > 0 && j.Edges != "":
		return nil, ErrConflictingGraph
	case len(j.Graph) > 0:
		return linkgraph.New(j.Graph)
	case j.Edges != "":
		return corpus.ParseEdgeList(strings.NewReader(j.Edges))
	default:
		return nil, ErrNoGraph
	}
}

// Name returns the corpus label for the job's report.
func (j Job) Name() string {
	if j.Corpus != "" {
		return j.Corpus
	}
	return "upload"
}

// Execute builds the job's graph and runs it.
func (j Job) Execute(ctx context.Context, hooks Hooks) (*report.Report, error) {
	g, err := j.Build()
	if err != nil {
		return nil, err
	}
	return Run(ctx, g, j.Name(), j.Request, hooks)
}
