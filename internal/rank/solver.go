package rank

import (
	"context"
	"fmt"
	"math"

	"github.com/sourcegraph/conc/iter"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// SolverState is the state of the power-iteration loop.
type SolverState int

const (
	Iterating SolverState = iota // relaxation passes still changing ranks
	Converged                    // max-change test passed; terminal
)

// String returns a lowercase state name.
func (s SolverState) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	default:
		return fmt.Sprintf("SolverState(%d)", int(s))
	}
}

// Step describes one completed relaxation pass.
type Step struct {
	Iteration int
	Delta     float64 // max absolute per-page change in this pass
	State     SolverState
}

// SolveOptions configures the iterative solver.
type SolveOptions struct {
	Damping   float64 // probability of following a link; must lie in (0, 1)
	Threshold float64 // stop once every page changes by at most this much

	// MaxIterations caps the number of passes; exceeding it yields a
	// *ConvergenceTimeoutError. Zero disables the cap.
	MaxIterations int

	// Workers is the number of goroutines computing a pass. Values below
	// two run the pass inline.
	Workers int

	// Progress, when set, is called after every pass.
	Progress func(Step)
}

// DefaultSolveOptions returns damping 0.85, threshold 0.001, at most 1000
// iterations, computed on a single goroutine.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		Damping:       0.85,
		Threshold:     0.001,
		MaxIterations: 1000,
		Workers:       1,
	}
}

// Result is the outcome of Solve.
type Result struct {
	Ranks      Distribution
	Iterations int
	Delta      float64 // max absolute change on the final pass

	// Mass is the total rank of the converged vector before it was
	// rescaled to sum to 1. It is below 1 whenever the graph has
	// dangling pages, since their rank is not passed on.
	Mass float64
}

// Solve computes PageRank by power iteration starting from the uniform
// vector. Each pass sets
//
//	rank'(p) = (1-d)/N + d * sum over i linking to p of rank(i)/L_i
//
// reading only the previous vector. Dangling pages contribute nothing to
// any page, so their rank is not redistributed. The loop stops once every
// page changes by at most opts.Threshold; the converged vector is then
// rescaled by its total mass and returned.
func Solve(ctx context.Context, g *linkgraph.Graph, opts SolveOptions) (Result, error) {
	if err := checkGraph(g); err != nil {
		return Result{}, err
	}
	n := g.Len()
	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}
	return solve(ctx, g, initial, opts)
}

// SolveFrom runs the solver starting from initial instead of the uniform
// vector. initial must assign a value to every page of g and to nothing
// else.
func SolveFrom(ctx context.Context, g *linkgraph.Graph, initial Distribution, opts SolveOptions) (Result, error) {
	if err := checkGraph(g); err != nil {
		return Result{}, err
	}
	if len(initial) != g.Len() {
		return Result{}, &InvalidParameterError{
			Name:   "initial",
			Value:  fmt.Sprintf("%d page(s)", len(initial)),
			Reason: fmt.Sprintf("must cover exactly the %d page(s) of the graph", g.Len()),
		}
	}
	vec := make([]float64, g.Len())
	for page, v := range initial {
		i, ok := g.Index(page)
		if !ok {
			return Result{}, fmt.Errorf("initial vector: %w: %s", linkgraph.ErrUnknownPage, page)
		}
		vec[i] = v
	}
	return solve(ctx, g, vec, opts)
}

func solve(ctx context.Context, g *linkgraph.Graph, rank []float64, opts SolveOptions) (Result, error) {
	if err := checkDamping(opts.Damping); err != nil {
		return Result{}, err
	}
	if err := checkThreshold(opts.Threshold); err != nil {
		return Result{}, err
	}
	if err := checkMaxIterations(opts.MaxIterations); err != nil {
		return Result{}, err
	}

	next := make([]float64, len(rank))
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		relax(g, rank, next, opts.Damping, opts.Workers)

		// Convergence check: max absolute change across pages.
		delta := 0.0
		for i := range next {
			delta = math.Max(delta, math.Abs(next[i]-rank[i]))
		}

		state := Iterating
		if delta <= opts.Threshold {
			state = Converged
		}
		if opts.Progress != nil {
			opts.Progress(Step{Iteration: iteration, Delta: delta, State: state})
		}

		if state == Converged {
			mass := 0.0
			for _, v := range next {
				mass += v
			}
			if mass > 0 {
				for i := range next {
					next[i] /= mass
				}
			}
			return Result{
				Ranks:      fromVector(g, next),
				Iterations: iteration,
				Delta:      delta,
				Mass:       mass,
			}, nil
		}
		if opts.MaxIterations > 0 && iteration >= opts.MaxIterations {
			return Result{}, &ConvergenceTimeoutError{Iterations: iteration, Delta: delta}
		}
		rank, next = next, rank
	}
}

// relax performs one Jacobi pass, reading rank and writing next. Pages are
// independent within a pass, so the update may be split across workers.
func relax(g *linkgraph.Graph, rank, next []float64, damping float64, workers int) {
	base := (1 - damping) / float64(len(rank))
	update := func(p int, dst *float64) {
		// Every inbound page has at least one outbound link (the one to
		// p), so dangling pages never appear here.
		var sum float64
		for _, i := range g.Inbound(p) {
			sum += rank[i] / float64(g.OutDegree(i))
		}
		*dst = base + damping*sum
	}

	if workers < 2 {
		for p := range next {
			update(p, &next[p])
		}
		return
	}
	it := iter.Iterator[float64]{MaxGoroutines: workers}
	it.ForEachIdx(next, update)
}
