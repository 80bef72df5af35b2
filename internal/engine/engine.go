// Package engine runs the configured ranking methods against a link graph,
// concurrently, and assembles their results into a report.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
)

// Request describes one ranking run. Zero fields are omitted from JSON so
// a partial document decoded over defaults keeps them.
type Request struct {
	Method        string  `json:"method,omitempty"`
	Damping       float64 `json:"damping,omitempty"`
	Samples       int     `json:"samples,omitempty"`
	Threshold     float64 `json:"threshold,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
	Workers       int     `json:"workers,omitempty"`
	Seed          uint64  `json:"seed,omitempty"`
}

// DefaultRequest runs both core methods with the standard parameters.
func DefaultRequest() Request {
	s := rank.DefaultSampleOptions()
	i := rank.DefaultSolveOptions()
	return Request{
		Method:        config.MethodBoth,
		Damping:       s.Damping,
		Samples:       s.Samples,
		Threshold:     i.Threshold,
		MaxIterations: i.MaxIterations,
		Workers:       i.Workers,
	}
}

// FromConfig builds a Request from loaded configuration.
func FromConfig(cfg config.Config) Request {
	return Request{
		Method:        cfg.Method,
		Damping:       cfg.Damping,
		Samples:       cfg.Samples,
		Threshold:     cfg.Threshold,
		MaxIterations: cfg.MaxIterations,
		Workers:       cfg.Workers,
		Seed:          cfg.Seed,
	}
}

// Methods expands the request's method into the report methods it runs.
func (r Request) Methods() ([]string, error) {
	switch r.Method {
	case config.MethodSample:
		return []string{report.MethodSample}, nil
	case config.MethodIterate:
		return []string{report.MethodIterate}, nil
	case config.MethodBoth, "":
		return []string{report.MethodSample, report.MethodIterate}, nil
	case config.MethodCanonical:
		return []string{report.MethodCanonical}, nil
	default:
		return nil, &rank.InvalidParameterError{
			Name:   "method",
			Value:  r.Method,
			Reason: "must be one of sample, iterate, both, canonical",
		}
	}
}

// Hooks observe a run. Any field may be nil. Callbacks for different
// methods may arrive concurrently.
type Hooks struct {
	MethodStart    func(method string)
	SampleProgress func(done, total int)
	SolveStep      func(step rank.Step)
	MethodDone     func(sec report.Section, elapsed time.Duration)
}

// Chain returns Hooks that call each of hs in order.
func Chain(hs ...Hooks) Hooks {
	return Hooks{
		MethodStart: func(method string) {
			for _, h := range hs {
				if h.MethodStart != nil {
					h.MethodStart(method)
				}
			}
		},
		SampleProgress: func(done, total int) {
			for _, h := range hs {
				if h.SampleProgress != nil {
					h.SampleProgress(done, total)
				}
			}
		},
		SolveStep: func(step rank.Step) {
			for _, h := range hs {
				if h.SolveStep != nil {
					h.SolveStep(step)
				}
			}
		},
		MethodDone: func(sec report.Section, elapsed time.Duration) {
			for _, h := range hs {
				if h.MethodDone != nil {
					h.MethodDone(sec, elapsed)
				}
			}
		},
	}
}

// Run executes every method of req against g. Methods run concurrently and
// share nothing but the read-only graph; the first failure cancels the
// others. The report is stamped with the time the run started. It has no
// RunID; persisting it assigns one.
func Run(ctx context.Context, g *linkgraph.Graph, corpusName string, req Request, hooks Hooks) (*report.Report, error) {
	return run(ctx, g, corpusName, req, hooks, time.Now)
}

func run(ctx context.Context, g *linkgraph.Graph, corpusName string, req Request, hooks Hooks, now func() time.Time) (*report.Report, error) {
	methods, err := req.Methods()
	if err != nil {
		return nil, err
	}
	if g == nil || g.Len() == 0 {
		return nil, rank.ErrEmptyGraph
	}

	rep := &report.Report{
		Corpus:  corpusName,
		Pages:   g.Len(),
		Links:   g.LinkCount(),
		Damping: req.Damping,
		Created: now().UTC(),
	}

	var mu sync.Mutex
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, m := range methods {
		p.Go(func(ctx context.Context) error {
			if hooks.MethodStart != nil {
				hooks.MethodStart(m)
			}
			start := time.Now()
			sec, err := runMethod(ctx, g, m, req, hooks)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			elapsed := time.Since(start)
			sec.Elapsed = elapsed.Round(time.Microsecond).String()

			mu.Lock()
			rep.Add(sec)
			mu.Unlock()

			if hooks.MethodDone != nil {
				hooks.MethodDone(sec, elapsed)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}

func runMethod(ctx context.Context, g *linkgraph.Graph, method string, req Request, hooks Hooks) (report.Section, error) {
	switch method {
	case report.MethodSample:
		d, err := rank.Sample(ctx, g, rank.SampleOptions{
			Damping:  req.Damping,
			Samples:  req.Samples,
			Source:   rank.NewSource(req.Seed),
			Progress: hooks.SampleProgress,
		})
		if err != nil {
			return report.Section{}, err
		}
		sec := report.NewSection(method, d)
		sec.Samples = req.Samples
		return sec, nil

	case report.MethodIterate:
		res, err := rank.Solve(ctx, g, rank.SolveOptions{
			Damping:       req.Damping,
			Threshold:     req.Threshold,
			MaxIterations: req.MaxIterations,
			Workers:       req.Workers,
			Progress:      hooks.SolveStep,
		})
		if err != nil {
			return report.Section{}, err
		}
		sec := report.NewSection(method, res.Ranks)
		sec.Iterations = res.Iterations
		sec.Delta = res.Delta
		sec.Mass = res.Mass
		return sec, nil

	case report.MethodCanonical:
		d, err := rank.Canonical(g, req.Damping, req.Threshold)
		if err != nil {
			return report.Section{}, err
		}
		return report.NewSection(method, d), nil
	}
	return report.Section{}, fmt.Errorf("unknown method %q", method)
}
