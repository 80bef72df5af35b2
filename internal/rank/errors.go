package rank

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// Sentinel errors for rank computations.
var (
	// ErrEmptyGraph indicates a graph with zero pages; page-count divisions
	// are undefined for it.
	ErrEmptyGraph = linkgraph.ErrEmptyGraph
	// ErrInvalidParameter indicates a damping factor, sample count, or
	// threshold outside its valid range. Values are never clamped.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrConvergenceTimeout indicates the iterative solver reached its
	// iteration cap before the convergence test passed.
	ErrConvergenceTimeout = errors.New("convergence timeout")
)

// InvalidParameterError records which parameter was rejected and why.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

// Error returns a human-readable description of the rejected parameter.
func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: %s = %v %s", ErrInvalidParameter, e.Name, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidParameter for use with errors.Is.
func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// ConvergenceTimeoutError is returned by the solver when MaxIterations
// passes elapse without the max-change test succeeding.
type ConvergenceTimeoutError struct {
	Iterations int
	Delta      float64 // max absolute change on the last pass
}

// Error returns a human-readable description including the last delta.
func (e *ConvergenceTimeoutError) Error() string {
	return fmt.Sprintf("%s: no convergence after %d iteration(s) (last delta %g)",
		ErrConvergenceTimeout, e.Iterations, e.Delta)
}

// Unwrap returns ErrConvergenceTimeout for use with errors.Is.
func (e *ConvergenceTimeoutError) Unwrap() error {
	return ErrConvergenceTimeout
}

func checkGraph(g *linkgraph.Graph) error {
	if g == nil || g.Len() == 0 {
		return ErrEmptyGraph
	}
	return nil
}

func checkDamping(damping float64) error {
	if !(damping > 0 && damping < 1) {
		return &InvalidParameterError{Name: "damping", Value: damping, Reason: "must lie in (0, 1)"}
	}
	return nil
}

func checkSamples(n int) error {
	if n < 1 {
		return &InvalidParameterError{Name: "samples", Value: n, Reason: "must be at least 1"}
	}
	return nil
}

func checkThreshold(threshold float64) error {
	if !(threshold > 0) {
		return &InvalidParameterError{Name: "threshold", Value: threshold, Reason: "must be positive"}
	}
	return nil
}

func checkMaxIterations(n int) error {
	if n < 0 {
		return &InvalidParameterError{Name: "max_iterations", Value: n, Reason: "must not be negative"}
	}
	return nil
}
