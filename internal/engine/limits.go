package engine

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
)

// Limits bounds the work a remotely submitted request may ask for. A zero
// field is unbounded.
type Limits struct {
	MaxSamples    int
	MaxIterations int
}

// LimitsFromConfig returns the configured job bounds.
func LimitsFromConfig(cfg config.Config) Limits {
	return Limits{
		MaxSamples:    cfg.Limits.MaxSamples,
		MaxIterations: cfg.Limits.MaxIterations,
	}
}

// Check rejects a request that asks for more work than l allows. Only the
// parameters of the methods the request runs are checked. Every violation
// is a *rank.InvalidParameterError; requests are never clamped.
func (l Limits) Check(r Request) error {
	methods, err := r.Methods()
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, m := range methods {
		switch m {
		case report.MethodSample:
			if l.MaxSamples > 0 && r.Samples > l.MaxSamples {
				result = multierror.Append(result, &rank.InvalidParameterError{
					Name:   "samples",
					Value:  r.Samples,
					Reason: fmt.Sprintf("must not exceed %d", l.MaxSamples),
				})
			}
		case report.MethodIterate:
			if l.MaxIterations > 0 && (r.MaxIterations <= 0 || r.MaxIterations > l.MaxIterations) {
				result = multierror.Append(result, &rank.InvalidParameterError{
					Name:   "max_iterations",
					Value:  r.MaxIterations,
					Reason: fmt.Sprintf("must lie in [1, %d]", l.MaxIterations),
				})
			}
		}
	}
	return result.ErrorOrNil()
}
