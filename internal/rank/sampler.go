package rank

import (
	"context"
	"fmt"
	"math"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// cancelCheckInterval is how many walk steps run between context checks
// and progress callbacks.
const cancelCheckInterval = 1024

// SampleOptions configures the random-walk sampler.
type SampleOptions struct {
	Damping float64 // probability of following a link; must lie in (0, 1)
	Samples int     // number of tabulated visits; must be at least 1
	Source  Source  // uniform draws; nil seeds a fresh PCG source from the clock

	// Progress, when set, is called periodically with the number of
	// visits tabulated so far and the total.
	Progress func(done, total int)
}

// DefaultSampleOptions returns damping 0.85 and 10000 samples with a
// clock-seeded source.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Damping: 0.85,
		Samples: 10000,
	}
}

// Sample approximates the stationary distribution of the random-surfer
// chain by walking it for opts.Samples visits. The walk starts on a page
// chosen uniformly at random, which counts as the first visit; each later
// visit is drawn from Transition of the current page. Each page's rank is
// its visit count divided by opts.Samples, so the result sums to 1.
func Sample(ctx context.Context, g *linkgraph.Graph, opts SampleOptions) (Distribution, error) {
	if err := checkGraph(g); err != nil {
		return nil, err
	}
	if err := checkDamping(opts.Damping); err != nil {
		return nil, err
	}
	if err := checkSamples(opts.Samples); err != nil {
		return nil, err
	}
	src := opts.Source
	if src == nil {
		src = NewSource(0)
	}

	n := g.Len()
	counts := make([]int, n)
	probs := make([]float64, n)

	current := src.IntN(n)
	counts[current]++
	for visit := 1; visit < opts.Samples; visit++ {
		if visit%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if opts.Progress != nil {
				opts.Progress(visit, opts.Samples)
			}
		}
		probs = transitionInto(probs, g, current, opts.Damping)
		current = choose(probs, src.Float64())
		counts[current]++
	}
	if opts.Progress != nil {
		opts.Progress(opts.Samples, opts.Samples)
	}

	ranks := make(Distribution, n)
	total := float64(opts.Samples)
	for i, c := range counts {
		ranks[g.Page(i)] = float64(c) / total
	}
	return ranks, nil
}

// choose performs inverse-CDF selection over probs for a draw r in [0, 1):
// it returns the first index whose cumulative mass is >= r. If rounding
// leaves the final cumulative sum just below r, the last index is
// returned, so every draw selects a page.
func choose(probs []float64, r float64) int {
	var cumulative float64
	for i, p := range probs {
		if p < 0 || math.IsNaN(p) {
			panic(fmt.Sprintf("rank: invalid transition mass %v at index %d", p, i))
		}
		cumulative += p
		if cumulative >= r {
			return i
		}
	}
	return len(probs) - 1
}
