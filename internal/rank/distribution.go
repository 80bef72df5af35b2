package rank

import (
	"math"
	"sort"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// Distribution maps page identifiers to probabilities in [0, 1]. Values
// produced by this package sum to 1 within floating tolerance and are
// never mutated after being returned.
type Distribution map[string]float64

// Entry is a single page/rank pair.
type Entry struct {
	Page string  `json:"page" toml:"page"`
	Rank float64 `json:"rank" toml:"rank"`
}

// Pages returns the distribution's keys in sorted order.
func (d Distribution) Pages() []string {
	pages := make([]string, 0, len(d))
	for p := range d {
		pages = append(pages, p)
	}
	sort.Strings(pages)
	return pages
}

// Sum returns the total probability mass, accumulated in page order so
// the result is deterministic.
func (d Distribution) Sum() float64 {
	var total float64
	for _, p := range d.Pages() {
		total += d[p]
	}
	return total
}

// Distance returns the L1 distance between d and other over the union of
// their pages. A page missing from one side counts as 0 there.
func (d Distribution) Distance(other Distribution) float64 {
	var dist float64
	for p, v := range d {
		dist += math.Abs(v - other[p])
	}
	for p, v := range other {
		if _, ok := d[p]; !ok {
			dist += math.Abs(v)
		}
	}
	return dist
}

// MaxDelta returns the largest absolute per-page difference between d and
// other over the union of their pages.
func (d Distribution) MaxDelta(other Distribution) float64 {
	var maxDelta float64
	for p, v := range d {
		maxDelta = math.Max(maxDelta, math.Abs(v-other[p]))
	}
	for p, v := range other {
		if _, ok := d[p]; !ok {
			maxDelta = math.Max(maxDelta, math.Abs(v))
		}
	}
	return maxDelta
}

// Sorted returns all entries ordered by page name.
func (d Distribution) Sorted() []Entry {
	entries := make([]Entry, 0, len(d))
	for _, p := range d.Pages() {
		entries = append(entries, Entry{Page: p, Rank: d[p]})
	}
	return entries
}

// Top returns the k highest-ranked entries, ties broken by page name.
// A k of zero or less returns every entry.
func (d Distribution) Top(k int) []Entry {
	entries := d.Sorted()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rank > entries[j].Rank
	})
	if k > 0 && k < len(entries) {
		entries = entries[:k]
	}
	return entries
}

// fromVector converts an index-ordered rank vector into a Distribution.
func fromVector(g *linkgraph.Graph, vec []float64) Distribution {
	d := make(Distribution, len(vec))
	for i, v := range vec {
		d[g.Page(i)] = v
	}
	return d
}
