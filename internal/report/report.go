// Package report turns ranking results into text, JSON or TOML output.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/papapumpkin/linkrank/internal/rank"
)

// Method names as they appear in a Section.
const (
	MethodSample    = "sample"
	MethodIterate   = "iterate"
	MethodCanonical = "canonical"
)

// Section is the outcome of one ranking method.
type Section struct {
	Method     string       `json:"method" toml:"method"`
	Samples    int          `json:"samples,omitempty" toml:"samples,omitempty"`
	Iterations int          `json:"iterations,omitempty" toml:"iterations,omitempty"`
	Delta      float64      `json:"delta,omitempty" toml:"delta,omitempty"`
	Mass       float64      `json:"mass,omitempty" toml:"mass,omitempty"`
	Elapsed    string       `json:"elapsed,omitempty" toml:"elapsed,omitempty"`
	Ranks      []rank.Entry `json:"ranks" toml:"ranks"`
}

// Distribution converts the section's entries back into a rank.Distribution.
func (s Section) Distribution() rank.Distribution {
	d := make(rank.Distribution, len(s.Ranks))
	for _, e := range s.Ranks {
		d[e.Page] = e.Rank
	}
	return d
}

// Report collects every method run against one corpus.
type Report struct {
	RunID    string    `json:"run_id,omitempty" toml:"run_id,omitempty"`
	Corpus   string    `json:"corpus" toml:"corpus"`
	Created  time.Time `json:"created" toml:"created"`
	Pages    int       `json:"pages" toml:"pages"`
	Links    int       `json:"links" toml:"links"`
	Damping  float64   `json:"damping" toml:"damping"`
	Sections []Section `json:"sections" toml:"sections"`
}

// NewSection builds a Section whose entries are sorted by page name.
func NewSection(method string, d rank.Distribution) Section {
	entries := make([]rank.Entry, 0, len(d))
	for _, p := range d.Pages() {
		entries = append(entries, rank.Entry{Page: p, Rank: d[p]})
	}
	return Section{Method: method, Ranks: entries}
}

// Section returns the section produced by method, if present.
func (r *Report) Section(method string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Method == method {
			return s, true
		}
	}
	return Section{}, false
}

// Add appends s and keeps sections in a stable method order.
func (r *Report) Add(s Section) {
	r.Sections = append(r.Sections, s)
	sort.SliceStable(r.Sections, func(i, j int) bool {
		return methodOrder(r.Sections[i].Method) < methodOrder(r.Sections[j].Method)
	})
}

func methodOrder(m string) int {
	switch m {
	case MethodSample:
		return 0
	case MethodIterate:
		return 1
	case MethodCanonical:
		return 2
	default:
		return 3
	}
}

// Format defines how a Report is rendered into a human- or machine-readable
// string.
type Format interface {
	// Render produces the full report content.
	Render(r *Report) (string, error)
}

// FormatByName returns the Format implementation for the given name.
// Supported names: text, json, toml.
func FormatByName(name string) (Format, error) {
	switch name {
	case "text":
		return &TextReport{}, nil
	case "json":
		return &JSONReport{}, nil
	case "toml":
		return &TOMLReport{}, nil
	default:
		return nil, fmt.Errorf("unknown report format: %q", name)
	}
}

// FormatNames returns the list of all supported report format names.
func FormatNames() []string {
	return []string{"text", "json", "toml"}
}
