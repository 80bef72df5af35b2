package report

import (
	"encoding/json"
	"fmt"

	"github.com/papapumpkin/linkrank/internal/rank"
)

// JSONReport renders the report as indented JSON for external tooling.
type JSONReport struct{}

// Render produces a JSON string of the report.
func (j *JSONReport) Render(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is nil")
	}
	data, err := json.MarshalIndent(withEmptySlices(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON report: %w", err)
	}
	return string(data) + "\n", nil
}

// withEmptySlices returns a copy of r whose nil slices are empty, so JSON
// arrays are rendered as [] instead of null.
func withEmptySlices(r *Report) *Report {
	out := *r
	out.Sections = make([]Section, len(r.Sections))
	for i, s := range r.Sections {
		if s.Ranks == nil {
			s.Ranks = []rank.Entry{}
		}
		out.Sections[i] = s
	}
	return &out
}
