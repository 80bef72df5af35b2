package report

import (
	"fmt"
	"strings"
)

// TextReport renders the plain listing: one heading per method followed by
// every page in name order with its rank to four decimals.
type TextReport struct{}

// Render produces the text listing.
func (t *TextReport) Render(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is nil")
	}
	var b strings.Builder
	for _, s := range r.Sections {
		b.WriteString(heading(s))
		b.WriteByte('\n')
		for _, e := range s.Ranks {
			fmt.Fprintf(&b, "  %s: %.4f\n", e.Page, e.Rank)
		}
	}
	return b.String(), nil
}

func heading(s Section) string {
	switch s.Method {
	case MethodSample:
		return fmt.Sprintf("PageRank Results from Sampling (n = %d)", s.Samples)
	case MethodIterate:
		return "PageRank Results from Iteration"
	case MethodCanonical:
		return "PageRank Results from Canonical Iteration"
	default:
		return fmt.Sprintf("PageRank Results from %s", s.Method)
	}
}
