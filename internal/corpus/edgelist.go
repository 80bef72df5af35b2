package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// ErrMalformedEdge is returned for an edge-list line that holds more than
// two page names.
var ErrMalformedEdge = errors.New("malformed edge")

// LoadEdgeList reads an edge list file from fsys. See ParseEdgeList.
func LoadEdgeList(fsys afero.Fs, name string) (*linkgraph.Graph, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", name, err)
	}
	defer f.Close()

	g, err := ParseEdgeList(f)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", name, err)
	}
	return g, nil
}

// ParseEdgeList reads one "from to" (or "from,to") link per line. A line
// with a single name declares a page, which stays dangling unless another
// line links from it. Blank lines and lines starting with # or // are
// skipped. Both endpoints become pages. Self-links are dropped, matching how
// crawled pages are treated.
func ParseEdgeList(r io.Reader) (*linkgraph.Graph, error) {
	b := linkgraph.NewBuilder()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		from, to, skip, err := parseEdge(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if skip {
			continue
		}
		b.AddPage(from)
		if to == "" {
			continue
		}
		b.AddPage(to)
		if from == to {
			continue
		}
		if err := b.AddLink(from, to); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b.Build()
}

// parseEdge splits a single edge-list line. to is empty for a lone page.
// Comment and blank lines are reported through skip.
func parseEdge(line string) (from, to string, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return "", "", true, nil
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	switch len(fields) {
	case 1:
		return fields[0], "", false, nil
	case 2:
		return fields[0], fields[1], false, nil
	default:
		return "", "", false, fmt.Errorf("%w: want 1 or 2 fields, got %d in %q", ErrMalformedEdge, len(fields), line)
	}
}
