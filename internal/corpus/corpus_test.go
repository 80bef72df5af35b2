package corpus

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// writeCorpus populates an in-memory filesystem with the given files under
// dir and returns it.
func writeCorpus(t *testing.T, dir string, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		if err := afero.WriteFile(fsys, dir+"/"+name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fsys
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "plain anchors",
			doc:  `<html><body><a href="2.html">Two</a> <a href="3.html">Three</a></body></html>`,
			want: []string{"2.html", "3.html"},
		},
		{
			name: "attributes before href and duplicates",
			doc:  `<a class="x" href="2.html">a</a><A id=q HREF="2.html">b</A>`,
			want: []string{"2.html"},
		},
		{
			name: "non-anchor hrefs ignored",
			doc:  `<link href="style.css"><a name="top">top</a><area href="map.html">`,
			want: []string{},
		},
		{
			name: "empty document",
			doc:  ``,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractLinks(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractLinks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCrawl(t *testing.T) {
	t.Parallel()

	fsys := writeCorpus(t, "/corpus0", map[string]string{
		"1.html":    `<a href="2.html">2</a><a href="1.html">self</a>`,
		"2.html":    `<a href="1.html">1</a><a href="3.html">3</a><a href="https://example.com">ext</a>`,
		"3.html":    `<a href="2.html">2</a><a href="4.html">missing</a>`,
		"notes.txt": `<a href="1.html">ignored</a>`,
	})

	g, err := Crawl(fsys, "/corpus0")
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	want := map[string][]string{
		"1.html": {"2.html"},
		"2.html": {"1.html", "3.html"},
		"3.html": {"2.html"},
	}
	if diff := cmp.Diff(want, g.Map()); diff != "" {
		t.Errorf("Crawl() graph mismatch (-want +got):\n%s", diff)
	}
}

func TestCrawl_EmptyDirectory(t *testing.T) {
	t.Parallel()
	fsys := writeCorpus(t, "/empty", map[string]string{"readme.md": "hi"})
	if _, err := Crawl(fsys, "/empty"); !errors.Is(err, linkgraph.ErrEmptyGraph) {
		t.Errorf("Crawl() error = %v, want ErrEmptyGraph", err)
	}
}

func TestCrawl_MissingDirectory(t *testing.T) {
	t.Parallel()
	if _, err := Crawl(afero.NewMemMapFs(), "/nope"); err == nil {
		t.Error("Crawl() on missing directory returned nil error")
	}
}

func TestParseEdgeList(t *testing.T) {
	t.Parallel()

	input := `# FromNodeId ToNodeId
// another comment
1 2
1,3
2	3

3 3
4 1
`
	g, err := ParseEdgeList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseEdgeList() error: %v", err)
	}
	want := map[string][]string{
		"1": {"2", "3"},
		"2": {"3"},
		"3": {},
		"4": {"1"},
	}
	if diff := cmp.Diff(want, g.Map()); diff != "" {
		t.Errorf("ParseEdgeList() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEdgeList_LonePages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  map[string][]string
	}{
		{"single page", "A\n", map[string][]string{"A": {}}},
		{"trailing separator", "A,\n", map[string][]string{"A": {}}},
		{"isolated beside a link", "a b\nz\n", map[string][]string{"a": {"b"}, "b": {}, "z": {}}},
		{"declared then linked", "a\na b\n", map[string][]string{"a": {"b"}, "b": {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := ParseEdgeList(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseEdgeList() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, g.Map()); diff != "" {
				t.Errorf("ParseEdgeList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEdgeList_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"too many fields", "1 2 3\n", "line 1"},
		{"after a comment", "# c\n7\n7,8,9\n", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseEdgeList(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseEdgeList() error = %v, want mention of %q", err, tt.want)
			}
			if !errors.Is(err, ErrMalformedEdge) {
				t.Errorf("ParseEdgeList() error = %v, want ErrMalformedEdge", err)
			}
		})
	}

	if _, err := ParseEdgeList(strings.NewReader("# only comments\n")); !errors.Is(err, linkgraph.ErrEmptyGraph) {
		t.Errorf("comment-only input: error = %v, want ErrEmptyGraph", err)
	}
}

func TestLoad_DispatchesOnKind(t *testing.T) {
	t.Parallel()
	fsys := writeCorpus(t, "/web", map[string]string{
		"a.html": `<a href="b.html">b</a>`,
		"b.html": ``,
	})
	if err := afero.WriteFile(fsys, "/edges.txt", []byte("x y\ny x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := Load(fsys, "/web")
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 2 || !g.Has("a.html") {
		t.Errorf("Load(web) pages = %v", g.Pages())
	}

	g, err = Load(fsys, "/edges.txt")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y"}, g.Pages()); diff != "" {
		t.Errorf("Load(edges.txt) pages mismatch (-want +got):\n%s", diff)
	}
}
