// Package corpus builds link graphs from on-disk corpora: a directory of
// HTML pages, or a plain edge list.
package corpus

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/papapumpkin/linkrank/internal/linkgraph"
)

// PageExt is the file extension of corpus pages.
const PageExt = ".html"

// IsPage reports whether name looks like a corpus page.
func IsPage(name string) bool {
	return strings.HasSuffix(name, PageExt)
}

// Load builds a graph from p: a directory is crawled as an HTML corpus,
// anything else is parsed as an edge list.
func Load(fsys afero.Fs, p string) (*linkgraph.Graph, error) {
	isDir, err := afero.IsDir(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("corpus: stat %s: %w", p, err)
	}
	if isDir {
		return Crawl(fsys, p)
	}
	return LoadEdgeList(fsys, p)
}

// Crawl parses every .html file directly inside dir and returns the link
// graph between them. Page identifiers are file names. Links are the href
// values of <a> elements; a page's links to itself and links to files
// outside the corpus are dropped.
func Crawl(fsys afero.Fs, dir string) (*linkgraph.Graph, error) {
	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", dir, err)
	}

	pages := make(map[string][]string)
	for _, info := range infos {
		if info.IsDir() || !IsPage(info.Name()) {
			continue
		}
		links, err := extractFile(fsys, filepath.Join(dir, info.Name()))
		if err != nil {
			return nil, err
		}
		pages[info.Name()] = links
	}

	b := linkgraph.NewBuilder()
	for name := range pages {
		b.AddPage(name)
	}
	for name, links := range pages {
		for _, link := range links {
			if link == name {
				continue
			}
			if _, ok := pages[link]; !ok {
				continue
			}
			if err := b.AddLink(name, link); err != nil {
				return nil, err
			}
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", dir, err)
	}
	return g, nil
}

func extractFile(fsys afero.Fs, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", name, err)
	}
	defer f.Close()

	links, err := ExtractLinks(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", name, err)
	}
	return links, nil
}

// ExtractLinks returns the distinct href values of all <a> elements in an
// HTML document, sorted.
func ExtractLinks(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			links := make([]string, 0, len(seen))
			for l := range seen {
				links = append(links, l)
			}
			sort.Strings(links)
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					seen[string(val)] = true
				}
				if !more {
					break
				}
			}
		}
	}
}
