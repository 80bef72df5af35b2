package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatcher creates and starts a watcher on path and stops it on cleanup.
func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()
	w, err := New(path, nil)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	w.Debounce = 50 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcher_DetectsPageChange(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "1.html")
	writeFile(t, page, `<a href="2.html">2</a>`)

	w := startWatcher(t, dir)
	writeFile(t, page, `<a href="3.html">3</a>`)

	select {
	case change := <-w.Changes:
		if len(change.Files) != 1 || filepath.Base(change.Files[0]) != "1.html" {
			t.Errorf("Files = %v, want [.../1.html]", change.Files)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_BatchesBurst(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	for _, name := range []string{"b.html", "a.html", "c.html"} {
		writeFile(t, filepath.Join(dir, name), "<p>x</p>")
	}

	select {
	case change := <-w.Changes:
		if len(change.Files) == 0 {
			t.Fatal("empty change batch")
		}
		for i := 1; i < len(change.Files); i++ {
			if change.Files[i-1] >= change.Files[i] {
				t.Errorf("Files not sorted: %v", change.Files)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcher_IgnoresNonPageFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	select {
	case change := <-w.Changes:
		t.Errorf("unexpected change event: %+v", change)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_EdgeListFile(t *testing.T) {
	dir := t.TempDir()
	edges := filepath.Join(dir, "edges.txt")
	writeFile(t, edges, "a b\n")

	w := startWatcher(t, edges)
	if w.file == "" {
		t.Fatal("single file corpus not detected")
	}

	writeFile(t, filepath.Join(dir, "other.txt"), "ignored")
	writeFile(t, edges, "a b\nb a\n")

	select {
	case change := <-w.Changes:
		for _, f := range change.Files {
			if filepath.Base(f) != "edges.txt" {
				t.Errorf("unexpected file in change: %s", f)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestNew_MissingCorpus(t *testing.T) {
	t.Parallel()
	if _, err := New(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error for missing corpus")
	}
}
