// Package watch reports changes to a corpus on disk so the ranking can be
// recomputed. A directory corpus is watched for *.html files; an edge-list
// corpus is watched as a single file.
package watch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/linkrank/internal/corpus"
)

// DefaultDebounce is how long a corpus must stay quiet before a Change is
// emitted.
const DefaultDebounce = 100 * time.Millisecond

// Change is a settled batch of modified corpus files.
type Change struct {
	Files []string // Absolute paths, sorted
}

// Watcher monitors a corpus for modifications using fsnotify.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Changes  <-chan Change // Read-only external channel

	changes chan Change
	done    chan struct{}
	quit    chan struct{}
	dir     string
	file    string // non-empty when watching a single edge-list file
	watcher *fsnotify.Watcher
	log     logrus.FieldLogger
}

// New creates a watcher for the corpus at path. A nil log discards watch
// errors.
func New(path string, log logrus.FieldLogger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Path:     abs,
		Debounce: DefaultDebounce,
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		dir:      abs,
		watcher:  fw,
		log:      log.WithField("corpus", abs),
	}
	if !info.IsDir() {
		w.dir = filepath.Dir(abs)
		w.file = abs
	}
	return w, nil
}

// Start begins watching the corpus for changes.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel. Pending files that have
// not yet settled are dropped.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			now := time.Now()
			settled := true
			for _, t := range pending {
				if now.Sub(t) < debounce {
					settled = false
					break
				}
			}
			if !settled {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)
			w.log.WithField("files", len(files)).Debug("corpus changed")
			select {
			case w.changes <- Change{Files: files}:
			case <-w.quit:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watch error")

		case <-w.quit:
			return
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	if w.file != "" {
		return filepath.Clean(name) == w.file
	}
	return corpus.IsPage(name)
}
