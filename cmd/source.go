package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/papapumpkin/linkrank/internal/corpus"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/linkgraph"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/telemetry"
	"github.com/papapumpkin/linkrank/internal/ui"
)

// stdinPath names standard input as an edge-list source.
const stdinPath = "-"

var errWatchStdin = errors.New("cannot watch standard input")

// corpusSource describes where a command reads its link graph from.
type corpusSource struct {
	fs    afero.Fs
	path  string
	edges bool // force edge-list parsing
	stdin io.Reader
}

func newCorpusSource(path string, edges bool, stdin io.Reader) corpusSource {
	return corpusSource{fs: afero.NewOsFs(), path: path, edges: edges, stdin: stdin}
}

// name is the corpus label used in reports.
func (s corpusSource) name() string {
	if s.path == stdinPath {
		return "stdin"
	}
	return filepath.Base(filepath.Clean(s.path))
}

func (s corpusSource) load() (*linkgraph.Graph, error) {
	switch {
	case s.path == stdinPath:
		return corpus.ParseEdgeList(s.stdin)
	case s.edges:
		return corpus.LoadEdgeList(s.fs, s.path)
	default:
		return corpus.Load(s.fs, s.path)
	}
}

// printerHooks reports method progress through p.
func printerHooks(p *ui.Printer) engine.Hooks {
	return engine.Hooks{
		MethodStart: p.MethodStart,
		MethodDone: func(sec report.Section, elapsed time.Duration) {
			p.MethodDone(sec.Method, elapsed, methodDetail(sec))
		},
	}
}

func methodDetail(sec report.Section) string {
	switch sec.Method {
	case report.MethodSample:
		return ui.Samples(sec.Samples)
	case report.MethodIterate:
		return ui.Iterations(sec.Iterations, sec.Delta)
	default:
		return fmt.Sprintf("%d pages", len(sec.Ranks))
	}
}

// telemetryHooks records method progress for one run.
func telemetryHooks(e *telemetry.Emitter, runID string) engine.Hooks {
	if e == nil {
		return engine.Hooks{}
	}
	return engine.Hooks{
		SampleProgress: func(done, total int) {
			e.Record(telemetry.KindSampleProgress, runID, report.MethodSample, map[string]any{
				"done":  done,
				"total": total,
			})
		},
		SolveStep: func(step rank.Step) {
			e.Record(telemetry.KindSolveStep, runID, report.MethodIterate, map[string]any{
				"iteration": step.Iteration,
				"delta":     step.Delta,
			})
		},
		MethodDone: func(sec report.Section, elapsed time.Duration) {
			data := map[string]any{"elapsed_ms": elapsed.Milliseconds()}
			if sec.Samples > 0 {
				data["samples"] = sec.Samples
			}
			if sec.Iterations > 0 {
				data["iterations"] = sec.Iterations
				data["delta"] = sec.Delta
				data["mass"] = sec.Mass
			}
			e.Record(telemetry.KindMethodDone, runID, sec.Method, data)
		},
	}
}
