package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
)

// Sender is the part of tea.Program the bridge uses.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards engine callbacks as typed messages to a BubbleTea
// program. tea.Program.Send is goroutine-safe, so the sampler and solver
// can report concurrently.
type Bridge struct {
	program Sender
}

// NewBridge creates a bridge that sends messages to p.
func NewBridge(p Sender) *Bridge {
	return &Bridge{program: p}
}

// Hooks returns engine hooks that feed the program.
func (b *Bridge) Hooks() engine.Hooks {
	return engine.Hooks{
		MethodStart: func(method string) {
			b.program.Send(MsgMethodStart{Method: method})
		},
		SampleProgress: func(done, total int) {
			b.program.Send(MsgSampleProgress{Done: done, Total: total})
		},
		SolveStep: func(step rank.Step) {
			b.program.Send(MsgSolveStep{Step: step})
		},
		MethodDone: func(sec report.Section, elapsed time.Duration) {
			b.program.Send(MsgMethodDone{Section: sec, Elapsed: elapsed})
		},
	}
}

// RunDone sends MsgRunDone.
func (b *Bridge) RunDone(rep *report.Report, err error) {
	b.program.Send(MsgRunDone{Report: rep, Err: err})
}

// WatchFailed sends MsgWatchFailed.
func (b *Bridge) WatchFailed(err error) {
	b.program.Send(MsgWatchFailed{Err: err})
}

// CorpusChanged sends MsgCorpusChanged.
func (b *Bridge) CorpusChanged(files []string) {
	b.program.Send(MsgCorpusChanged{Files: files})
}
