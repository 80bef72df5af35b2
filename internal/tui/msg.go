package tui

import (
	"time"

	"github.com/papapumpkin/linkrank/internal/rank"
	"github.com/papapumpkin/linkrank/internal/report"
)

// MsgMethodStart is sent when a ranking method begins.
type MsgMethodStart struct {
	Method string
}

// MsgSampleProgress reports how many walk visits have been tabulated.
type MsgSampleProgress struct {
	Done  int
	Total int
}

// MsgSolveStep is sent after every solver pass.
type MsgSolveStep struct {
	Step rank.Step
}

// MsgMethodDone is sent when a method finishes.
type MsgMethodDone struct {
	Section report.Section
	Elapsed time.Duration
}

// MsgRunDone is sent once every method has finished or the run failed.
type MsgRunDone struct {
	Report *report.Report
	Err    error
}

// MsgCorpusChanged is sent in watch mode before a re-run.
type MsgCorpusChanged struct {
	Files []string
}

// MsgWatchFailed is sent when the corpus can no longer be watched.
type MsgWatchFailed struct {
	Err error
}
