// Package tui renders a live view of a ranking run with BubbleTea: one row
// per method with its progress, then the top pages once the run is done.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/papapumpkin/linkrank/internal/report"
)

// topPages is how many pages the finished view lists per method.
const topPages = 10

// methodState tracks one row of the view.
type methodState struct {
	name      string
	running   bool
	done      bool
	visits    int
	total     int
	iteration int
	delta     float64
	elapsed   time.Duration
	section   report.Section
}

// KeyMap holds the view's key bindings.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Model is the BubbleTea model of a run.
type Model struct {
	Corpus string
	Pages  int
	Links  int
	Width  int
	Keys   KeyMap

	// Watching keeps the view open after a run so the next one can be
	// shown.
	Watching bool

	Spinner spinner.Model
	methods []*methodState
	report  *report.Report
	err     error
	// watchErr ends watch mode; it survives resets.
	watchErr error
	runs    int
	changed []string
	done    bool
}

// NewModel creates the view for a corpus and the methods that will run.
func NewModel(corpus string, pages, links int, methods []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorBlue)

	m := Model{
		Corpus:  corpus,
		Pages:   pages,
		Links:   links,
		Width:   80,
		Keys:    DefaultKeyMap(),
		Spinner: s,
	}
	m.reset(methods)
	return m
}

func (m *Model) reset(methods []string) {
	m.methods = m.methods[:0]
	for _, name := range methods {
		m.methods = append(m.methods, &methodState{name: name})
	}
	m.report = nil
	m.err = nil
	m.done = false
}

func (m *Model) method(name string) *methodState {
	for _, ms := range m.methods {
		if ms.name == name {
			return ms
		}
	}
	ms := &methodState{name: name}
	m.methods = append(m.methods, ms)
	return ms
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case tea.KeyMsg:
		if key.Matches(msg, m.Keys.Quit) {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case MsgMethodStart:
		m.method(msg.Method).running = true

	case MsgSampleProgress:
		ms := m.method(report.MethodSample)
		ms.running = true
		ms.visits, ms.total = msg.Done, msg.Total

	case MsgSolveStep:
		ms := m.method(report.MethodIterate)
		ms.running = true
		ms.iteration, ms.delta = msg.Step.Iteration, msg.Step.Delta

	case MsgMethodDone:
		ms := m.method(msg.Section.Method)
		ms.running, ms.done = false, true
		ms.elapsed = msg.Elapsed
		ms.section = msg.Section

	case MsgRunDone:
		m.report, m.err = msg.Report, msg.Err
		m.done = true
		m.runs++
		for _, ms := range m.methods {
			ms.running = false
		}
		if !m.Watching {
			return m, tea.Quit
		}

	case MsgWatchFailed:
		m.Watching = false
		m.watchErr = msg.Err
		if m.done {
			return m, tea.Quit
		}

	case MsgCorpusChanged:
		names := make([]string, 0, len(m.methods))
		for _, ms := range m.methods {
			names = append(names, ms.name)
		}
		m.reset(names)
		m.changed = msg.Files
	}
	return m, nil
}

// Report returns the last finished report and its error, if any.
func (m Model) Report() (*report.Report, error) {
	return m.report, m.err
}

// WatchErr returns the error that stopped watch mode, if any.
func (m Model) WatchErr() error {
	return m.watchErr
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusBar())
	b.WriteString("\n\n")

	if len(m.changed) > 0 {
		b.WriteString(styleWarn.Render("↻ " + strings.Join(m.changed, ", ")))
		b.WriteString("\n\n")
	}

	for _, ms := range m.methods {
		b.WriteString(m.methodRow(ms))
		b.WriteByte('\n')
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styleFailed.Render(iconFailed + " " + m.err.Error()))
		b.WriteByte('\n')
	}
	if m.watchErr != nil {
		b.WriteString("\n")
		b.WriteString(styleFailed.Render(iconFailed + " watch: " + m.watchErr.Error()))
		b.WriteByte('\n')
	}
	if m.done && m.report != nil {
		b.WriteString(m.topTable())
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render(m.Keys.Quit.Help().Key + " " + m.Keys.Quit.Help().Desc))
	return b.String()
}

func (m Model) statusBar() string {
	text := styleStatusLabel.Render("linkrank") + "  " + m.Corpus +
		fmt.Sprintf("  %s pages · %s links", humanize.Comma(int64(m.Pages)), humanize.Comma(int64(m.Links)))
	if m.runs > 1 {
		text += fmt.Sprintf("  · run %d", m.runs)
	}
	return styleStatusBar.Width(max(m.Width, lipgloss.Width(text)+2)).Render(text)
}

func (m Model) methodRow(ms *methodState) string {
	var icon, detail string
	switch {
	case ms.done:
		icon = styleDone.Render(iconDone)
		detail = m.doneDetail(ms)
	case ms.running:
		icon = m.Spinner.View()
		detail = m.runningDetail(ms)
	case m.err != nil:
		icon = styleFailed.Render(iconFailed)
	default:
		icon = styleDetail.Render(iconWaiting)
		detail = "waiting"
	}
	return fmt.Sprintf("%s %s %s", icon, styleMethod.Render(ms.name), styleDetail.Render(detail))
}

func (m Model) runningDetail(ms *methodState) string {
	switch ms.name {
	case report.MethodSample:
		if ms.total == 0 {
			return "starting"
		}
		return renderProgressBar(ms.visits, ms.total, 24) +
			fmt.Sprintf(" %s/%s", humanize.Comma(int64(ms.visits)), humanize.Comma(int64(ms.total)))
	case report.MethodIterate:
		if ms.iteration == 0 {
			return "starting"
		}
		return fmt.Sprintf("iteration %d, delta %.2g", ms.iteration, ms.delta)
	default:
		return "working"
	}
}

func (m Model) doneDetail(ms *methodState) string {
	elapsed := ms.elapsed.Round(time.Millisecond)
	switch ms.name {
	case report.MethodSample:
		return fmt.Sprintf("%s samples in %s", humanize.Comma(int64(ms.section.Samples)), elapsed)
	case report.MethodIterate:
		return fmt.Sprintf("%d iterations in %s", ms.section.Iterations, elapsed)
	default:
		return fmt.Sprintf("done in %s", elapsed)
	}
}

// topTable lists the highest-ranked pages of each section side by side.
func (m Model) topTable() string {
	var cols []string
	for _, sec := range m.report.Sections {
		var b strings.Builder
		b.WriteString(styleMethod.Render(sec.Method))
		b.WriteByte('\n')
		for _, e := range sec.Distribution().Top(topPages) {
			fmt.Fprintf(&b, "%s %s\n", styleRank.Render(fmt.Sprintf("%.4f", e.Rank)), e.Page)
		}
		cols = append(cols, lipgloss.NewStyle().MarginRight(4).Render(b.String()))
	}
	return "\n" + lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// renderProgressBar creates a filled/empty bar showing done/total progress.
func renderProgressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	ratio := min(float64(done)/float64(total), 1)
	filled := int(ratio * float64(width))

	doneStyle := lipgloss.NewStyle().Foreground(colorSuccess)
	emptyStyle := lipgloss.NewStyle().Foreground(colorMuted)
	return doneStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))
}
