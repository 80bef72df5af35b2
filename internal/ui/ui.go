// Package ui prints styled progress and summaries for the linkrank CLI.
// All output goes to stderr so stdout carries only the report.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/papapumpkin/linkrank/internal/store"
)

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorAccent  = lipgloss.Color("#FFD700")
	colorSuccess = lipgloss.Color("#00E676")
	colorDanger  = lipgloss.Color("#FF5252")
	colorMuted   = lipgloss.Color("#8C8C8C")
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleErr     = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(colorMuted)
	styleBanner  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 2)
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Printer writes human-facing status lines.
type Printer struct {
	w   io.Writer
	now func() time.Time
}

// New returns a Printer on os.Stderr.
func New() *Printer {
	return NewWriter(os.Stderr)
}

// NewWriter returns a Printer on w.
func NewWriter(w io.Writer) *Printer {
	return &Printer{w: w, now: time.Now}
}

// Banner prints the title shown when a long-running service starts.
func (p *Printer) Banner() {
	title := styleTitle.Render("LINKRANK") + "  " + styleDim.Render("sampled and iterated PageRank")
	fmt.Fprintln(p.w, styleBanner.Render(title))
}

// GraphLoaded reports a freshly built link graph.
func (p *Printer) GraphLoaded(corpus string, pages, links int) {
	fmt.Fprintf(p.w, "%s %s %s\n",
		styleTitle.Render("◆ corpus"),
		corpus,
		styleDim.Render(fmt.Sprintf("(%s pages, %s links)", humanize.Comma(int64(pages)), humanize.Comma(int64(links)))))
}

func (p *Printer) MethodStart(method string) {
	fmt.Fprintf(p.w, "%s %s\n", styleTitle.Render("▶ "+method), styleDim.Render("working..."))
}

// MethodDone reports a finished method with a short detail such as the
// sample or iteration count.
func (p *Printer) MethodDone(method string, elapsed time.Duration, detail string) {
	fmt.Fprintf(p.w, "%s %s\n",
		styleOK.Render("✓ "+method),
		styleDim.Render(fmt.Sprintf("done (%s, %s)", elapsed.Round(time.Millisecond), detail)))
}

// Samples formats a sample count for MethodDone.
func Samples(n int) string {
	return humanize.Comma(int64(n)) + " samples"
}

// Iterations formats an iteration count and final delta for MethodDone.
func Iterations(n int, delta float64) string {
	return fmt.Sprintf("%s iterations, delta %.2g", humanize.Comma(int64(n)), delta)
}

func (p *Printer) Saved(runID, where string) {
	fmt.Fprintf(p.w, "%s %s %s\n", styleOK.Render("✓ saved"), runID, styleDim.Render(where))
}

// ValidateResult prints the structural summary of a corpus.
func (p *Printer) ValidateResult(corpus string, pages, links int, dangling []string) {
	fmt.Fprintf(p.w, "%s: %s page(s), %s link(s)\n",
		styleOK.Render(fmt.Sprintf("✓ corpus %q", corpus)),
		humanize.Comma(int64(pages)), humanize.Comma(int64(links)))
	if len(dangling) == 0 {
		return
	}
	fmt.Fprintf(p.w, "%s\n", styleWarn.Render(fmt.Sprintf("⚠ %d dangling page(s):", len(dangling))))
	for _, d := range dangling {
		fmt.Fprintf(p.w, "  %s %s\n", styleWarn.Render("•"), d)
	}
}

// RunList prints saved runs, newest first.
func (p *Printer) RunList(runs []store.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(p.w, styleDim.Render("(no saved runs)"))
		return
	}
	fmt.Fprintln(p.w, styleHeading.Render("saved runs"))
	for _, r := range runs {
		fmt.Fprintf(p.w, "  %s  %-20s %s %s\n",
			styleTitle.Render(r.ID),
			r.Corpus,
			strings.Join(r.Methods, ","),
			styleDim.Render(fmt.Sprintf("%s pages, d=%.2f, %s",
				humanize.Comma(int64(r.Pages)), r.Damping, humanize.RelTime(r.Created, p.now(), "ago", "from now"))))
	}
}

// CorpusChanged reports that a watched corpus was modified.
func (p *Printer) CorpusChanged(files []string) {
	fmt.Fprintf(p.w, "\n%s %s\n", styleWarn.Render("↻ corpus changed"), styleDim.Render(strings.Join(files, ", ")))
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s%s\n", styleErr.Render("error: "), msg)
}

func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, "%s%s\n", styleWarn.Render("warning: "), msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, styleDim.Render(msg))
}
