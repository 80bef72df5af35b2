package tui

import "github.com/charmbracelet/lipgloss"

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan, primary accent
	colorAccent  = lipgloss.Color("#FFD700") // Gold, attention
	colorSuccess = lipgloss.Color("#00E676") // Green, completed
	colorDanger  = lipgloss.Color("#FF5252") // Red, failures
	colorMuted   = lipgloss.Color("#636363") // Gray, de-emphasized
	colorWhite   = lipgloss.Color("#EEEEEE") // Off-white, primary text
	colorSurface = lipgloss.Color("#1E1E2E") // Dark surface, status bar bg
	colorBlue    = lipgloss.Color("#5B8DEF") // Blue, working
)

// Status icons for method states.
const (
	iconDone    = "✓"
	iconFailed  = "✗"
	iconWaiting = "·"
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(colorSurface).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	styleStatusLabel = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	styleMethod = lipgloss.NewStyle().Bold(true).Width(10)
	styleDetail = lipgloss.NewStyle().Foreground(colorMuted)
	styleDone   = lipgloss.NewStyle().Foreground(colorSuccess)
	styleFailed = lipgloss.NewStyle().Foreground(colorDanger)
	styleWarn   = lipgloss.NewStyle().Foreground(colorAccent)
	styleRank   = lipgloss.NewStyle().Foreground(colorBlue)
	styleFooter = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)
