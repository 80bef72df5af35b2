package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Program is an alias for tea.Program, exposed so callers don't need
// to import bubbletea directly.
type Program = tea.Program

// NewProgram creates a BubbleTea program showing m.
func NewProgram(m Model, opts ...tea.ProgramOption) *Program {
	return tea.NewProgram(m, opts...)
}
