// ABOUTME: TUI program wrapper for the proxy
// ABOUTME: Feeds status snapshots to bubbletea and reports quit requests
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the status display
type TUI struct {
	program *tea.Program
	updates chan Snapshot
	quit    chan struct{}
}

// NewTUI creates a TUI showing initial until the first update
func NewTUI(initial Snapshot) *TUI {
	t := &TUI{
		updates: make(chan Snapshot, 10),
		quit:    make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(initial, t.quit), tea.WithAltScreen())
	return t
}

// Run blocks until the TUI exits
func (t *TUI) Run() error {
	go func() {
		for s := range t.updates {
			t.program.Send(snapshotMsg(s))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a snapshot without blocking
func (t *TUI) Update(s Snapshot) {
	select {
	case t.updates <- s:
	default:
	}
}

// Quit is signalled when the user asks to quit
func (t *TUI) Quit() <-chan struct{} {
	return t.quit
}

// Stop ends the program
func (t *TUI) Stop() {
	t.program.Quit()
}
