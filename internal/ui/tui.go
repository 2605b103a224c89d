// ABOUTME: TUI wrapper around the bubbletea program
// ABOUTME: Forwards stats and scene updates into the model without blocking
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI owns the bubbletea program for the demo dashboard.
type TUI struct {
	program *tea.Program
	updates chan tea.Msg
	control *Control
}

// New creates a TUI. Start must be called to run it.
func New(info Info, control *Control) *TUI {
	t := &TUI{
		updates: make(chan tea.Msg, 16),
		control: control,
	}
	t.program = tea.NewProgram(NewModel(info, control), tea.WithAltScreen())
	return t
}

// Start runs the program until the user quits. Blocking; call from the
// main goroutine.
func (t *TUI) Start() error {
	go func() {
		for msg := range t.updates {
			t.program.Send(msg)
		}
	}()
	_, err := t.program.Run()
	return err
}

// PushStats refreshes the counter panel. A full update channel drops the
// refresh rather than stalling the caller.
func (t *TUI) PushStats(msg StatsMsg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// PushScene refreshes the scene toggles.
func (t *TUI) PushScene(msg SceneMsg) {
	select {
	case t.updates <- msg:
	default:
	}
}

// Stop quits the program.
func (t *TUI) Stop() {
	t.program.Quit()
}

// Control returns the key event channels.
func (t *TUI) Control() *Control {
	return t.control
}
