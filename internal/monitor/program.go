package monitor

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Program is a running monitor and the stream.Handler feeding it
type Program struct {
	*Handler
	tea *tea.Program
}

// NewProgram prepares the monitor on the alternate screen. Cancelling ctx
// stops it.
func NewProgram(ctx context.Context, m Model, opts ...tea.ProgramOption) *Program {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	return &Program{Handler: NewHandler(p), tea: p}
}

// Run blocks until the user quits or the context ends. A context
// cancellation is not an error.
func (p *Program) Run() error {
	_, err := p.tea.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Quit asks the program to exit
func (p *Program) Quit() {
	p.tea.Quit()
}
