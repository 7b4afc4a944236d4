package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// taskDoneMsg carries the result of the background task.
type taskDoneMsg struct {
	result string
	err    error
}

// taskModel shows a spinner and elapsed time until the task finishes.
type taskModel struct {
	spinner spinner.Model
	keys    KeyMap
	message string
	started time.Time
	now     func() time.Time
	cancel  context.CancelFunc

	done       bool
	cancelling bool
	result     string
	err        error
}

func newTaskModel(message string, cancel context.CancelFunc) taskModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return taskModel{
		spinner: s,
		keys:    DefaultKeyMap(),
		message: message,
		started: time.Now(),
		now:     time.Now,
		cancel:  cancel,
	}
}

// Init implements tea.Model.
func (m taskModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.cancelling {
			m.cancelling = true
			m.cancel()
		}
		return m, nil
	case taskDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m taskModel) View() string {
	if m.done {
		if m.err != nil {
			return ErrorStyle.Render(SymbolCross+" "+m.message) + "\n"
		}
		return SuccessStyle.Render(SymbolCheck+" "+m.result) + "\n"
	}

	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	status := fmt.Sprintf("%s %s %s", m.spinner.View(), m.message, MutedStyle.Render(elapsed.String()))
	if m.cancelling {
		return status + " " + WarningStyle.Render("cancelling...") + "\n"
	}
	return status + "  " + HelpStyle.Render(m.keys.HelpText()) + "\n"
}
