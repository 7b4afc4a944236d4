package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Task is a unit of work shown behind a spinner. The returned string is the
// success line.
type Task func(ctx context.Context) (string, error)

// RunTask runs task, drawing a spinner on stderr when the terminal is
// interactive. Pressing q or ctrl+c cancels the task's context.
// In non-interactive mode the task simply runs.
func RunTask(ctx context.Context, message string, task Task) (string, error) {
	if !IsInteractive() {
		return task(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newTaskModel(message, cancel),
		tea.WithOutput(os.Stderr),
		tea.WithContext(ctx))

	var (
		result  string
		taskErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, taskErr = task(ctx)
		program.Send(taskDoneMsg{result: result, err: taskErr})
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		<-finished
		return result, fmt.Errorf("spinner failed: %w", err)
	}
	<-finished
	return result, taskErr
}
