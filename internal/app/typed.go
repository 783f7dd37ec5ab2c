package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// TypedInput feeds transcripts typed into the TUI to a text recognizer.
// Pass Prompt as the recognizer's source.
type TypedInput struct {
	lines chan string
}

// NewTypedInput creates an unbuffered transcript channel.
func NewTypedInput() *TypedInput {
	return &TypedInput{lines: make(chan string)}
}

// Prompt blocks until the user submits a transcript.
func (t *TypedInput) Prompt(ctx context.Context) (string, error) {
	select {
	case line := <-t.lines:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *TypedInput) submitCmd(ctx context.Context, text string) tea.Cmd {
	return func() tea.Msg {
		select {
		case t.lines <- text:
		case <-ctx.Done():
		}
		return nil
	}
}
