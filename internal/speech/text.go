package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Alekzandar/vibereader/internal/ports"
)

// ErrNoTranscript is returned by a TextRecognizer whose queue is exhausted.
var ErrNoTranscript = errors.New("no transcript queued")

// TextRecognizer replays queued transcripts instead of listening. When the
// queue is empty it asks its source, if any. It backs typed capture in the
// CLI, TUI and MCP surfaces.
type TextRecognizer struct {
	mu     sync.Mutex
	queue  []string
	source func(context.Context) (string, error)
	closed bool
}

// NewPromptRecognizer asks source for every transcript.
func NewPromptRecognizer(source func(context.Context) (string, error)) *TextRecognizer {
	return &TextRecognizer{source: source}
}

// NewTextRecognizer queues transcripts for successive Listen calls.
func NewTextRecognizer(transcripts ...string) *TextRecognizer {
	return &TextRecognizer{queue: append([]string(nil), transcripts...)}
}

// Push appends a transcript for a later Listen call.
func (r *TextRecognizer) Push(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, text)
}

func (r *TextRecognizer) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", errors.New("recognizer closed")
	}
	if len(r.queue) > 0 {
		text := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return strings.TrimSpace(text), nil
	}
	source := r.source
	r.mu.Unlock()

	if source == nil {
		return "", ErrNoTranscript
	}
	text, err := source(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (r *TextRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Typed is a SpeechServices that hears Text once and plays nothing back.
type Typed struct {
	Text string
}

func (t Typed) OpenRecognizer(context.Context) (ports.Recognizer, error) {
	return NewTextRecognizer(t.Text), nil
}

func (Typed) OpenSynthesizer(context.Context) (ports.Synthesizer, error) {
	return SilentSynthesizer{}, nil
}
