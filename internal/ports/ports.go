// Package ports declares the interfaces between the session core and its
// adapters: speech services, control surfaces and audio capture.
package ports

import (
	"context"
	"io"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
)

// Recognizer turns one utterance into text.
type Recognizer interface {
	// Listen blocks until a final transcript is available. An empty string
	// with a nil error means nothing was heard.
	Listen(ctx context.Context) (string, error)
	Close() error
}

// Synthesizer plays text back to the user.
type Synthesizer interface {
	// Speak starts playback and returns a channel that receives the
	// completion result once. Callers may ignore it.
	Speak(ctx context.Context, text string) <-chan error
	Close() error
}

// SpeechServices opens the per-run speech handles used by a capture pipeline.
type SpeechServices interface {
	OpenRecognizer(ctx context.Context) (Recognizer, error)
	OpenSynthesizer(ctx context.Context) (Synthesizer, error)
}

// ControlSurface is the persistent indicator shown while a session is active.
type ControlSurface interface {
	Show(ctx context.Context, session db.Session) error
	Hide(ctx context.Context) error
}

// Launcher starts a capture pipeline somewhere able to run it.
type Launcher interface {
	Launch(ctx context.Context, sessionID int64, mode domain.Mode) error
}

// Notifier shows short, transient messages to the user.
type Notifier interface {
	Notice(kind domain.ErrorKind, message string)
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}
