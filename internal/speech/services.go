package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alekzandar/vibereader/internal/ports"
)

const (
	RecognizerDeepgram = "deepgram"
	RecognizerText     = "text"
)

// Config selects and configures the speech adapters.
type Config struct {
	Recognizer    string
	ListenTimeout time.Duration
	SynthCommand  string
	FFmpegCommand string
	Audio         ports.AudioConfig
	Deepgram      DeepgramConfig
}

// Services opens recognizers and synthesizers for capture runs.
type Services struct {
	cfg    Config
	prompt func(context.Context) (string, error)
	logger *slog.Logger
}

// NewServices builds the adapters described by cfg. prompt supplies typed
// transcripts when the text recognizer is selected.
func NewServices(cfg Config, prompt func(context.Context) (string, error), logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{cfg: cfg, prompt: prompt, logger: logger}
}

func (s *Services) OpenRecognizer(ctx context.Context) (ports.Recognizer, error) {
	switch s.cfg.Recognizer {
	case RecognizerDeepgram:
		return NewStreamRecognizer(
			NewFFmpegCapture(s.cfg.FFmpegCommand),
			NewDeepgram(s.cfg.Deepgram),
			StreamConfig{
				Audio: s.cfg.Audio,
				Streaming: ports.StreamingConfig{
					SampleRate:     s.cfg.Audio.SampleRate,
					Channels:       s.cfg.Audio.Channels,
					Encoding:       "linear16",
					InterimResults: true,
				},
				ListenTimeout: s.cfg.ListenTimeout,
			},
			s.logger,
		), nil
	case RecognizerText, "":
		if s.prompt == nil {
			return nil, fmt.Errorf("text recognizer has no input")
		}
		return NewPromptRecognizer(s.prompt), nil
	default:
		return nil, fmt.Errorf("unknown recognizer %q", s.cfg.Recognizer)
	}
}

func (s *Services) OpenSynthesizer(ctx context.Context) (ports.Synthesizer, error) {
	if s.cfg.SynthCommand == "" || s.cfg.SynthCommand == "none" {
		return SilentSynthesizer{}, nil
	}
	return NewCommandSynthesizer(s.cfg.SynthCommand)
}

var _ ports.SpeechServices = (*Services)(nil)
