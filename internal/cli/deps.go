package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Alekzandar/vibereader/internal/config"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/lookup"
	"github.com/Alekzandar/vibereader/internal/ports"
	"github.com/Alekzandar/vibereader/internal/speech"
)

func openStore(cfg *config.Config) (*db.Store, error) {
	store, err := db.Open(cfg.Database.Path, db.WithPollInterval(cfg.Database.PollInterval))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}

func newDictionary(cfg *config.Config) *lookup.Client {
	return lookup.NewClient(cfg.Dictionary.BaseURL, cfg.Dictionary.Timeout)
}

func speechConfig(cfg *config.Config) speech.Config {
	return speech.Config{
		Recognizer:    cfg.Speech.Recognizer,
		ListenTimeout: cfg.Speech.ListenTimeout,
		SynthCommand:  cfg.Speech.SynthCommand,
		FFmpegCommand: cfg.Audio.FFmpegCommand,
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Deepgram: speech.DeepgramConfig{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBase,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		},
	}
}

func newSpeech(cfg *config.Config, prompt func(context.Context) (string, error), logger *slog.Logger) *speech.Services {
	return speech.NewServices(speechConfig(cfg), prompt, logger)
}

// control sends one command to the configured daemon.
func control(cfg *config.Config) func(daemon.Command) (daemon.Response, error) {
	return func(cmd daemon.Command) (daemon.Response, error) {
		return daemon.Do(cfg.Daemon.Socket, cmd)
	}
}
