// Package config loads vibereader's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure of config.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Dictionary DictionaryConfig `yaml:"dictionary"`
	Speech     SpeechConfig     `yaml:"speech"`
	Deepgram   DeepgramConfig   `yaml:"deepgram"`
	Audio      AudioConfig      `yaml:"audio"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type DaemonConfig struct {
	Socket string `yaml:"socket"`
}

type DictionaryConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	Recognizer    string        `yaml:"recognizer"` // "deepgram" | "text"
	ListenTimeout time.Duration `yaml:"listen_timeout"`
	SynthCommand  string        `yaml:"synth_command"` // "none" disables playback
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBase     string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	FFmpegCommand string `yaml:"ffmpeg_command"`
	InputFormat   string `yaml:"input_format"`
	InputDevice   string `yaml:"input_device"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
	File  string `yaml:"file"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         filepath.Join(dataDir(), "vibereader.sqlite"),
			PollInterval: 2 * time.Second,
		},
		Daemon: DaemonConfig{
			Socket: filepath.Join(dataDir(), "vibereader.sock"),
		},
		Dictionary: DictionaryConfig{
			BaseURL: "https://api.dictionaryapi.dev/",
			Timeout: 10 * time.Second,
		},
		Speech: SpeechConfig{
			Recognizer:    "text",
			ListenTimeout: 15 * time.Second,
			SynthCommand:  "espeak",
		},
		Deepgram: DeepgramConfig{
			APIBase:     "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			FFmpegCommand: "ffmpeg",
			InputFormat:   "pulse",
			InputDevice:   "default",
			SampleRate:    16000,
			Channels:      1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/vibereader/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "vibereader", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vibereader", "config.yaml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "vibereader")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "vibereader")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write saves cfg as YAML, creating the directory if needed.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Path = envOrDefault("VIBEREADER_DB", c.Database.Path)
	c.Daemon.Socket = envOrDefault("VIBEREADER_SOCKET", c.Daemon.Socket)
	c.Dictionary.BaseURL = envOrDefault("VIBEREADER_DICTIONARY_URL", c.Dictionary.BaseURL)
	c.Speech.Recognizer = envOrDefault("VIBEREADER_RECOGNIZER", c.Speech.Recognizer)
	c.Speech.SynthCommand = envOrDefault("VIBEREADER_SYNTH_COMMAND", c.Speech.SynthCommand)
	c.Log.File = envOrDefault("VIBEREADER_LOG_FILE", c.Log.File)
	c.Log.Level = envOrDefault("VIBEREADER_LOG_LEVEL", c.Log.Level)

	c.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", c.Deepgram.APIKey)
	c.Deepgram.APIBase = envOrDefault("DEEPGRAM_API_BASE", c.Deepgram.APIBase)
	c.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", c.Deepgram.Model)
	c.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", c.Deepgram.Language)
	c.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", c.Deepgram.SmartFormat)

	c.Audio.FFmpegCommand = envOrDefault("VIBEREADER_FFMPEG_COMMAND", c.Audio.FFmpegCommand)
	c.Audio.InputFormat = envOrDefault("VIBEREADER_AUDIO_INPUT_FORMAT", c.Audio.InputFormat)
	c.Audio.InputDevice = envOrDefault("VIBEREADER_AUDIO_INPUT_DEVICE", c.Audio.InputDevice)
	c.Audio.SampleRate = envOrDefaultInt("VIBEREADER_SAMPLE_RATE", c.Audio.SampleRate)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Speech.Recognizer {
	case "deepgram", "text":
	default:
		errs = append(errs, fmt.Errorf("speech.recognizer: unknown recognizer %q", c.Speech.Recognizer))
	}
	if c.Speech.Recognizer == "deepgram" && strings.TrimSpace(c.Deepgram.APIKey) == "" {
		errs = append(errs, errors.New("deepgram.api_key: required for the deepgram recognizer"))
	}
	if c.Dictionary.Timeout <= 0 {
		errs = append(errs, errors.New("dictionary.timeout: must be positive"))
	}
	if c.Speech.ListenTimeout <= 0 {
		errs = append(errs, errors.New("speech.listen_timeout: must be positive"))
	}
	if c.Database.PollInterval <= 0 {
		errs = append(errs, errors.New("database.poll_interval: must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path: required"))
	}
	if c.Daemon.Socket == "" {
		errs = append(errs, errors.New("daemon.socket: required"))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		errs = append(errs, errors.New("audio: sample_rate and channels must be positive"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
