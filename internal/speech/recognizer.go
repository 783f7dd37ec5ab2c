// Package speech adapts speech-to-text and text-to-speech services to the
// capture pipeline's Recognizer and Synthesizer ports.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ports"
)

// StreamConfig controls one listening window of a StreamRecognizer.
type StreamConfig struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
	// ListenTimeout bounds how long the microphone stays open waiting for
	// the end of an utterance.
	ListenTimeout time.Duration
	// Grace is how long to wait for trailing results after the microphone
	// closes.
	Grace time.Duration
}

// StreamRecognizer captures microphone audio and streams it to a
// transcription provider until the provider marks the end of speech.
type StreamRecognizer struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      StreamConfig
	logger   *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStreamRecognizer returns a recognizer that opens audio and a stream for
// every Listen call.
func NewStreamRecognizer(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg StreamConfig, logger *slog.Logger) *StreamRecognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = 15 * time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 4 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamRecognizer{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		closed:   make(chan struct{}),
	}
}

// Listen records one utterance and returns its transcript.
func (r *StreamRecognizer) Listen(ctx context.Context) (string, error) {
	select {
	case <-r.closed:
		return "", errors.New("recognizer closed")
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	stream, err := r.provider.StartStreaming(ctx, r.cfg.Streaming)
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}
	mic, err := r.audio.Start(ctx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		return "", fmt.Errorf("start audio: %w", err)
	}

	agg := &transcriptAggregator{}
	speechEnded := make(chan struct{})
	eventsDone := make(chan struct{})
	go collectTranscripts(stream, agg, speechEnded, eventsDone)

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pumpAudio(mic, stream, r.cfg.ChunkSize)
	}()

	timer := time.NewTimer(r.cfg.ListenTimeout)
	defer timer.Stop()

	select {
	case <-speechEnded:
	case <-eventsDone:
	case <-timer.C:
		r.logger.Debug("listen window elapsed")
	case <-ctx.Done():
	}

	if err := mic.Stop(); err != nil {
		r.logger.Debug("stop audio capture", "error", err)
	}
	_ = stream.CloseSend()
	streamErr := waitForStream(stream, r.cfg.Grace)
	<-eventsDone
	if err := <-pumpDone; err != nil {
		r.logger.Debug("audio pump stopped", "error", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := agg.Text()
	if text == "" && streamErr != nil {
		return "", domain.Wrap(domain.KindRecognitionFailed, streamErr)
	}
	return text, nil
}

// Close aborts any Listen in progress. Later Listen calls fail.
func (r *StreamRecognizer) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// pumpAudio copies microphone chunks into the stream until either side
// stops.
func pumpAudio(mic ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := mic.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}
	}
}

func waitForStream(stream ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- stream.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = stream.Close()
		return <-done
	}
}

// collectTranscripts feeds events into agg, signals speechEnded on the first
// speech-final result, and closes done when the stream's events end.
func collectTranscripts(stream ports.StreamingSession, agg *transcriptAggregator, speechEnded, done chan struct{}) {
	defer close(done)

	ended := false
	for ev := range stream.Events() {
		agg.Add(ev)
		if !ended && ev.Kind == domain.TranscriptKindFinal && ev.IsSpeechFinal {
			ended = true
			close(speechEnded)
		}
	}
}

type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func (a *transcriptAggregator) Add(ev domain.TranscriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if ev.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
	}
}

// Text joins the final results, falling back to the latest partial when
// nothing was finalized.
func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return a.lastSpoken
	}
	return joined
}
