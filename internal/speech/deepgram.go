package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ports"
)

const defaultDeepgramBase = "https://api.deepgram.com/v1"

// DeepgramConfig controls the Deepgram websocket connection.
type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Deepgram implements ports.TranscriptionProvider over Deepgram's live
// listen endpoint.
type Deepgram struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
}

// NewDeepgram returns a provider with defaults filled in.
func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultDeepgramBase
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Deepgram{cfg: cfg, dialer: websocket.DefaultDialer}
}

// StartStreaming dials the listen endpoint and starts the read and write
// loops. The stream closes when ctx is cancelled.
func (d *Deepgram) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(d.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := listenURL(d.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, _, err := d.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect to deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:   conn,
		events: make(chan domain.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type deepgramStream struct {
	conn *websocket.Conn

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *deepgramStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	buf := append([]byte(nil), chunk...)
	select {
	case s.audio <- buf:
		return nil
	case <-s.done:
		if err := s.streamErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	}
}

func (s *deepgramStream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *deepgramStream) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *deepgramStream) Wait() error {
	<-s.done
	return s.streamErr()
}

func (s *deepgramStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.streamErr()
}

func (s *deepgramStream) streamErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first non-close failure.
func (s *deepgramStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *deepgramStream) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

func (s *deepgramStream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read deepgram event: %w", err))
			return
		}

		var msg listenMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if strings.EqualFold(msg.Type, "Error") {
			text := strings.TrimSpace(msg.Message)
			if text == "" {
				text = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(text))
			return
		}

		text := msg.transcript()
		if text == "" {
			continue
		}

		ev := domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: text, IsSpeechFinal: msg.SpeechFinal}
		if msg.IsFinal || msg.SpeechFinal {
			ev.Kind = domain.TranscriptKindFinal
		}
		s.emit(ev)
	}
}

// emit drops events nobody is reading rather than stalling the socket.
func (s *deepgramStream) emit(ev domain.TranscriptEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (m listenMessage) transcript() string {
	if len(m.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(m.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(m.Results.Channels) > 0 && len(m.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(m.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func listenURL(provider DeepgramConfig, stream ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(provider.APIBaseURL)
	if base == "" {
		base = defaultDeepgramBase
	}

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base url: %w", err)
	}

	if stream.Encoding == "" {
		stream.Encoding = "linear16"
	}
	if stream.SampleRate <= 0 {
		stream.SampleRate = 16000
	}
	if stream.Channels <= 0 {
		stream.Channels = 1
	}

	q := u.Query()
	q.Set("model", provider.Model)
	q.Set("encoding", stream.Encoding)
	q.Set("sample_rate", strconv.Itoa(stream.SampleRate))
	q.Set("channels", strconv.Itoa(stream.Channels))
	q.Set("interim_results", strconv.FormatBool(stream.InterimResults))
	q.Set("smart_format", strconv.FormatBool(provider.SmartFormat))
	// Endpointing lets a single spoken word end the utterance quickly.
	q.Set("endpointing", "300")
	if provider.Language != "" {
		q.Set("language", provider.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
