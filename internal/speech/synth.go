package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandSynthesizer speaks text by running an external program such as
// espeak or say with the text as its final argument.
type CommandSynthesizer struct {
	command string
	args    []string

	mu       sync.Mutex
	closed   bool
	inflight map[*exec.Cmd]struct{}
}

// NewCommandSynthesizer parses a command line like "espeak -s 150".
func NewCommandSynthesizer(commandLine string) (*CommandSynthesizer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("synthesizer command is empty")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("synthesizer %q: %w", fields[0], err)
	}
	return &CommandSynthesizer{
		command:  fields[0],
		args:     fields[1:],
		inflight: make(map[*exec.Cmd]struct{}),
	}, nil
}

// Speak starts playback and returns immediately. The channel receives the
// process result once.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- errors.New("synthesizer closed")
		return done
	}
	args := append(append([]string(nil), s.args...), text)
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		done <- fmt.Errorf("start %s: %w", s.command, err)
		return done
	}
	s.inflight[cmd] = struct{}{}
	s.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		delete(s.inflight, cmd)
		s.mu.Unlock()
		if err != nil && stderr.Len() > 0 {
			err = fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		done <- err
	}()
	return done
}

// Close kills any playback still running.
func (s *CommandSynthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for cmd := range s.inflight {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	return nil
}

// SilentSynthesizer completes every Speak call immediately.
type SilentSynthesizer struct{}

func (SilentSynthesizer) Speak(context.Context, string) <-chan error {
	done := make(chan error, 1)
	done <- nil
	return done
}

func (SilentSynthesizer) Close() error { return nil }
