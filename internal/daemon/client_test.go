package daemon

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/Alekzandar/vibereader/internal/domain"
)

// startMockDaemon creates a Unix socket that accepts one connection,
// reads a command, and writes back a canned response.
func startMockDaemon(t *testing.T, response Response) (string, <-chan Command, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	received := make(chan Command, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd Command
		if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
			return
		}
		received <- cmd

		data, _ := json.Marshal(response)
		data = append(data, '\n')
		conn.Write(data)
	}()

	return sockPath, received, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientSendCommand(t *testing.T) {
	resp := Response{OK: true, SessionID: 3, Title: "Dune"}

	sockPath, received, cleanup := startMockDaemon(t, resp)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	got, err := client.SendCommand(Command{Cmd: "start", Title: "Dune"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.OK {
		t.Error("ok = false, want true")
	}
	if got.SessionID != 3 {
		t.Errorf("sessionId = %d, want 3", got.SessionID)
	}
	if cmd := <-received; cmd.Cmd != "start" || cmd.Title != "Dune" {
		t.Errorf("daemon received %+v", cmd)
	}
}

func TestDoReturnsRejection(t *testing.T) {
	sockPath, _, cleanup := startMockDaemon(t, errorResponse(domain.ErrNoActiveSession))
	defer cleanup()

	_, err := Do(sockPath, Command{Cmd: "stop"})
	if !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("err = %v, want no active session", err)
	}
}

func TestClientConnectFailure(t *testing.T) {
	_, err := Connect("/nonexistent/path/vibereader.sock")
	if err == nil {
		t.Error("expected error connecting to nonexistent socket")
	}
}

func TestSocketPathEnvOverride(t *testing.T) {
	t.Setenv("VIBEREADER_SOCKET", "/tmp/vr-test.sock")
	if got := SocketPath(); got != "/tmp/vr-test.sock" {
		t.Errorf("socket path = %q", got)
	}
}

// startMockEventStream creates a daemon that sends a subscribe response
// then streams events.
func startMockEventStream(t *testing.T, events []Event) (string, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read subscribe command
		var cmd Command
		if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
			return
		}

		resp, _ := json.Marshal(Response{OK: true})
		conn.Write(append(resp, '\n'))

		for _, ev := range events {
			data, _ := json.Marshal(ev)
			conn.Write(append(data, '\n'))
		}
	}()

	return sockPath, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientReadEvents(t *testing.T) {
	events := []Event{
		{Event: EventSurface, SessionID: 1, Title: "Dune", Text: SurfaceText, Visible: BoolPtr(true)},
		{Event: EventCapture, SessionID: 1, Mode: "define_word"},
	}

	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(true); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev1, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 1: %v", err)
	}
	if ev1.Event != EventSurface || ev1.Visible == nil || !*ev1.Visible || ev1.Title != "Dune" {
		t.Errorf("event1 = %+v", ev1)
	}

	ev2, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 2: %v", err)
	}
	if ev2.Event != EventCapture || ev2.Mode != "define_word" {
		t.Errorf("event2 = %+v", ev2)
	}

	if _, err := client.ReadEvent(); !errors.Is(err, ErrClosed) {
		t.Errorf("read after stream closed = %v, want ErrClosed", err)
	}
}
