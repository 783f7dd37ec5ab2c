package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// TestLiveDaemonStartStop starts and stops a session on a running daemon
// while watching its event stream. It writes to the user's database, so it
// also needs VIBEREADER_LIVE_WRITE=1, and it leaves an existing session alone.
func TestLiveDaemonStartStop(t *testing.T) {
	sockPath := SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("daemon not running")
	}
	if os.Getenv("VIBEREADER_LIVE_WRITE") != "1" {
		t.Skip("set VIBEREADER_LIVE_WRITE=1 to write to the live database")
	}

	resp, err := Do(sockPath, Command{Cmd: CmdStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.Active != nil && *resp.Active {
		t.Skip("a session is already active")
	}

	evClient, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect events: %v", err)
	}
	defer evClient.Close()
	if err := evClient.Subscribe(false); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	got := make(chan Event, 16)
	go func() {
		defer close(got)
		for {
			ev, err := evClient.ReadEvent()
			if err != nil {
				return
			}
			got <- ev
		}
	}()

	resp, err = Do(sockPath, Command{Cmd: "start", Title: "live test"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	fmt.Printf("Started: sessionId=%d\n", resp.SessionID)

	if _, err := Do(sockPath, Command{Cmd: "stop"}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	fmt.Println("Stopped")

	counts := map[string]int{}
	timeout := time.After(2 * time.Second)
	for counts[EventSurface] < 2 {
		select {
		case ev, ok := <-got:
			if !ok {
				t.Fatal("event stream closed")
			}
			counts[ev.Event]++
		case <-timeout:
			t.Fatalf("expected shown and hidden surface events, got %v", counts)
		}
	}
	fmt.Printf("Event counts: %v\n", counts)
}
