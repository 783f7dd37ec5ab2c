package app

import (
	"context"

	"github.com/Alekzandar/vibereader/internal/capture"
	"github.com/Alekzandar/vibereader/internal/daemon"
	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, status, capture actions)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Response daemon.Response
}

// ActionResponseMsg carries the daemon's answer to a control action.
type ActionResponseMsg struct {
	Action   domain.Action
	Response daemon.Response
	Err      error
}

// SessionsMsg carries the latest session list from the store.
type SessionsMsg struct {
	Sessions []db.Session
}

// ItemsMsg carries the latest captured words and quotes from the store.
type ItemsMsg struct {
	Items []db.Item
}

// CaptureStartedMsg is sent once a pipeline run is launched.
type CaptureStartedMsg struct {
	RunID     string
	SessionID int64
	Mode      domain.Mode
	decisions chan<- capture.Decision
	snapshots <-chan capture.Snapshot
	result    <-chan CaptureFinishedMsg
	cancel    context.CancelFunc
}

// CaptureSnapshotMsg carries one pipeline state transition.
type CaptureSnapshotMsg struct {
	Snapshot capture.Snapshot
}

// CaptureFinishedMsg is sent when a run ends or could not be launched.
type CaptureFinishedMsg struct {
	RunID   string
	Outcome capture.Outcome
	Err     error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct {
	seq int
}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
