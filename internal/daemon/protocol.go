// Package daemon carries control actions between surfaces and the session
// controller over a Unix socket using NDJSON: one JSON object per line.
package daemon

import (
	"time"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
)

// Command names accepted by the daemon besides the control actions.
const (
	CmdStatus    = "status"
	CmdSubscribe = "subscribe"
)

// Event names streamed to subscribers.
const (
	EventSurface = "surface"
	EventSession = "session"
	EventCapture = "capture"
	EventNotice  = "notice"
)

// SurfaceText is the body shown on the control surface while a session runs.
const SurfaceText = "Session in progress..."

// Command is sent from a client to the daemon. Cmd is either a command name
// or a control action identifier.
type Command struct {
	Cmd    string `json:"cmd"`
	Title  string `json:"title,omitempty"`
	Inline bool   `json:"inline,omitempty"`
	// Capture marks a subscriber able to run capture pipelines.
	Capture bool `json:"capture,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	SessionID int64  `json:"sessionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Active    *bool  `json:"active,omitempty"`
	StartTime int64  `json:"startTime,omitempty"` // unix ms
}

// Err rebuilds the daemon's error, or returns nil for an OK response.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return domain.FromWire(domain.ErrorKind(r.Kind), r.Error)
}

// Started returns the session start time carried by a status response.
func (r Response) Started() time.Time {
	return time.UnixMilli(r.StartTime)
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event     string `json:"event"`
	SessionID int64  `json:"sessionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Visible   *bool  `json:"visible,omitempty"`
	Transient *bool  `json:"transient,omitempty"`
}

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool { return &b }

// SurfaceHeading is the control surface title for a session.
func SurfaceHeading(title string) string {
	return "Vibe Reader: " + title
}

func surfaceShown(sess db.Session) Event {
	return Event{
		Event:     EventSurface,
		SessionID: sess.ID,
		Title:     sess.Title,
		Text:      SurfaceText,
		Visible:   BoolPtr(true),
	}
}

func surfaceHidden() Event {
	return Event{Event: EventSurface, Visible: BoolPtr(false)}
}

func sessionChanged(id int64, status db.Status) Event {
	return Event{Event: EventSession, SessionID: id, Status: string(status)}
}

func captureRequested(id int64, mode domain.Mode) Event {
	return Event{Event: EventCapture, SessionID: id, Mode: string(mode)}
}

func notice(kind domain.ErrorKind, message string) Event {
	return Event{Event: EventNotice, Message: message, Kind: string(kind), Transient: BoolPtr(true)}
}

// errorResponse reports err with its kind.
func errorResponse(err error) Response {
	return Response{OK: false, Error: err.Error(), Kind: string(domain.KindOf(err))}
}
