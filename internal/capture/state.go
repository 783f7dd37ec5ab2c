package capture

import (
	"github.com/Alekzandar/vibereader/internal/domain"
)

// State is a capture pipeline state.
type State string

const (
	StateListening State = "listening"
	StateVerifying State = "verifying"
	StateDefining  State = "defining"
	StateSaving    State = "saving"
	StateDone      State = "done"
	StateError     State = "error"
)

// Decision is a user choice delivered to a running pipeline.
type Decision string

const (
	Retry   Decision = "retry"
	Confirm Decision = "confirm"
	Dismiss Decision = "dismiss"
)

// ParseDecision validates a wire decision.
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case Retry, Confirm, Dismiss:
		return d, true
	default:
		return "", false
	}
}

// Snapshot is what an observer sees after each transition.
type Snapshot struct {
	RunID      string
	SessionID  int64
	Mode       domain.Mode
	State      State
	Transcript string
	// Definition is set in Defining once the lookup has resolved.
	Definition string
	// Pending is true in Defining while the lookup is in flight.
	Pending bool
	ErrKind domain.ErrorKind
	Notice  string
}

// Observer receives snapshots in transition order.
type Observer interface {
	StateChanged(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) StateChanged(s Snapshot) { f(s) }

// Outcome summarizes a finished run.
type Outcome struct {
	RunID      string
	State      State
	Transcript string
	Definition string
	WordID     int64
	QuoteID    int64
	ErrKind    domain.ErrorKind
}

// Saved reports whether the run wrote a row.
func (o Outcome) Saved() bool {
	return o.WordID != 0 || o.QuoteID != 0
}
