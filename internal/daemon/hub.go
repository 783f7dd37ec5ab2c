package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
)

const subscriberBuffer = 32

// Hub fans daemon events out to subscribed clients. It is the daemon's
// control surface, capture launcher and notifier.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	subs    []*subscriber
	nextID  int
	surface *Event // last surface event, replayed to new subscribers
	leaseID int64  // session the surface is showing, 0 when hidden
}

type subscriber struct {
	id      int
	capture bool
	events  chan Event
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger}
}

// Subscribe streams events to w until ctx is done or a write fails. It
// blocks for the lifetime of the subscription.
func (h *Hub) Subscribe(ctx context.Context, w io.Writer, capture bool) error {
	sub := h.add(capture)
	defer h.remove(sub)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.done:
			return nil
		case ev := <-sub.events:
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) add(capture bool) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{
		id:      h.nextID,
		capture: capture,
		events:  make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
	}
	if h.surface != nil {
		sub.events <- *h.surface
	}
	h.subs = append(h.subs, sub)
	h.logger.Debug("subscriber added", "subscriber", sub.id, "capture", capture)
	return sub
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(sub.done)
			h.logger.Debug("subscriber removed", "subscriber", sub.id)
			return
		}
	}
}

// Subscribers reports how many clients are attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast must be called with h.mu held.
func (h *Hub) broadcast(ev Event) {
	for _, sub := range h.subs {
		h.send(sub, ev)
	}
}

func (h *Hub) send(sub *subscriber, ev Event) bool {
	select {
	case sub.events <- ev:
		return true
	default:
		h.logger.Warn("dropping event for slow subscriber", "subscriber", sub.id, "event", ev.Event)
		return false
	}
}

// Show displays the control surface for sess.
func (h *Hub) Show(_ context.Context, sess db.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := surfaceShown(sess)
	h.surface = &ev
	h.leaseID = sess.ID
	h.broadcast(sessionChanged(sess.ID, db.StatusActive))
	h.broadcast(ev)
	return nil
}

// Hide dismisses the control surface.
func (h *Hub) Hide(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev := surfaceHidden()
	if h.leaseID != 0 {
		h.broadcast(sessionChanged(h.leaseID, db.StatusInactive))
	}
	h.surface = nil
	h.leaseID = 0
	h.broadcast(ev)
	return nil
}

// Visible reports the session the surface currently shows.
func (h *Hub) Visible() (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaseID, h.leaseID != 0
}

// Launch asks the most recently attached capture client to run a pipeline.
func (h *Hub) Launch(_ context.Context, sessionID int64, mode domain.Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.subs) - 1; i >= 0; i-- {
		sub := h.subs[i]
		if !sub.capture {
			continue
		}
		if h.send(sub, captureRequested(sessionID, mode)) {
			return nil
		}
	}
	return domain.ErrCaptureUnavailable
}

// Notice broadcasts a transient notice.
func (h *Hub) Notice(kind domain.ErrorKind, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast(notice(kind, message))
}
