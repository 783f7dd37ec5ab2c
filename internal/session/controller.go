// Package session implements the session controller: the single place that
// starts and stops reading sessions and dispatches control actions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/ports"
)

// Store is the part of db.Store the controller needs.
type Store interface {
	ActiveSession(ctx context.Context) (*db.Session, error)
	StartSession(ctx context.Context, title string, start time.Time) (db.Session, error)
	FinishSession(ctx context.Context, sessionID int64, end time.Time) (bool, error)
}

// Request is one control action as delivered by a surface.
type Request struct {
	Action domain.Action
	Title  string
	// Inline asks for a capture launch to be returned to the caller rather
	// than handed to the Launcher.
	Inline bool
}

// Result describes what an accepted action did.
type Result struct {
	Action    domain.Action
	SessionID int64
	Title     string
	Mode      domain.Mode
	Launched  bool
}

// Controller holds no session state of its own; every decision re-reads the
// store.
type Controller struct {
	store    Store
	surface  ports.ControlSurface
	launcher ports.Launcher
	notifier ports.Notifier
	now      func() time.Time
	logger   *slog.Logger

	// mu orders surface updates with the store writes that caused them.
	mu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController wires a controller to its store and surfaces.
func NewController(store Store, surface ports.ControlSurface, launcher ports.Launcher, notifier ports.Notifier, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		surface:  surface,
		launcher: launcher,
		notifier: notifier,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession creates the active session and shows the control surface.
func (c *Controller) StartSession(ctx context.Context, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, domain.ErrInvalidTitle
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.store.StartSession(ctx, title, c.now())
	if err != nil {
		return 0, err
	}
	c.logger.Info("session started", "session_id", sess.ID, "title", sess.Title)

	if err := c.surface.Show(ctx, sess); err != nil {
		c.logger.Warn("show control surface", "session_id", sess.ID, "error", err)
	}
	return sess.ID, nil
}

// StopSession ends the active session and hides the surface. With no active
// session it writes nothing and returns domain.ErrNoActiveSession.
func (c *Controller) StopSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.ActiveSession(ctx)
	if err != nil {
		return fmt.Errorf("read active session: %w", err)
	}
	if active == nil {
		return domain.ErrNoActiveSession
	}

	changed, err := c.store.FinishSession(ctx, active.ID, c.now())
	if err != nil {
		return err
	}
	if !changed {
		// Another process stopped it between the read and the update.
		return domain.ErrNoActiveSession
	}
	c.logger.Info("session stopped", "session_id", active.ID)

	if err := c.surface.Hide(ctx); err != nil {
		c.logger.Warn("hide control surface", "session_id", active.ID, "error", err)
	}
	return nil
}

// Status returns the active session, or nil.
func (c *Controller) Status(ctx context.Context) (*db.Session, error) {
	return c.store.ActiveSession(ctx)
}

// Resume shows the surface again for a session left active by a previous
// run. It reports the resumed session, if any.
func (c *Controller) Resume(ctx context.Context) (*db.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.store.ActiveSession(ctx)
	if err != nil || active == nil {
		return nil, err
	}
	c.logger.Info("resuming session", "session_id", active.ID, "title", active.Title)
	if err := c.surface.Show(ctx, *active); err != nil {
		return active, fmt.Errorf("show control surface: %w", err)
	}
	return active, nil
}

// HandleAction dispatches one control action. Rejections are also reported
// to the notifier as transient notices.
func (c *Controller) HandleAction(ctx context.Context, req Request) (Result, error) {
	log := c.logger.With("action", req.Action)
	log.Debug("control action")

	res, err := c.dispatch(ctx, req)
	if err != nil {
		log.Info("control action rejected", "error", err)
		if c.notifier != nil {
			c.notifier.Notice(domain.KindOf(err), err.Error())
		}
		return res, err
	}
	return res, nil
}

func (c *Controller) dispatch(ctx context.Context, req Request) (Result, error) {
	res := Result{Action: req.Action}

	switch req.Action {
	case domain.ActionStart:
		id, err := c.StartSession(ctx, req.Title)
		if err != nil {
			return res, err
		}
		res.SessionID, res.Title = id, strings.TrimSpace(req.Title)
		return res, nil

	case domain.ActionStop:
		return res, c.StopSession(ctx)

	case domain.ActionDefineWord, domain.ActionSaveQuote:
		mode, _ := req.Action.Mode()
		active, err := c.store.ActiveSession(ctx)
		if err != nil {
			return res, fmt.Errorf("read active session: %w", err)
		}
		if active == nil {
			return res, domain.ErrNoActiveSession
		}
		res.SessionID, res.Title, res.Mode = active.ID, active.Title, mode
		if req.Inline {
			return res, nil
		}
		if err := c.launcher.Launch(ctx, active.ID, mode); err != nil {
			return res, err
		}
		res.Launched = true
		c.logger.Info("capture launched", "session_id", active.ID, "mode", mode)
		return res, nil

	default:
		return res, domain.Wrap(domain.KindUnknownAction, fmt.Errorf("%q", req.Action))
	}
}
