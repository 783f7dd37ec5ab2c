// Package capture runs the listen, verify or define, and save state machine
// launched by a capture action.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
	"github.com/Alekzandar/vibereader/internal/lookup"
	"github.com/Alekzandar/vibereader/internal/ports"
)

const (
	// LookupFailedDefinition is stored when the dictionary has no answer.
	LookupFailedDefinition = "Error: Could not find definition."
	// QuoteSavedNotice confirms a saved quote.
	QuoteSavedNotice = "Quote Saved!"
)

// Store is the part of db.Store the pipeline uses.
type Store interface {
	ActiveSession(ctx context.Context) (*db.Session, error)
	InsertWord(ctx context.Context, sessionID int64, term, definition string, capturedAt time.Time) (int64, error)
	InsertQuote(ctx context.Context, sessionID int64, content string, capturedAt time.Time) (int64, error)
}

// Dictionary looks up a single word.
type Dictionary interface {
	Lookup(ctx context.Context, word string) (lookup.Definition, error)
}

// Deps are the collaborators of a pipeline run.
type Deps struct {
	Store      Store
	Speech     ports.SpeechServices
	Dictionary Dictionary
	Notifier   ports.Notifier
	Observer   Observer
	Now        func() time.Time
	Logger     *slog.Logger
}

// Pipeline is one capture run for a verified active session.
type Pipeline struct {
	deps      Deps
	runID     string
	sessionID int64
	mode      domain.Mode
	logger    *slog.Logger
	snap      Snapshot
}

// Launch re-reads the active session and returns a pipeline for it. Nothing
// is acquired when sessionID is not the active session.
func Launch(ctx context.Context, deps Deps, sessionID int64, mode domain.Mode) (*Pipeline, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if !mode.Valid() {
		return nil, domain.Wrap(domain.KindUnknownAction, fmt.Errorf("mode %q", mode))
	}

	active, err := deps.Store.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("read active session: %w", err)
	}
	if active == nil || active.ID != sessionID {
		deps.Logger.Info("capture rejected", "session_id", sessionID, "mode", mode)
		if deps.Notifier != nil {
			deps.Notifier.Notice(domain.KindNoActiveSession, domain.KindNoActiveSession.Message())
		}
		return nil, domain.ErrNoActiveSession
	}

	runID := newRunID()
	return &Pipeline{
		deps:      deps,
		runID:     runID,
		sessionID: sessionID,
		mode:      mode,
		logger:    deps.Logger.With("run_id", runID, "session_id", sessionID, "mode", mode),
		snap:      Snapshot{RunID: runID, SessionID: sessionID, Mode: mode},
	}, nil
}

func newRunID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// RunID identifies this run in logs and snapshots.
func (p *Pipeline) RunID() string { return p.runID }

// SessionID is the session the run writes to.
func (p *Pipeline) SessionID() int64 { return p.sessionID }

// Mode is the capture mode of the run.
func (p *Pipeline) Mode() domain.Mode { return p.mode }

// Run drives the state machine until a terminal state. decisions carries
// Retry, Confirm and Dismiss; a closed channel counts as Dismiss. Speech
// handles are released on every return path.
func (p *Pipeline) Run(ctx context.Context, decisions <-chan Decision) (Outcome, error) {
	out := Outcome{RunID: p.runID}

	rec, err := p.openRecognizer(ctx, decisions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.finish(out), ctxErr
		}
		out.ErrKind = domain.KindRecognitionFailed
		return p.finish(out), err
	}
	defer closeQuietly(p.logger, "recognizer", rec)

	syn, err := p.deps.Speech.OpenSynthesizer(ctx)
	if err != nil {
		p.logger.Warn("open synthesizer, continuing without playback", "error", err)
		syn = silent{}
	}
	defer closeQuietly(p.logger, "synthesizer", syn)

	for {
		p.transition(Snapshot{State: StateListening})

		text, err := rec.Listen(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.finish(out), ctxErr
		}
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			if err != nil {
				p.logger.Info("recognition failed", "error", err)
			}
			p.fail(domain.KindRecognitionFailed)
			out.ErrKind = domain.KindRecognitionFailed

			if p.mode == domain.ModeSaveQuote {
				d, err := p.await(ctx, decisions, Retry, Dismiss)
				if err != nil {
					return p.finish(out), err
				}
				if d == Retry {
					out.ErrKind = ""
					continue
				}
				return p.finish(out), nil
			}
			if _, err := p.await(ctx, decisions, Confirm, Dismiss); err != nil {
				return p.finish(out), err
			}
			return p.finish(out), nil
		}

		out.Transcript = text
		switch p.mode {
		case domain.ModeSaveQuote:
			retry, err := p.verifyAndSave(ctx, decisions, syn, text, &out)
			if retry {
				continue
			}
			return p.finish(out), err
		default:
			return p.define(ctx, decisions, text, &out)
		}
	}
}

// openRecognizer acquires the recognizer. In SaveQuote mode a failure waits
// for Retry, which tries again, or Dismiss.
func (p *Pipeline) openRecognizer(ctx context.Context, decisions <-chan Decision) (ports.Recognizer, error) {
	for {
		rec, err := p.deps.Speech.OpenRecognizer(ctx)
		if err == nil {
			return rec, nil
		}
		p.logger.Warn("open recognizer", "error", err)
		p.fail(domain.KindRecognitionFailed)
		if p.mode != domain.ModeSaveQuote {
			return nil, domain.Wrap(domain.KindRecognitionFailed, err)
		}
		d, awaitErr := p.await(ctx, decisions, Retry, Dismiss)
		if awaitErr != nil {
			return nil, awaitErr
		}
		if d != Retry {
			return nil, domain.Wrap(domain.KindRecognitionFailed, err)
		}
	}
}

// verifyAndSave plays the transcript back and waits for Retry or Confirm.
func (p *Pipeline) verifyAndSave(ctx context.Context, decisions <-chan Decision, syn ports.Synthesizer, text string, out *Outcome) (retry bool, err error) {
	p.transition(Snapshot{State: StateVerifying, Transcript: text})
	syn.Speak(ctx, text)

	d, err := p.await(ctx, decisions, Retry, Confirm, Dismiss)
	if err != nil {
		return false, err
	}
	switch d {
	case Retry:
		return true, nil
	case Dismiss:
		return false, nil
	}

	p.transition(Snapshot{State: StateSaving, Transcript: text})
	id, err := p.deps.Store.InsertQuote(ctx, p.sessionID, text, p.deps.Now())
	if err != nil {
		p.logger.Error("save quote", "error", err)
		p.fail(domain.KindStoreWriteFailed)
		out.ErrKind = domain.KindStoreWriteFailed
		return false, wrapStoreErr(err)
	}
	out.QuoteID = id

	p.transition(Snapshot{State: StateDone, Transcript: text, Notice: QuoteSavedNotice})
	if p.deps.Notifier != nil {
		p.deps.Notifier.Notice("", QuoteSavedNotice)
	}
	p.logger.Info("quote saved", "quote_id", id)
	return false, nil
}

// define looks the transcript up once, writes it as the term with either the
// definition or the placeholder, then shows it until dismissed.
func (p *Pipeline) define(ctx context.Context, decisions <-chan Decision, term string, out *Outcome) (Outcome, error) {
	p.transition(Snapshot{State: StateDefining, Transcript: term, Pending: true})

	definition := LookupFailedDefinition
	def, err := p.deps.Dictionary.Lookup(ctx, LookupKey(term))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.finish(*out), ctxErr
	}
	if err != nil {
		p.logger.Info("lookup failed", "term", term, "kind", domain.KindOf(err), "error", err)
	} else {
		definition = def.String()
	}
	out.Definition = definition

	id, err := p.deps.Store.InsertWord(ctx, p.sessionID, term, definition, p.deps.Now())
	if err != nil {
		p.logger.Error("save word", "term", term, "error", err)
		p.fail(domain.KindStoreWriteFailed)
		out.ErrKind = domain.KindStoreWriteFailed
		return p.finish(*out), wrapStoreErr(err)
	}
	out.WordID = id
	p.logger.Info("word saved", "word_id", id, "term", term)

	p.transition(Snapshot{State: StateDefining, Transcript: term, Definition: definition})
	if _, err := p.await(ctx, decisions, Confirm, Dismiss); err != nil {
		return p.finish(*out), err
	}
	return p.finish(*out), nil
}

// await blocks until one of accept arrives. Other decisions are ignored and
// a closed channel counts as Dismiss.
func (p *Pipeline) await(ctx context.Context, decisions <-chan Decision, accept ...Decision) (Decision, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case d, ok := <-decisions:
			if !ok {
				d = Dismiss
			}
			for _, a := range accept {
				if d == a {
					return d, nil
				}
			}
			if !ok {
				// Dismiss was not accepted; nothing else can arrive.
				return Dismiss, nil
			}
			p.logger.Debug("decision ignored", "decision", d, "state", p.snap.State)
		}
	}
}

func (p *Pipeline) transition(s Snapshot) {
	s.RunID, s.SessionID, s.Mode = p.runID, p.sessionID, p.mode
	p.snap = s
	p.logger.Debug("capture state", "state", s.State)
	if p.deps.Observer != nil {
		p.deps.Observer.StateChanged(s)
	}
}

func (p *Pipeline) fail(kind domain.ErrorKind) {
	s := p.snap
	s.State, s.ErrKind, s.Pending = StateError, kind, false
	p.transition(s)
}

func (p *Pipeline) finish(out Outcome) Outcome {
	out.State = p.snap.State
	return out
}

func wrapStoreErr(err error) error {
	if errors.Is(err, domain.ErrStoreWriteFailed) {
		return err
	}
	return domain.Wrap(domain.KindStoreWriteFailed, err)
}

type closer interface{ Close() error }

func closeQuietly(logger *slog.Logger, what string, c closer) {
	if err := c.Close(); err != nil {
		logger.Debug("close "+what, "error", err)
	}
}

// LookupKey is the dictionary query for a spoken word: trimmed, NFC and
// lower case. The stored term keeps the transcript as heard.
func LookupKey(s string) string {
	// Casers carry state and must not be shared across goroutines.
	return cases.Lower(language.English).String(norm.NFC.String(strings.TrimSpace(s)))
}

type silent struct{}

func (silent) Speak(context.Context, string) <-chan error {
	done := make(chan error, 1)
	done <- nil
	return done
}

func (silent) Close() error { return nil }
