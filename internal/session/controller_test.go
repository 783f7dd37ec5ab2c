package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alekzandar/vibereader/internal/db"
	"github.com/Alekzandar/vibereader/internal/domain"
)

type fakeSurface struct {
	mu    sync.Mutex
	calls []string
	shown []db.Session
}

func (s *fakeSurface) Show(_ context.Context, sess db.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "show")
	s.shown = append(s.shown, sess)
	return nil
}

func (s *fakeSurface) Hide(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "hide")
	return nil
}

type launch struct {
	sessionID int64
	mode      domain.Mode
}

type fakeLauncher struct {
	launches []launch
	err      error
}

func (l *fakeLauncher) Launch(_ context.Context, sessionID int64, mode domain.Mode) error {
	if l.err != nil {
		return l.err
	}
	l.launches = append(l.launches, launch{sessionID, mode})
	return nil
}

type fakeNotifier struct {
	kinds    []domain.ErrorKind
	messages []string
}

func (n *fakeNotifier) Notice(kind domain.ErrorKind, message string) {
	n.kinds = append(n.kinds, kind)
	n.messages = append(n.messages, message)
}

type fixture struct {
	store    *db.Store
	surface  *fakeSurface
	launcher *fakeLauncher
	notifier *fakeNotifier
	ctrl     *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "session.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:    store,
		surface:  &fakeSurface{},
		launcher: &fakeLauncher{},
		notifier: &fakeNotifier{},
	}
	f.ctrl = NewController(store, f.surface, f.launcher, f.notifier)
	return f
}

func (f *fixture) sessions(t *testing.T) []db.Session {
	t.Helper()
	sessions, err := f.store.Sessions(context.Background())
	require.NoError(t, err)
	return sessions
}

func (f *fixture) assertSingleActive(t *testing.T) {
	t.Helper()
	active := 0
	for _, s := range f.sessions(t) {
		if s.Active() {
			active++
		}
	}
	assert.LessOrEqual(t, active, 1)
}

func TestStartSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.ctrl.StartSession(ctx, "  Dune  ")
	require.NoError(t, err)

	active, err := f.ctrl.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, id, active.ID)
	assert.Equal(t, "Dune", active.Title)
	assert.Nil(t, active.EndTime)

	assert.Equal(t, []string{"show"}, f.surface.calls)
	assert.Equal(t, "Dune", f.surface.shown[0].Title)
}

func TestStartSessionRejectsEmptyTitle(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.StartSession(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidTitle)
	assert.Empty(t, f.sessions(t))
	assert.Empty(t, f.surface.calls)
}

func TestStartSessionWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)
	before := f.sessions(t)

	_, err = f.ctrl.StartSession(ctx, "Emma")
	require.ErrorIs(t, err, domain.ErrSessionAlreadyActive)

	assert.Equal(t, before, f.sessions(t), "rejected start must not write")
	assert.Equal(t, []string{"show"}, f.surface.calls)
	f.assertSingleActive(t)
}

func TestStopSession(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	f := newFixture(t)
	f.ctrl = NewController(f.store, f.surface, f.launcher, f.notifier, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	id, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	require.NoError(t, f.ctrl.StopSession(ctx))

	sess, err := f.store.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, db.StatusInactive, sess.Status)
	require.NotNil(t, sess.EndTime)
	assert.True(t, sess.EndTime.Equal(now))
	assert.Equal(t, []string{"show", "hide"}, f.surface.calls)
}

func TestStopSessionWithoutActive(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.StopSession(context.Background())
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Empty(t, f.sessions(t))
	assert.Empty(t, f.surface.calls)
}

func TestStopSessionTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)

	require.NoError(t, f.ctrl.StopSession(ctx))
	after := f.sessions(t)

	err = f.ctrl.StopSession(ctx)
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Equal(t, after, f.sessions(t), "second stop must not write")
	assert.Equal(t, []string{"show", "hide"}, f.surface.calls)
}

func TestSessionLifecycleIsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.StopSession(ctx))

	second, err := f.ctrl.StartSession(ctx, "Emma")
	require.NoError(t, err)
	assert.Greater(t, second, first, "a new session gets a new id")

	old, err := f.store.Session(ctx, first)
	require.NoError(t, err)
	assert.False(t, old.Active(), "inactive sessions are never reactivated")
	f.assertSingleActive(t)
}

func TestHandleActionDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ctrl.HandleAction(ctx, Request{Action: domain.ActionStart, Title: "Dune"})
	require.NoError(t, err)
	assert.NotZero(t, res.SessionID)
	assert.Equal(t, "Dune", res.Title)

	res, err = f.ctrl.HandleAction(ctx, Request{Action: domain.ActionDefineWord})
	require.NoError(t, err)
	assert.True(t, res.Launched)
	assert.Equal(t, domain.ModeDefineWord, res.Mode)

	res, err = f.ctrl.HandleAction(ctx, Request{Action: domain.ActionSaveQuote, Inline: true})
	require.NoError(t, err)
	assert.False(t, res.Launched)
	assert.Equal(t, domain.ModeSaveQuote, res.Mode)

	require.Len(t, f.launcher.launches, 1)
	assert.Equal(t, launch{res.SessionID, domain.ModeDefineWord}, f.launcher.launches[0])

	_, err = f.ctrl.HandleAction(ctx, Request{Action: domain.ActionStop})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.messages)
}

func TestHandleActionCaptureWithoutSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []domain.Action{domain.ActionDefineWord, domain.ActionSaveQuote} {
		_, err := f.ctrl.HandleAction(ctx, Request{Action: action})
		require.ErrorIs(t, err, domain.ErrNoActiveSession)
	}

	assert.Empty(t, f.launcher.launches)
	assert.Equal(t, []domain.ErrorKind{domain.KindNoActiveSession, domain.KindNoActiveSession}, f.notifier.kinds)
	assert.Equal(t, "Error: No Active Session", f.notifier.messages[0])
}

func TestHandleActionOutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Surface taps may arrive in any order; each is gated on the store.
	sequence := []Request{
		{Action: domain.ActionStop},
		{Action: domain.ActionSaveQuote},
		{Action: domain.ActionStart, Title: "Dune"},
		{Action: domain.ActionStart, Title: "Dune again"},
		{Action: domain.ActionDefineWord},
		{Action: domain.ActionStop},
		{Action: domain.ActionStop},
		{Action: domain.ActionDefineWord},
	}
	var errs []domain.ErrorKind
	for _, req := range sequence {
		_, err := f.ctrl.HandleAction(ctx, req)
		errs = append(errs, domain.KindOf(err))
		f.assertSingleActive(t)
	}

	assert.Equal(t, []domain.ErrorKind{
		domain.KindNoActiveSession,
		domain.KindNoActiveSession,
		"",
		domain.KindSessionAlreadyActive,
		"",
		"",
		domain.KindNoActiveSession,
		domain.KindNoActiveSession,
	}, errs)
	assert.Len(t, f.launcher.launches, 1)
	assert.Len(t, f.sessions(t), 1)
}

func TestHandleActionUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.HandleAction(context.Background(), Request{Action: "pause"})
	require.ErrorIs(t, err, domain.ErrUnknownAction)
	assert.Equal(t, []domain.ErrorKind{domain.KindUnknownAction}, f.notifier.kinds)
}

func TestHandleActionLaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = domain.ErrCaptureUnavailable
	ctx := context.Background()

	_, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)

	_, err = f.ctrl.HandleAction(ctx, Request{Action: domain.ActionSaveQuote})
	require.ErrorIs(t, err, domain.ErrCaptureUnavailable)
	assert.Equal(t, []domain.ErrorKind{domain.KindCaptureUnavailable}, f.notifier.kinds)
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resumed, err := f.ctrl.Resume(ctx)
	require.NoError(t, err)
	assert.Nil(t, resumed)
	assert.Empty(t, f.surface.calls)

	id, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)

	// A fresh controller over the same store, as after a daemon restart.
	surface := &fakeSurface{}
	ctrl := NewController(f.store, surface, f.launcher, f.notifier)
	resumed, err = ctrl.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, id, resumed.ID)
	assert.Equal(t, []string{"show"}, surface.calls)
}

type raceStore struct {
	Store
}

// FinishSession simulates another process stopping the session first.
func (raceStore) FinishSession(context.Context, int64, time.Time) (bool, error) {
	return false, nil
}

func TestStopSessionLostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.StartSession(ctx, "Dune")
	require.NoError(t, err)

	ctrl := NewController(raceStore{f.store}, f.surface, f.launcher, f.notifier)
	err = ctrl.StopSession(ctx)
	require.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.Equal(t, []string{"show"}, f.surface.calls)
}

type brokenStore struct {
	Store
}

func (brokenStore) ActiveSession(context.Context) (*db.Session, error) {
	return nil, errors.New("database is locked")
}

func TestStoreReadFailure(t *testing.T) {
	f := newFixture(t)
	ctrl := NewController(brokenStore{f.store}, f.surface, f.launcher, f.notifier)

	_, err := ctrl.HandleAction(context.Background(), Request{Action: domain.ActionDefineWord})
	require.Error(t, err)
	assert.Empty(t, f.launcher.launches)
	require.Len(t, f.notifier.messages, 1)
}
