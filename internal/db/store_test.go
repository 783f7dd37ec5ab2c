package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alekzandar/vibereader/internal/domain"
)

// openTestStore creates a store backed by a temp file so WAL and the
// single-active index behave as they do in production.
func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.sqlite"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpenSetsSchemaVersion(t *testing.T) {
	store := openTestStore(t)

	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var fk int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestStartSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	sess, err := store.StartSession(ctx, "Dune", start)
	require.NoError(t, err)
	assert.NotZero(t, sess.ID)
	assert.Equal(t, "Dune", sess.Title)
	assert.True(t, sess.Active())
	assert.Nil(t, sess.EndTime)

	active, err := store.ActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
	assert.True(t, active.StartTime.Equal(start))
}

func TestStartSessionRejectsSecondActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.StartSession(ctx, "Dune", time.Now())
	require.NoError(t, err)

	_, err = store.StartSession(ctx, "Emma", time.Now())
	require.ErrorIs(t, err, domain.ErrSessionAlreadyActive)
	assert.Equal(t, 1, countRows(t, store, "sessions"))
}

func TestInsertSessionEnforcesSingleActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.InsertSession(ctx, "Dune", time.Now(), StatusActive)
	require.NoError(t, err)

	_, err = store.InsertSession(ctx, "Emma", time.Now(), StatusActive)
	require.ErrorIs(t, err, domain.ErrSessionAlreadyActive)

	// Inactive rows are unconstrained.
	_, err = store.InsertSession(ctx, "Emma", time.Now(), StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, store, "sessions"))
}

func TestFinishSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.StartSession(ctx, "Dune", time.Now())
	require.NoError(t, err)

	end := time.UnixMilli(1_700_000_500_000)
	changed, err := store.FinishSession(ctx, sess.ID, end)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := store.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusInactive, got.Status)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(end))

	changed, err = store.FinishSession(ctx, sess.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "second finish must not transition again")

	got, err = store.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.EndTime.Equal(end), "end time must not move")

	active, err := store.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestUpdateSessionStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.InsertSession(ctx, "Dune", time.Now(), StatusActive)
	require.NoError(t, err)

	end := time.Now()
	require.NoError(t, store.UpdateSessionStatus(ctx, id, StatusInactive, &end))

	got, err := store.Session(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active())
	require.NotNil(t, got.EndTime)
}

func TestUpdateSessionStatusNeverReactivates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.StartSession(ctx, "Dune", time.Now())
	require.NoError(t, err)
	changed, err := store.FinishSession(ctx, sess.ID, time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	err = store.UpdateSessionStatus(ctx, sess.ID, StatusActive, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	end := time.Now()
	err = store.UpdateSessionStatus(ctx, sess.ID, StatusInactive, &end)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)

	got, err := store.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, got.Status)
	require.NotNil(t, got.EndTime)

	active, err := store.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSessionMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Session(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	_, err := store.InsertSession(ctx, "Old", base, StatusInactive)
	require.NoError(t, err)
	_, err = store.InsertSession(ctx, "New", base.Add(time.Hour), StatusInactive)
	require.NoError(t, err)
	_, err = store.InsertSession(ctx, "Middle", base.Add(time.Minute), StatusActive)
	require.NoError(t, err)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "New", sessions[0].Title)
	assert.Equal(t, "Middle", sessions[1].Title)
	assert.Equal(t, "Old", sessions[2].Title)
}

func TestWordsAndQuotes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	a, err := store.InsertSession(ctx, "A", base, StatusInactive)
	require.NoError(t, err)
	b, err := store.InsertSession(ctx, "B", base, StatusActive)
	require.NoError(t, err)

	_, err = store.InsertWord(ctx, a, "ephemeral", "(adjective) lasting for a short time", base)
	require.NoError(t, err)
	_, err = store.InsertWord(ctx, b, "laconic", "(adjective) using few words", base.Add(time.Second))
	require.NoError(t, err)
	_, err = store.InsertQuote(ctx, b, "a fine morning", base.Add(2*time.Second))
	require.NoError(t, err)

	words, err := store.Words(ctx)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "laconic", words[0].Term)
	assert.False(t, words[0].Favorite)

	words, err = store.WordsForSession(ctx, a)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "ephemeral", words[0].Term)
	assert.True(t, words[0].CapturedAt.Equal(base))

	quotes, err := store.QuotesForSession(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, quotes)

	quotes, err = store.Quotes(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "a fine morning", quotes[0].Content)
	assert.Equal(t, b, quotes[0].SessionID)
}

func TestInsertWordUnknownSession(t *testing.T) {
	store := openTestStore(t)

	_, err := store.InsertWord(context.Background(), 99, "x", "y", time.Now())
	require.ErrorIs(t, err, domain.ErrStoreWriteFailed)
}

func TestCascadeDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.InsertSession(ctx, "A", time.Now(), StatusInactive)
	require.NoError(t, err)
	_, err = store.InsertWord(ctx, id, "x", "y", time.Now())
	require.NoError(t, err)
	_, err = store.InsertQuote(ctx, id, "z", time.Now())
	require.NoError(t, err)

	_, err = store.db.Exec("DELETE FROM sessions WHERE session_id = ?", id)
	require.NoError(t, err)
	assert.Zero(t, countRows(t, store, "words"))
	assert.Zero(t, countRows(t, store, "quotes"))
}
