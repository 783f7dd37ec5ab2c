package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Alekzandar/vibereader/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - sessions, words, quotes with the single-active partial index
const currentSchemaVersion = 1

// DefaultPollInterval is how often observers check for writes made by other
// processes sharing the database file.
const DefaultPollInterval = 2 * time.Second

// DBExecutor allows helpers to run against either *sql.DB or *sql.Tx.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides read/write access to the vibereader SQLite database.
// It is the single source of truth for which session is active.
type Store struct {
	db           *sql.DB
	pollInterval time.Duration

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets how often observers poll for external writes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "vibereader", "vibereader.sqlite")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "vibereader", "vibereader.sqlite")
}

// Open opens (creating if needed) the database at path and applies the schema.
//
// The connection is configured with WAL, a 5 second busy timeout, foreign
// keys, and immediate transactions so the active-session check and insert
// cannot interleave with another writer.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps PRAGMA
	// data_version meaningful for change detection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{
		db:           db,
		pollInterval: DefaultPollInterval,
		watchers:     make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint")
}

// InsertSession writes a new session row and returns its id. Inserting a
// second active row fails with domain.ErrSessionAlreadyActive.
func (s *Store) InsertSession(ctx context.Context, title string, start time.Time, status Status) (int64, error) {
	id, err := insertSession(ctx, s.db, title, start, status)
	if err != nil {
		return 0, err
	}
	s.notify()
	return id, nil
}

func insertSession(ctx context.Context, ex DBExecutor, title string, start time.Time, status Status) (int64, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO sessions (book_title, start_time, status) VALUES (?, ?, ?)`,
		title, start.UnixMilli(), string(status))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, domain.ErrSessionAlreadyActive
		}
		return 0, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("insert session: %w", err))
	}
	return res.LastInsertId()
}

// ErrInvalidTransition is returned for any status change other than
// active to inactive.
var ErrInvalidTransition = errors.New("session status can only move from active to inactive")

// UpdateSessionStatus moves an active session to status. Inactive rows are
// never reactivated: the only accepted status is StatusInactive, and a row
// that is not active is left alone with domain.ErrNoActiveSession.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID int64, status Status, endTime *time.Time) error {
	if status != StatusInactive {
		return fmt.Errorf("session %d to %q: %w", sessionID, status, ErrInvalidTransition)
	}
	var end any
	if endTime != nil {
		end = endTime.UnixMilli()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, end_time = ? WHERE session_id = ? AND status = 'active'`,
		string(status), end, sessionID)
	if err != nil {
		return domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("update session %d: %w", sessionID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNoActiveSession
	}
	s.notify()
	return nil
}

// StartSession inserts a new active session unless one is already active.
// The check and the insert run in one transaction.
func (s *Store) StartSession(ctx context.Context, title string, start time.Time) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	existing, err := activeSession(ctx, tx)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		return Session{}, domain.ErrSessionAlreadyActive
	}

	id, err := insertSession(ctx, tx, title, start, StatusActive)
	if err != nil {
		return Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return Session{}, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("commit: %w", err))
	}
	s.notify()

	return Session{
		ID:        id,
		Title:     title,
		StartTime: time.UnixMilli(start.UnixMilli()),
		Status:    StatusActive,
	}, nil
}

// FinishSession marks an active session inactive. It reports false, and
// writes nothing, when the row is not active.
func (s *Store) FinishSession(ctx context.Context, sessionID int64, end time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'inactive', end_time = ? WHERE session_id = ? AND status = 'active'`,
		end.UnixMilli(), sessionID)
	if err != nil {
		return false, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("finish session %d: %w", sessionID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		s.notify()
	}
	return n > 0, nil
}

// ActiveSession returns the active session, or nil when there is none.
func (s *Store) ActiveSession(ctx context.Context) (*Session, error) {
	return activeSession(ctx, s.db)
}

func activeSession(ctx context.Context, ex DBExecutor) (*Session, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT session_id, book_title, start_time, end_time, status
		FROM sessions
		WHERE status = 'active'
		LIMIT 1
	`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}

// Session returns the session with the given id, or nil if it does not exist.
func (s *Store) Session(ctx context.Context, sessionID int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, book_title, start_time, end_time, status
		FROM sessions
		WHERE session_id = ?
	`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}

// Sessions returns all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, book_title, start_time, end_time, status
		FROM sessions
		ORDER BY start_time DESC, session_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var start int64
	var end sql.NullInt64
	var status string
	if err := row.Scan(&sess.ID, &sess.Title, &start, &end, &status); err != nil {
		return Session{}, err
	}
	sess.StartTime = time.UnixMilli(start)
	sess.Status = Status(status)
	if end.Valid {
		t := time.UnixMilli(end.Int64)
		sess.EndTime = &t
	}
	return sess, nil
}

// InsertWord writes a captured word and returns its id.
func (s *Store) InsertWord(ctx context.Context, sessionID int64, term, definition string, capturedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO words (session_id, term, definition, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, term, definition, capturedAt.UnixMilli())
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("insert word: %w", err))
	}
	s.notify()
	return res.LastInsertId()
}

// Words returns all captured words, newest first.
func (s *Store) Words(ctx context.Context) ([]Word, error) {
	return s.queryWords(ctx, `
		SELECT word_id, session_id, term, definition, timestamp, is_favorite
		FROM words
		ORDER BY timestamp DESC, word_id DESC
	`)
}

// WordsForSession returns the words captured in one session, newest first.
func (s *Store) WordsForSession(ctx context.Context, sessionID int64) ([]Word, error) {
	return s.queryWords(ctx, `
		SELECT word_id, session_id, term, definition, timestamp, is_favorite
		FROM words
		WHERE session_id = ?
		ORDER BY timestamp DESC, word_id DESC
	`, sessionID)
}

func (s *Store) queryWords(ctx context.Context, query string, args ...any) ([]Word, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	words := []Word{}
	for rows.Next() {
		var w Word
		var ts int64
		if err := rows.Scan(&w.ID, &w.SessionID, &w.Term, &w.Definition, &ts, &w.Favorite); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		w.CapturedAt = time.UnixMilli(ts)
		words = append(words, w)
	}
	return words, rows.Err()
}

// InsertQuote writes a captured quote and returns its id.
func (s *Store) InsertQuote(ctx context.Context, sessionID int64, content string, capturedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (session_id, content, timestamp) VALUES (?, ?, ?)`,
		sessionID, content, capturedAt.UnixMilli())
	if err != nil {
		return 0, domain.Wrap(domain.KindStoreWriteFailed, fmt.Errorf("insert quote: %w", err))
	}
	s.notify()
	return res.LastInsertId()
}

// Quotes returns all captured quotes, newest first.
func (s *Store) Quotes(ctx context.Context) ([]Quote, error) {
	return s.queryQuotes(ctx, `
		SELECT quote_id, session_id, content, timestamp, is_favorite
		FROM quotes
		ORDER BY timestamp DESC, quote_id DESC
	`)
}

// QuotesForSession returns the quotes captured in one session, newest first.
func (s *Store) QuotesForSession(ctx context.Context, sessionID int64) ([]Quote, error) {
	return s.queryQuotes(ctx, `
		SELECT quote_id, session_id, content, timestamp, is_favorite
		FROM quotes
		WHERE session_id = ?
		ORDER BY timestamp DESC, quote_id DESC
	`, sessionID)
}

func (s *Store) queryQuotes(ctx context.Context, query string, args ...any) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := []Quote{}
	for rows.Next() {
		var q Quote
		var ts int64
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Content, &ts, &q.Favorite); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.CapturedAt = time.UnixMilli(ts)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
