package db

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// subscribe registers a wake channel that is signalled after local writes.
func (s *Store) subscribe() (int, <-chan struct{}) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch
	return id, ch
}

func (s *Store) unsubscribe(id int) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	delete(s.watchers, id)
}

// notify wakes every observer without blocking the writer.
func (s *Store) notify() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// dataVersion changes whenever another connection commits to the file.
func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// observe runs query now and again after every change, sending results that
// differ from the previous emission. The channel closes when ctx is done.
func observe[T any](ctx context.Context, s *Store, name string, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	id, wake := s.subscribe()

	go func() {
		defer close(out)
		defer s.unsubscribe(id)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var last T
		emitted := false
		emit := func() bool {
			v, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				slog.Debug("observe query failed", "query", name, "error", err)
				return true
			}
			if emitted && reflect.DeepEqual(v, last) {
				return true
			}
			select {
			case out <- v:
				last, emitted = v, true
				return true
			case <-ctx.Done():
				return false
			}
		}

		version, _ := s.dataVersion(ctx)
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				if !emit() {
					return
				}
			case <-ticker.C:
				v, err := s.dataVersion(ctx)
				if err != nil || v == version {
					continue
				}
				version = v
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}

// ObserveActiveSession emits the active session (nil when none) now and on
// every change.
func (s *Store) ObserveActiveSession(ctx context.Context) <-chan *Session {
	return observe(ctx, s, "active_session", s.ActiveSession)
}

// ObserveSessions emits all sessions, newest first.
func (s *Store) ObserveSessions(ctx context.Context) <-chan []Session {
	return observe(ctx, s, "sessions", s.Sessions)
}

// ObserveWords emits all words, newest first.
func (s *Store) ObserveWords(ctx context.Context) <-chan []Word {
	return observe(ctx, s, "words", s.Words)
}

// ObserveWordsForSession emits the words of one session, newest first.
func (s *Store) ObserveWordsForSession(ctx context.Context, sessionID int64) <-chan []Word {
	return observe(ctx, s, "session_words", func(ctx context.Context) ([]Word, error) {
		return s.WordsForSession(ctx, sessionID)
	})
}

// ObserveQuotes emits all quotes, newest first.
func (s *Store) ObserveQuotes(ctx context.Context) <-chan []Quote {
	return observe(ctx, s, "quotes", s.Quotes)
}

// ObserveQuotesForSession emits the quotes of one session, newest first.
func (s *Store) ObserveQuotesForSession(ctx context.Context, sessionID int64) <-chan []Quote {
	return observe(ctx, s, "session_quotes", func(ctx context.Context) ([]Quote, error) {
		return s.QuotesForSession(ctx, sessionID)
	})
}

// Items returns words and quotes merged newest first. A zero sessionID
// selects every session.
func (s *Store) Items(ctx context.Context, sessionID int64) ([]Item, error) {
	var (
		words  []Word
		quotes []Quote
		err    error
	)
	if sessionID == 0 {
		words, err = s.Words(ctx)
	} else {
		words, err = s.WordsForSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if sessionID == 0 {
		quotes, err = s.Quotes(ctx)
	} else {
		quotes, err = s.QuotesForSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return MergeItems(words, quotes), nil
}

// ObserveItems emits the unified word and quote list. A zero sessionID
// selects every session.
func (s *Store) ObserveItems(ctx context.Context, sessionID int64) <-chan []Item {
	return observe(ctx, s, "items", func(ctx context.Context) ([]Item, error) {
		return s.Items(ctx, sessionID)
	})
}
