// Package db provides SQLite persistence for reading sessions and the words
// and quotes captured during them.
package db

import "time"

// Status is the lifecycle state of a session row.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Session represents a reading session.
type Session struct {
	ID        int64
	Title     string
	StartTime time.Time
	EndTime   *time.Time
	Status    Status
}

// Active reports whether the session is still in progress.
func (s Session) Active() bool {
	return s.Status == StatusActive
}

// Word is a term captured in define mode with its (possibly placeholder)
// definition.
type Word struct {
	ID         int64
	SessionID  int64
	Term       string
	Definition string
	CapturedAt time.Time
	Favorite   bool
}

// Quote is a passage captured in save-quote mode.
type Quote struct {
	ID         int64
	SessionID  int64
	Content    string
	CapturedAt time.Time
	Favorite   bool
}
