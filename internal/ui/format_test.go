package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Alekzandar/vibereader/internal/db"
)

func TestSessionLine(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(-10 * time.Minute)
	s := db.Session{ID: 3, Title: "Dune", StartTime: now.Add(-2 * time.Hour), EndTime: &end, Status: db.StatusInactive}

	assert.Equal(t, "#3  Dune  inactive  started 2 hours ago, lasted 1h50m", SessionLine(s, now))

	s.EndTime, s.Status = nil, db.StatusActive
	assert.Equal(t, "#3  Dune  active  started 2 hours ago", SessionLine(s, now))
}

func TestItemLine(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	word := db.WordItem{Word: db.Word{Term: "arrakis", Definition: "(noun) a desert planet", CapturedAt: now.Add(-time.Minute)}}
	assert.Equal(t, "word   arrakis: (noun) a desert planet  (1 minute ago)", ItemLine(word, now))

	quote := db.QuoteItem{Quote: db.Quote{Content: "Fear is\nthe mind-killer.", CapturedAt: now.Add(-3 * time.Second)}}
	assert.Equal(t, `quote  "Fear is the mind-killer."  (3 seconds ago)`, ItemLine(quote, now))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "40s", Duration(40*time.Second))
	assert.Equal(t, "12m", Duration(12*time.Minute+10*time.Second))
	assert.Equal(t, "1h05m", Duration(65*time.Minute))
}
