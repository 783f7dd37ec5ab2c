package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Alekzandar/vibereader/internal/db"
)

// SessionLine renders a session for plain listings, e.g.
// "#3  Dune  active  started 5 minutes ago".
func SessionLine(s db.Session, now time.Time) string {
	line := fmt.Sprintf("#%d  %s  %s  started %s", s.ID, s.Title, s.Status, humanize.RelTime(s.StartTime, now, "ago", "from now"))
	if s.EndTime != nil {
		line += fmt.Sprintf(", lasted %s", Duration(s.EndTime.Sub(s.StartTime)))
	}
	return line
}

// ItemLine renders a captured word or quote on one line.
func ItemLine(item db.Item, now time.Time) string {
	when := humanize.RelTime(item.CapturedAt(), now, "ago", "from now")
	switch it := item.(type) {
	case db.WordItem:
		return fmt.Sprintf("word   %s: %s  (%s)", it.Word.Term, it.Word.Definition, when)
	case db.QuoteItem:
		return fmt.Sprintf("quote  %q  (%s)", oneLine(it.Quote.Content), when)
	default:
		return ""
	}
}

// Duration formats d as "1h05m", "12m" or "40s".
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
