package db

import (
	"sort"
	"time"
)

// ItemKind tags the variant held by an Item.
type ItemKind string

const (
	ItemWord  ItemKind = "word"
	ItemQuote ItemKind = "quote"
)

// Item is either a WordItem or a QuoteItem. The unexported method closes the
// set so callers can switch on the concrete type exhaustively.
type Item interface {
	CapturedAt() time.Time
	Kind() ItemKind
	item()
}

// WordItem wraps a captured word.
type WordItem struct {
	Word Word
}

func (w WordItem) CapturedAt() time.Time { return w.Word.CapturedAt }
func (WordItem) Kind() ItemKind          { return ItemWord }
func (WordItem) item()                   {}

// QuoteItem wraps a captured quote.
type QuoteItem struct {
	Quote Quote
}

func (q QuoteItem) CapturedAt() time.Time { return q.Quote.CapturedAt }
func (QuoteItem) Kind() ItemKind          { return ItemQuote }
func (QuoteItem) item()                   {}

// MergeItems returns words and quotes as one list, newest first. Ties keep
// words ahead of quotes.
func MergeItems(words []Word, quotes []Quote) []Item {
	items := make([]Item, 0, len(words)+len(quotes))
	for _, w := range words {
		items = append(items, WordItem{Word: w})
	}
	for _, q := range quotes {
		items = append(items, QuoteItem{Quote: q})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CapturedAt().After(items[j].CapturedAt())
	})
	return items
}
