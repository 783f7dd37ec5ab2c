package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeItems(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	words := []Word{
		{ID: 2, Term: "laconic", CapturedAt: base.Add(3 * time.Second)},
		{ID: 1, Term: "ephemeral", CapturedAt: base},
	}
	quotes := []Quote{
		{ID: 1, Content: "a fine morning", CapturedAt: base.Add(time.Second)},
	}

	items := MergeItems(words, quotes)
	require.Len(t, items, 3)

	assert.Equal(t, ItemWord, items[0].Kind())
	assert.Equal(t, ItemQuote, items[1].Kind())
	assert.Equal(t, ItemWord, items[2].Kind())

	switch it := items[1].(type) {
	case QuoteItem:
		assert.Equal(t, "a fine morning", it.Quote.Content)
	case WordItem:
		t.Fatalf("expected quote, got word %q", it.Word.Term)
	}
	assert.True(t, items[2].CapturedAt().Equal(base))
}

func TestMergeItemsEmpty(t *testing.T) {
	assert.Empty(t, MergeItems(nil, nil))
}
