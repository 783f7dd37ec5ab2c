package db

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real vibereader database and reads sessions.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions in database")
		return
	}

	latest := sessions[0]
	fmt.Printf("Latest session: id=%d title=%q status=%s started=%s\n",
		latest.ID, latest.Title, latest.Status, latest.StartTime.Format("2006-01-02 15:04:05"))

	items, err := store.Items(ctx, latest.ID)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	fmt.Printf("Items for session: %d\n", len(items))
	for i, it := range items {
		switch it := it.(type) {
		case WordItem:
			fmt.Printf("  %d. word %s: %s\n", i+1, it.Word.Term, it.Word.Definition)
		case QuoteItem:
			fmt.Printf("  %d. quote %q\n", i+1, it.Quote.Content)
		}
	}

	active, err := store.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active != nil {
		fmt.Printf("Active session: id=%d\n", active.ID)
	} else {
		fmt.Println("No active session")
	}
}
