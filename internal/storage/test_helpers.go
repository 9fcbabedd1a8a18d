package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// setupTestService creates a service over a fresh test database.
func setupTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(setupTestDB(t), ServiceOptions{RevisionLimit: 3})
}

// newTestStore returns a store holding one deck with cardCount cards laid
// out on its tabletop.
func newTestStore(t *testing.T, cardCount int) *state.Store {
	t.Helper()
	ctx := context.Background()
	n := 0
	store := state.NewStore(nil, state.Options{NewID: func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}})

	deck, err := store.CreateDeck(ctx, "deck1", "Deck")
	if err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}
	for i := range cardCount {
		target := cards.NewCardTarget{DeckID: deck.ID}
		if _, err := store.UpdateDataItem(ctx, target, deck.DataSchemaOrder[0], cards.TextValue(fmt.Sprint("card ", i))); err != nil {
			t.Fatalf("UpdateDataItem failed: %v", err)
		}
	}
	if _, err := store.ResetTabletop(ctx, deck.DefaultTabletopID); err != nil {
		t.Fatalf("ResetTabletop failed: %v", err)
	}
	return store
}

// stateJSON encodes st for comparison; time values do not survive a round
// trip with their monotonic readings, so states are compared as JSON.
func stateJSON(t *testing.T, st *state.State) string {
	t.Helper()
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("Failed to encode state: %v", err)
	}
	return string(data)
}
