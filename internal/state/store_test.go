package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/history"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Dispatch(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestStore(t *testing.T) (*Store, *eventLog) {
	t.Helper()
	n := 0
	var mu sync.Mutex
	log := &eventLog{}
	s := NewStore(nil, Options{
		Dispatcher: log,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	return s, log
}

// newDeckWithCards creates a deck with count cards (values "1", "2", ...)
// and lays its tabletop out.
func newDeckWithCards(t *testing.T, s *Store, deckID string, count int) *cards.Deck {
	t.Helper()
	ctx := context.Background()
	deck, err := s.CreateDeck(ctx, deckID, "Deck "+deckID)
	require.NoError(t, err)
	valueItem := deck.DataSchemaOrder[0]
	for i := range count {
		_, err := s.UpdateDataItem(ctx, cards.NewCardTarget{DeckID: deckID}, valueItem, cards.TextValue(fmt.Sprint(i+1)))
		require.NoError(t, err)
	}
	_, err = s.ResetTabletop(ctx, deck.DefaultTabletopID)
	require.NoError(t, err)
	deck, ok := s.Snapshot().Deck(deckID)
	require.True(t, ok)
	return deck
}

func TestCreateDeck(t *testing.T) {
	s, log := newTestStore(t)

	deck, err := s.CreateDeck(context.Background(), "deck1", "First")
	require.NoError(t, err)

	st := s.Snapshot()
	assert.True(t, st.Decks.Has("deck1"))
	tt, ok := st.Tabletop(deck.DefaultTabletopID)
	require.True(t, ok, "deck and tabletop must be created together")
	assert.Len(t, tt.Present().StackIDs, tabletop.MinStackCount)
	assert.Equal(t, []string{"deck1"}, tt.AvailableDecks)
	assert.Equal(t, cards.TemplatePlayingCardID, deck.Templates.Front.TemplateID)
	assert.Len(t, deck.DataSchema, 3)
	assert.Len(t, deck.Templates.Front.DataTemplateMapping, 3)
	assert.NoError(t, st.CheckDeckIntegrity("deck1"))
	assert.Equal(t, []string{events.TypeDeckCreated}, log.types())

	_, err = s.CreateDeck(context.Background(), "deck1", "Again")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, s.Snapshot().Decks.Len())
}

func TestCopyDeck(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	src := newDeckWithCards(t, s, "deck1", 2)

	copied, err := s.CopyDeck(ctx, "deck1", "deck2")
	require.NoError(t, err)
	st := s.Snapshot()

	require.Len(t, copied.Cards, 2)
	srcCards := st.DeckCards("deck1")
	newCards := st.DeckCards("deck2")
	require.Len(t, newCards, 2)
	for i := range newCards {
		assert.NotEqual(t, srcCards[i].ID, newCards[i].ID)
		assert.Equal(t, "deck2", newCards[i].DeckID)
		assert.Equal(t, srcCards[i].Data, newCards[i].Data)
	}

	// No aliasing of mutable sub-structures.
	assert.NotSame(t, &src.Cards[0], &copied.Cards[0])
	newCards[0].Data["probe"] = cards.TextValue("x")
	_, leaked := srcCards[0].Data["probe"]
	assert.False(t, leaked, "card data maps must not be shared")
	copied.DataSchema["probe"] = cards.DataItem{}
	_, leaked = src.DataSchema["probe"]
	assert.False(t, leaked, "deck schema maps must not be shared")

	// The copy's tabletop only references the copy's cards.
	assert.NotEqual(t, src.DefaultTabletopID, copied.DefaultTabletopID)
	tt, ok := st.Tabletop(copied.DefaultTabletopID)
	require.True(t, ok)
	assert.Equal(t, 2, tt.Present().CardInstanceCount())
	newIDs := map[string]bool{newCards[0].ID: true, newCards[1].ID: true}
	for _, ci := range tt.Present().CardInstancesByID {
		assert.True(t, newIDs[ci.CardID], "instance %s references %s", ci.ID, ci.CardID)
	}
	srcTT, _ := st.Tabletop(src.DefaultTabletopID)
	for id := range tt.Present().CardInstancesByID {
		_, shared := srcTT.Present().CardInstancesByID[id]
		assert.False(t, shared)
	}
	assert.False(t, tt.History.CanUndo())

	_, err = s.CopyDeck(ctx, "missing", "deck3")
	assert.ErrorIs(t, err, cards.ErrNotFound)
	_, err = s.CopyDeck(ctx, "deck1", "deck2")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDeleteDeck_Soft(t *testing.T) {
	s, _ := newTestStore(t)
	newDeckWithCards(t, s, "deck1", 2)

	require.NoError(t, s.DeleteDeck(context.Background(), "deck1", false))

	st := s.Snapshot()
	deck, ok := st.Deck("deck1")
	require.True(t, ok)
	assert.Equal(t, cards.StatusDeleted, deck.Status)
	for _, c := range st.DeckCards("deck1") {
		assert.Equal(t, cards.StatusDeleted, c.Status)
	}

	require.NoError(t, s.RestoreDeck(context.Background(), "deck1"))
	deck, _ = s.Snapshot().Deck("deck1")
	assert.True(t, deck.IsActive())
}

func TestDeleteDeck_Hard(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 2)
	other, err := s.CreateDeck(ctx, "deck2", "Other")
	require.NoError(t, err)
	_, err = s.SetAvailableDecks(ctx, other.DefaultTabletopID, []string{"deck2", "deck1"})
	require.NoError(t, err)
	_, err = s.AddCardInstance(ctx, other.DefaultTabletopID, deck.Cards[0].CardID, tabletop.SideFront, mustFirstStack(t, s, other.DefaultTabletopID), tabletop.Append)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDeck(ctx, "deck1", true))

	st := s.Snapshot()
	assert.False(t, st.Decks.Has("deck1"))
	assert.Empty(t, cardsOfDeck(st, "deck1"))
	assert.False(t, st.Tabletops.Has(deck.DefaultTabletopID))

	otherTT, _ := st.Tabletop(other.DefaultTabletopID)
	assert.Equal(t, []string{"deck2"}, otherTT.AvailableDecks)
	assert.Equal(t, 0, otherTT.Present().CardInstanceCount())
	assert.NoError(t, otherTT.Present().Validate())
	assert.Contains(t, log.types(), events.TypeDeckDeleted)

	assert.ErrorIs(t, s.DeleteDeck(ctx, "deck1", true), cards.ErrNotFound)
}

func TestSetCardQuantity_ZeroRemovesCardAndInstances(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 2)
	removed, kept := deck.Cards[0].CardID, deck.Cards[1].CardID

	require.NoError(t, s.SetCardQuantity(ctx, "deck1", removed, 3))
	got, _ := s.Snapshot().Deck("deck1")
	assert.Equal(t, 3, got.Cards[0].Quantity)

	// An instance on another deck's tabletop goes too.
	other, err := s.CreateDeck(ctx, "deck2", "Other")
	require.NoError(t, err)
	_, err = s.AddCardInstance(ctx, other.DefaultTabletopID, removed, tabletop.SideFront, mustFirstStack(t, s, other.DefaultTabletopID), tabletop.Append)
	require.NoError(t, err)

	require.NoError(t, s.SetCardQuantity(ctx, "deck1", removed, 0))

	st := s.Snapshot()
	got, _ = st.Deck("deck1")
	assert.Equal(t, []cards.DeckCard{{CardID: kept, Quantity: 1}}, got.Cards)
	assert.False(t, st.Cards.Has(removed))
	assert.NoError(t, st.CheckDeckIntegrity("deck1"))

	for _, id := range []string{deck.DefaultTabletopID, other.DefaultTabletopID} {
		tt, ok := st.Tabletop(id)
		require.True(t, ok)
		assert.False(t, tt.References(removed), "tabletop %s still holds the card", id)
		assert.False(t, tt.History.CanUndo(), "undo would restore the removed card")
		assert.NoError(t, tt.Present().Validate())
	}
	tt, _ := st.Tabletop(deck.DefaultTabletopID)
	assert.Equal(t, 1, tt.Present().CardInstanceCount())
	assert.True(t, tt.Present().HasCard(kept))
	assert.Contains(t, log.types(), events.TypeCardRemoved)

	assert.ErrorIs(t, s.SetCardQuantity(ctx, "deck1", removed, 1), cards.ErrNotFound)
	assert.ErrorIs(t, s.SetCardQuantity(ctx, "deck1", kept, -1), tabletop.ErrInvalidArgument)
}

func mustFirstStack(t *testing.T, s *Store, tabletopID string) string {
	t.Helper()
	tt, ok := s.Snapshot().Tabletop(tabletopID)
	require.True(t, ok)
	return tt.Present().StackIDs[0]
}

// otherTarget satisfies cards.Target without being one of its variants.
type otherTarget struct{ cards.CardTarget }

func TestUpdateDataItem(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 1)
	valueItem := deck.DataSchemaOrder[0]
	cardID := deck.Cards[0].CardID

	t.Run("card", func(t *testing.T) {
		id, err := s.UpdateDataItem(ctx, cards.CardTarget{CardID: cardID}, valueItem, cards.TextValue("K"))
		require.NoError(t, err)
		assert.Equal(t, cardID, id)
		c, _ := s.Snapshot().Card(cardID)
		assert.Equal(t, "K", c.Data[valueItem].Value)
	})

	t.Run("deck default", func(t *testing.T) {
		_, err := s.UpdateDataItem(ctx, cards.DeckTarget{DeckID: "deck1"}, valueItem, cards.TextValue("Q"))
		require.NoError(t, err)
		d, _ := s.Snapshot().Deck("deck1")
		assert.Equal(t, "Q", d.DataSchema[valueItem].DefaultValue.Value)
	})

	t.Run("new card", func(t *testing.T) {
		id, err := s.UpdateDataItem(ctx, cards.NewCardTarget{DeckID: "deck1"}, valueItem, cards.TextValue("J"))
		require.NoError(t, err)
		st := s.Snapshot()
		c, ok := st.Card(id)
		require.True(t, ok)
		assert.Equal(t, "J", c.Data[valueItem].Value)
		d, _ := st.Deck("deck1")
		assert.Equal(t, 1, d.CardQuantity(id))
		assert.NoError(t, st.CheckDeckIntegrity("deck1"))
	})

	t.Run("type mismatch", func(t *testing.T) {
		colorItem := deck.DataSchemaOrder[2]
		_, err := s.UpdateDataItem(ctx, cards.CardTarget{CardID: cardID}, colorItem, cards.TextValue("red"))
		assert.ErrorIs(t, err, cards.ErrInvalidValue)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := s.UpdateDataItem(ctx, cards.CardTarget{CardID: cardID}, "nope", cards.TextValue("x"))
		assert.ErrorIs(t, err, cards.ErrNotFound)
	})

	t.Run("unknown target", func(t *testing.T) {
		before := s.Snapshot()
		_, err := s.UpdateDataItem(ctx, otherTarget{cards.CardTarget{CardID: cardID}}, valueItem, cards.TextValue("x"))
		assert.ErrorIs(t, err, cards.ErrUnknownTarget)
		_, err = s.UpdateDataItem(ctx, nil, valueItem, cards.TextValue("x"))
		assert.ErrorIs(t, err, cards.ErrUnknownTarget)
		assert.Same(t, before, s.Snapshot())
	})
}

func TestRemoveTemplate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.RemoveTemplate(ctx, cards.TemplatePlayingCardID)
	assert.ErrorIs(t, err, cards.ErrBuiltInTemplate)
	assert.True(t, s.Snapshot().Templates.Has(cards.TemplatePlayingCardID))

	_, err = s.UpsertTemplate(ctx, &cards.Template{ID: cards.TemplateBlankID, Name: "Hijack"})
	assert.ErrorIs(t, err, cards.ErrBuiltInTemplate)

	tpl, err := s.UpsertTemplate(ctx, &cards.Template{ID: "custom", Name: "Custom"})
	require.NoError(t, err)
	_, err = s.CreateDeck(ctx, "deck1", "Deck")
	require.NoError(t, err)
	_, err = s.UpdateDeck(ctx, "deck1", func(d *cards.Deck) error {
		d.Templates.Back = cards.TemplateBinding{TemplateID: tpl.ID}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.RemoveTemplate(ctx, "custom"))
	d, _ := s.Snapshot().Deck("deck1")
	assert.Equal(t, cards.TemplateBlankID, d.Templates.Back.TemplateID)
	assert.ErrorIs(t, s.RemoveTemplate(ctx, "custom"), cards.ErrNotFound)
}

func TestTabletopScenario_MoveAndUndo(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 3)
	ttID := deck.DefaultTabletopID

	before, _ := s.Snapshot().Tabletop(ttID)
	a, b := before.Present().StackIDs[0], before.Present().StackIDs[1]
	ids := before.Present().StacksByID[a].CardInstances
	require.Len(t, ids, 3)

	tt, err := s.MoveCardInstance(ctx, ttID, ids[1], a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, tt.Present().StacksByID[a].CardInstances)
	assert.Equal(t, []string{ids[1]}, tt.Present().StacksByID[b].CardInstances)

	tt, err = s.Undo(ctx, ttID)
	require.NoError(t, err)
	assert.Same(t, before.Present(), tt.Present())
	assert.Equal(t, ids, tt.Present().StacksByID[a].CardInstances)
	assert.Empty(t, tt.Present().StacksByID[b].CardInstances)

	types := log.types()
	assert.Equal(t, events.TypeTabletopUpdated, types[len(types)-1])
}

func TestTabletop_BranchingHistory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 2)
	ttID := deck.DefaultTabletopID
	stack := mustFirstStack(t, s, ttID)
	tt, _ := s.Snapshot().Tabletop(ttID)
	first := tt.Present().StacksByID[stack].CardInstances[0]

	_, err := s.FlipCardInstance(ctx, ttID, first)
	require.NoError(t, err)
	_, err = s.FlipStack(ctx, ttID, stack)
	require.NoError(t, err)
	_, err = s.Undo(ctx, ttID)
	require.NoError(t, err)
	_, err = s.Undo(ctx, ttID)
	require.NoError(t, err)
	_, err = s.ShuffleStack(ctx, ttID, stack, nil)
	require.NoError(t, err)

	_, err = s.Redo(ctx, ttID)
	assert.ErrorIs(t, err, history.ErrNothingToRedo)
}

func TestTabletop_Errors(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 1)
	ttID := deck.DefaultTabletopID
	tt, _ := s.Snapshot().Tabletop(ttID)
	a, b := tt.Present().StackIDs[0], tt.Present().StackIDs[1]
	eventsBefore := len(log.types())

	_, err := s.RemoveStack(ctx, ttID, a)
	assert.ErrorIs(t, err, tabletop.ErrBelowMinimumStacks)

	_, err = s.MoveCardInstance(ctx, ttID, tt.Present().StacksByID[a].CardInstances[0], b, a, 0)
	assert.ErrorIs(t, err, tabletop.ErrStaleReference)

	_, err = s.Undo(ctx, "missing")
	assert.ErrorIs(t, err, tabletop.ErrNotFound)

	_, err = s.AddCardInstance(ctx, ttID, "no-such-card", tabletop.SideFront, a, tabletop.Append)
	assert.ErrorIs(t, err, cards.ErrNotFound)

	after, _ := s.Snapshot().Tabletop(ttID)
	assert.Same(t, tt, after, "failed actions must not change the tabletop")
	assert.Len(t, log.types(), eventsBefore, "failed actions must not emit events")
}

func TestShuffleStack_Seeded(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 10)
	ttID := deck.DefaultTabletopID
	stack := mustFirstStack(t, s, ttID)

	seed := uint64(99)
	first, err := s.ShuffleStack(ctx, ttID, stack, &seed)
	require.NoError(t, err)
	_, err = s.Undo(ctx, ttID)
	require.NoError(t, err)
	second, err := s.ShuffleStack(ctx, ttID, stack, &seed)
	require.NoError(t, err)

	assert.Equal(t, first.Present().StacksByID[stack].CardInstances, second.Present().StacksByID[stack].CardInstances)
}

func TestDrawCards_UsesSetting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 5)
	ttID := deck.DefaultTabletopID

	_, err := s.UpdateSettings(ctx, func(st *Settings) { st.DrawCount = 2 })
	require.NoError(t, err)

	tt, _ := s.Snapshot().Tabletop(ttID)
	a, b := tt.Present().StackIDs[0], tt.Present().StackIDs[1]
	tt, err = s.DrawCards(ctx, ttID, a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, tt.Present().StacksByID[b].Len())

	_, err = s.UpdateSettings(ctx, func(st *Settings) { st.DrawCount = 0 })
	assert.Error(t, err)
}

func TestDrawCards_ReadsSettingInCommitOrder(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 100)
	ttID := deck.DefaultTabletopID
	a := mustFirstStack(t, s, ttID)
	tt, _ := s.Snapshot().Tabletop(ttID)
	b := tt.Present().StackIDs[1]

	log.mu.Lock()
	start := len(log.events)
	log.mu.Unlock()

	const rounds = 30
	counts := []int{2, 1}
	moved := make([]int, 0, rounds)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range rounds {
			_, err := s.UpdateSettings(ctx, func(st *Settings) { st.DrawCount = counts[i%2] })
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for range rounds {
			next, err := s.DrawCards(ctx, ttID, a, b, 0)
			if !assert.NoError(t, err) {
				return
			}
			before := next.History.Past[len(next.History.Past)-1]
			moved = append(moved, next.Present().StacksByID[b].Len()-before.StacksByID[b].Len())
		}
	}()
	wg.Wait()
	require.Len(t, moved, rounds)

	// Replaying the events in commit order gives the setting each draw saw.
	log.mu.Lock()
	defer log.mu.Unlock()
	current, settingsIdx, drawIdx := 1, 0, 0
	for _, ev := range log.events[start:] {
		switch ev.Type {
		case events.TypeSettingsUpdated:
			current = counts[settingsIdx%2]
			settingsIdx++
		case events.TypeTabletopUpdated:
			if ev.Payload.(events.TabletopEvent).Action != ActionDrawCards {
				continue
			}
			assert.Equal(t, current, moved[drawIdx], "draw %d", drawIdx)
			drawIdx++
		}
	}
	assert.Equal(t, rounds, drawIdx)
}

func TestResetTabletop_IsUndoable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 3)
	ttID := deck.DefaultTabletopID
	tt, _ := s.Snapshot().Tabletop(ttID)
	a, b := tt.Present().StackIDs[0], tt.Present().StackIDs[1]

	drawn, err := s.DrawCards(ctx, ttID, a, b, 2)
	require.NoError(t, err)

	reset, err := s.ResetTabletop(ctx, ttID)
	require.NoError(t, err)
	assert.True(t, reset.History.CanUndo())
	assert.Equal(t, 3, reset.Present().CardInstanceCount())

	undone, err := s.Undo(ctx, ttID)
	require.NoError(t, err)
	assert.Same(t, drawn.Present(), undone.Present())
}

func TestNewStore_TrimsLoadedHistories(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	deck := newDeckWithCards(t, s, "deck1", 2)
	ttID := deck.DefaultTabletopID
	stackID := mustFirstStack(t, s, ttID)
	for range 5 {
		_, err := s.FlipStack(ctx, ttID, stackID)
		require.NoError(t, err)
	}
	saved := s.Snapshot()
	tt, _ := saved.Tabletop(ttID)
	require.Len(t, tt.History.Past, 6)

	reloaded := NewStore(saved, Options{HistoryLimit: 2})
	got, _ := reloaded.Snapshot().Tabletop(ttID)
	assert.Len(t, got.History.Past, 2)
	assert.Same(t, tt.Present(), got.Present())
	assert.Len(t, tt.History.Past, 6, "the source snapshot must not change")

	other := NewStore(nil, Options{HistoryLimit: 3})
	other.Replace(ctx, saved, "test")
	got, _ = other.Snapshot().Tabletop(ttID)
	assert.Len(t, got.History.Past, 3)
	tt, _ = s.Snapshot().Tabletop(ttID)
	assert.Len(t, tt.History.Past, 6, "Replace must not modify the state it was given")
}

func TestImportDecks_AllOrNothing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	good := ImportedDeck{
		Deck: &cards.Deck{
			ID:   "imported",
			Name: "Imported",
			Cards: []cards.DeckCard{
				{CardID: "c1", Quantity: 2},
			},
			DataSchema: map[string]cards.DataItem{"name": {ID: "name", Name: "Name", Type: cards.DataTypeText}},
			Templates: cards.DeckTemplates{
				Front: cards.TemplateBinding{TemplateID: cards.TemplateBlankID},
				Back:  cards.TemplateBinding{TemplateID: cards.TemplateCardBackID},
			},
		},
		Cards: []*cards.Card{{ID: "c1", Data: map[string]cards.Value{"name": cards.TextValue("Ace")}}},
	}
	broken := ImportedDeck{
		Deck: &cards.Deck{
			ID:    "broken",
			Cards: []cards.DeckCard{{CardID: "missing", Quantity: 1}},
			Templates: cards.DeckTemplates{
				Front: cards.TemplateBinding{TemplateID: cards.TemplateBlankID},
				Back:  cards.TemplateBinding{TemplateID: cards.TemplateBlankID},
			},
		},
	}

	err := s.ImportDecks(ctx, []ImportedDeck{good, broken})
	require.ErrorIs(t, err, ErrInvariant)
	assert.False(t, s.Snapshot().Decks.Has("imported"), "a failed import must not be partially applied")

	require.NoError(t, s.ImportDecks(ctx, []ImportedDeck{good}))
	st := s.Snapshot()
	deck, ok := st.Deck("imported")
	require.True(t, ok)
	tt, ok := st.Tabletop(deck.DefaultTabletopID)
	require.True(t, ok)
	assert.Equal(t, 2, tt.Present().CardInstanceCount())

	// Re-importing keeps the tabletop id and rebuilds its layout.
	require.NoError(t, s.ImportDecks(ctx, []ImportedDeck{good}))
	again, _ := s.Snapshot().Deck("imported")
	assert.Equal(t, deck.DefaultTabletopID, again.DefaultTabletopID)
}

func TestUpdate_EventsInCommitOrder(t *testing.T) {
	s, log := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateDeck(ctx, fmt.Sprintf("deck-%d", i), "d")
		}()
	}
	wg.Wait()

	st := s.Snapshot()
	require.Equal(t, 20, st.Decks.Len())

	// Events arrive in the same order the decks were committed.
	log.mu.Lock()
	defer log.mu.Unlock()
	var eventOrder []string
	for _, ev := range log.events {
		payload, ok := events.GetTypedData[events.DeckEvent](ev)
		require.True(t, ok)
		eventOrder = append(eventOrder, payload.DeckID)
	}
	assert.Equal(t, st.Decks.IDs(), eventOrder)
}

func TestUpdate_ErrorLeavesStateUntouched(t *testing.T) {
	s, log := newTestStore(t)
	before := s.Snapshot()
	boom := errors.New("boom")

	got, err := s.Update(context.Background(), func(tx *Tx) error {
		tx.Decks().Upsert(&cards.Deck{ID: "half"})
		tx.Emit(events.TypeDeckCreated, events.DeckEvent{DeckID: "half"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Same(t, before, got)
	assert.Same(t, before, s.Snapshot())
	assert.False(t, before.Decks.Has("half"))
	assert.Empty(t, log.types())
}

func TestUpdate_SharesUntouchedTables(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Snapshot()

	_, err := s.UpdateSettings(context.Background(), func(st *Settings) { st.DeveloperMode = true })
	require.NoError(t, err)

	after := s.Snapshot()
	assert.Same(t, before.Decks, after.Decks)
	assert.Same(t, before.Templates, after.Templates)
	assert.False(t, before.Settings.DeveloperMode)
	assert.True(t, after.Settings.DeveloperMode)
}

func TestUpdate_RejectsMissingBuiltInTemplate(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Update(context.Background(), func(tx *Tx) error {
		tx.Templates().Remove(cards.TemplateBlankID)
		return nil
	})
	assert.ErrorIs(t, err, ErrInvariant)
	assert.True(t, s.Snapshot().Templates.Has(cards.TemplateBlankID))
}
