package state

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// CreateDeck creates a deck bound to the playing-card templates, together
// with its default tabletop and initial stacks, as one update. An empty
// deckID generates one.
func (s *Store) CreateDeck(ctx context.Context, deckID, name string) (*cards.Deck, error) {
	var created *cards.Deck
	_, err := s.Update(ctx, func(tx *Tx) error {
		if deckID == "" {
			deckID = tx.NewID()
		}
		if tx.View().Decks.Has(deckID) {
			return fmt.Errorf("%w: deck %s", ErrAlreadyExists, deckID)
		}

		deck := newDeck(tx, deckID, name)
		tt := tabletop.New(tx.NewID(), []string{deckID}, tabletop.CreateInitStacks(tx.NewID))
		deck.DefaultTabletopID = tt.ID

		tx.Decks().Upsert(deck)
		tx.Tabletops().Upsert(tt)
		tx.TouchDeck(deckID)
		tx.Emit(events.TypeDeckCreated, events.DeckEvent{DeckID: deckID, TabletopID: tt.ID})
		created = deck
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("created deck", "deck", created.ID, "tabletop", created.DefaultTabletopID)
	return created, nil
}

// newDeck builds an empty deck whose schema mirrors the playing-card front
// template, each data item mapped onto the slot of the same name.
func newDeck(tx *Tx, deckID, name string) *cards.Deck {
	now := time.Now().UTC()
	front, _ := tx.View().Templates.Get(cards.TemplatePlayingCardID)
	back, _ := tx.View().Templates.Get(cards.TemplateCardBackID)

	deck := &cards.Deck{
		ID:              deckID,
		Name:            name,
		CardSize:        tx.View().Settings.DefaultCardSize,
		Cards:           []cards.DeckCard{},
		DataSchema:      map[string]cards.DataItem{},
		DataSchemaOrder: []string{},
		Templates: cards.DeckTemplates{
			Front: cards.TemplateBinding{TemplateID: front.ID, DataTemplateMapping: map[string]cards.MappingItem{}},
			Back:  cards.TemplateBinding{TemplateID: back.ID, DataTemplateMapping: map[string]cards.MappingItem{}},
		},
		Status:     cards.StatusActive,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	for _, slotID := range front.SchemaOrder {
		slot := front.Schema[slotID]
		item := cards.DataItem{ID: tx.NewID(), Name: slot.Name, Type: slot.Type, DefaultValue: slot.DefaultValue}
		deck.DataSchema[item.ID] = item
		deck.DataSchemaOrder = append(deck.DataSchemaOrder, item.ID)
		deck.Templates.Front.DataTemplateMapping[slotID] = cards.MappingItem{DataItemID: item.ID}
	}
	return deck
}

// CopyDeck deep-copies a deck and its cards under fresh ids. The copy gets
// its own tabletop laid out like the source's current layout, with every
// instance pointing at the copied cards. Nothing is shared with the source.
func (s *Store) CopyDeck(ctx context.Context, deckID, newDeckID string) (*cards.Deck, error) {
	var copied *cards.Deck
	_, err := s.Update(ctx, func(tx *Tx) error {
		src, ok := tx.View().Decks.Get(deckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
		}
		if newDeckID == "" {
			newDeckID = tx.NewID()
		}
		if tx.View().Decks.Has(newDeckID) {
			return fmt.Errorf("%w: deck %s", ErrAlreadyExists, newDeckID)
		}

		now := time.Now().UTC()
		deck := src.Clone()
		deck.ID = newDeckID
		deck.Name = src.Name + " (copy)"
		deck.Status = cards.StatusActive
		deck.CreatedAt, deck.ModifiedAt = now, now

		cardIDs := make(map[string]string, len(src.Cards))
		for i, dc := range src.Cards {
			card, ok := tx.View().Cards.Get(dc.CardID)
			if !ok {
				return fmt.Errorf("%w: deck %s lists missing card %s", ErrInvariant, deckID, dc.CardID)
			}
			cp := card.Clone()
			cp.ID = tx.NewID()
			cp.DeckID = newDeckID
			tx.Cards().Upsert(cp)
			cardIDs[card.ID] = cp.ID
			deck.Cards[i].CardID = cp.ID
		}

		var present *tabletop.PresentState
		if srcTT, ok := tx.View().Tabletops.Get(src.DefaultTabletopID); ok {
			present = srcTT.Present().RemapCards(tx.NewID, cardIDs)
			for len(present.StackIDs) < tabletop.MinStackCount {
				present, _ = present.AddStack(tx.NewID(), tabletop.Append)
			}
		} else {
			present = tabletop.FromDeckCards(tx.NewID, deck.Cards, tx.View().Settings.DefaultSide)
		}
		tt := tabletop.New(tx.NewID(), []string{newDeckID}, present)
		deck.DefaultTabletopID = tt.ID

		tx.Decks().Upsert(deck)
		tx.Tabletops().Upsert(tt)
		tx.TouchDeck(newDeckID)
		tx.Emit(events.TypeDeckCreated, events.DeckEvent{DeckID: newDeckID, TabletopID: tt.ID})
		copied = deck
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("copied deck", "source", deckID, "deck", copied.ID)
	return copied, nil
}

// UpdateDeck applies fn to a copy of the deck and stores the result. The
// id, cards and tabletop binding cannot be changed through it.
func (s *Store) UpdateDeck(ctx context.Context, deckID string, fn func(d *cards.Deck) error) (*cards.Deck, error) {
	var updated *cards.Deck
	_, err := s.Update(ctx, func(tx *Tx) error {
		src, ok := tx.View().Decks.Get(deckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
		}
		deck := src.Clone()
		if err := fn(deck); err != nil {
			return err
		}
		deck.ID = src.ID
		deck.Cards = slices.Clone(src.Cards)
		deck.DefaultTabletopID = src.DefaultTabletopID
		deck.ModifiedAt = time.Now().UTC()
		if err := validateBindings(tx.View(), deck); err != nil {
			return err
		}
		tx.Decks().Upsert(deck)
		tx.TouchDeck(deckID)
		tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: deckID})
		updated = deck
		return nil
	})
	return updated, err
}

func validateBindings(st *State, deck *cards.Deck) error {
	for _, binding := range []cards.TemplateBinding{deck.Templates.Front, deck.Templates.Back} {
		tpl, ok := st.Templates.Get(binding.TemplateID)
		if !ok {
			return fmt.Errorf("%w: template %s", cards.ErrNotFound, binding.TemplateID)
		}
		for slotID, m := range binding.DataTemplateMapping {
			if _, ok := tpl.Schema[slotID]; !ok {
				return fmt.Errorf("%w: template %s has no slot %s", cards.ErrNotFound, tpl.ID, slotID)
			}
			if _, ok := deck.DataSchema[m.DataItemID]; !ok {
				return fmt.Errorf("%w: deck %s has no data item %s", cards.ErrNotFound, deck.ID, m.DataItemID)
			}
		}
	}
	return nil
}

// DeleteDeck deletes a deck and, explicitly, what belongs to it. A soft
// delete marks the deck and its cards deleted and keeps everything. A hard
// delete removes the deck, its cards and its default tabletop, and drops
// the deck from every other tabletop's available decks.
func (s *Store) DeleteDeck(ctx context.Context, deckID string, hard bool) error {
	_, err := s.Update(ctx, func(tx *Tx) error {
		deck, ok := tx.View().Decks.Get(deckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
		}
		owned := cardsOfDeck(tx.View(), deckID)

		if !hard {
			cp := deck.Clone()
			cp.Status = cards.StatusDeleted
			cp.ModifiedAt = time.Now().UTC()
			tx.Decks().Upsert(cp)
			for _, c := range owned {
				cc := c.Clone()
				cc.Status = cards.StatusDeleted
				tx.Cards().Upsert(cc)
			}
			tx.Emit(events.TypeDeckDeleted, events.DeckEvent{DeckID: deckID})
			return nil
		}

		tx.Decks().Remove(deckID)
		for _, c := range owned {
			tx.Cards().Remove(c.ID)
		}
		tx.Tabletops().Remove(deck.DefaultTabletopID)
		for _, tt := range tx.View().Tabletops.All() {
			if !slices.Contains(tt.AvailableDecks, deckID) {
				continue
			}
			remaining := slices.DeleteFunc(slices.Clone(tt.AvailableDecks), func(id string) bool { return id == deckID })
			next := tt.WithAvailableDecks(remaining)
			for _, c := range owned {
				next = next.Reset(next.Present().RemoveCard(c.ID))
			}
			tx.Tabletops().Upsert(next)
		}
		tx.Emit(events.TypeDeckDeleted, events.DeckEvent{DeckID: deckID, TabletopID: deck.DefaultTabletopID, Hard: true})
		return nil
	})
	if err == nil {
		s.logger.Info("deleted deck", "deck", deckID, "hard", hard)
	}
	return err
}

// RestoreDeck undoes a soft delete.
func (s *Store) RestoreDeck(ctx context.Context, deckID string) error {
	_, err := s.Update(ctx, func(tx *Tx) error {
		deck, ok := tx.View().Decks.Get(deckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
		}
		if deck.IsActive() {
			return nil
		}
		cp := deck.Clone()
		cp.Status = cards.StatusActive
		tx.Decks().Upsert(cp)
		for _, c := range cardsOfDeck(tx.View(), deckID) {
			cc := c.Clone()
			cc.Status = cards.StatusActive
			tx.Cards().Upsert(cc)
		}
		tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: deckID})
		return nil
	})
	return err
}

// ImportedDeck is a deck and its cards ready to be merged into the state.
type ImportedDeck struct {
	Deck  *cards.Deck
	Cards []*cards.Card
}

// ImportDecks merges imported decks in one update: either every deck is
// applied or none is. An imported deck replaces an existing deck with the
// same id, and its tabletop is rebuilt from the new card list.
func (s *Store) ImportDecks(ctx context.Context, imported []ImportedDeck) error {
	_, err := s.Update(ctx, func(tx *Tx) error {
		for _, in := range imported {
			if err := importDeck(tx, in); err != nil {
				return fmt.Errorf("failed to import deck %s: %w", in.Deck.ID, err)
			}
		}
		return nil
	})
	if err == nil {
		s.logger.Info("imported decks", "count", len(imported))
	}
	return err
}

func importDeck(tx *Tx, in ImportedDeck) error {
	if in.Deck == nil || in.Deck.ID == "" {
		return fmt.Errorf("%w: deck without id", ErrInvariant)
	}
	deck := in.Deck.Clone()
	if deck.Status == "" {
		deck.Status = cards.StatusActive
	}
	if deck.CardSize == "" {
		deck.CardSize = tx.View().Settings.DefaultCardSize
	}

	incoming := make(map[string]struct{}, len(in.Cards))
	for _, c := range in.Cards {
		cc := c.Clone()
		cc.DeckID = deck.ID
		if cc.Status == "" {
			cc.Status = cards.StatusActive
		}
		for id, v := range cc.Data {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("card %s item %s: %w", cc.ID, id, err)
			}
		}
		tx.Cards().Upsert(cc)
		incoming[cc.ID] = struct{}{}
	}
	if existing, ok := tx.View().Decks.Get(deck.ID); ok {
		for _, c := range cardsOfDeck(tx.View(), existing.ID) {
			if _, keep := incoming[c.ID]; !keep {
				tx.Cards().Remove(c.ID)
			}
		}
		deck.CreatedAt = existing.CreatedAt
		deck.DefaultTabletopID = existing.DefaultTabletopID
	}
	if err := validateBindings(tx.View(), deck); err != nil {
		return err
	}

	present := tabletop.FromDeckCards(tx.NewID, deck.Cards, tx.View().Settings.DefaultSide)
	if tt, ok := tx.View().Tabletops.Get(deck.DefaultTabletopID); ok {
		tx.Tabletops().Upsert(tt.Reset(present))
	} else {
		tt := tabletop.New(tx.NewID(), []string{deck.ID}, present)
		deck.DefaultTabletopID = tt.ID
		tx.Tabletops().Upsert(tt)
	}
	deck.ModifiedAt = time.Now().UTC()
	tx.Decks().Upsert(deck)
	tx.TouchDeck(deck.ID)
	tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: deck.ID, TabletopID: deck.DefaultTabletopID})
	return nil
}

// UpsertCard stores a card. A card new to its deck is added to the deck's
// card list with quantity 1.
func (s *Store) UpsertCard(ctx context.Context, card *cards.Card) (*cards.Card, error) {
	var stored *cards.Card
	_, err := s.Update(ctx, func(tx *Tx) error {
		deck, ok := tx.View().Decks.Get(card.DeckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, card.DeckID)
		}
		cc := card.Clone()
		if cc.ID == "" {
			cc.ID = tx.NewID()
		}
		if cc.Status == "" {
			cc.Status = cards.StatusActive
		}
		if cc.Data == nil {
			cc.Data = deck.DefaultData()
		}
		if existing, ok := tx.View().Cards.Get(cc.ID); ok && existing.DeckID != cc.DeckID {
			return fmt.Errorf("%w: card %s belongs to deck %s", ErrAlreadyExists, cc.ID, existing.DeckID)
		}
		if err := validateCardData(deck, cc); err != nil {
			return err
		}
		tx.Cards().Upsert(cc)
		if !slices.ContainsFunc(deck.Cards, func(dc cards.DeckCard) bool { return dc.CardID == cc.ID }) {
			dcp := deck.Clone()
			dcp.Cards = append(dcp.Cards, cards.DeckCard{CardID: cc.ID, Quantity: 1})
			dcp.ModifiedAt = time.Now().UTC()
			tx.Decks().Upsert(dcp)
		}
		tx.TouchDeck(deck.ID)
		tx.Emit(events.TypeCardUpdated, events.CardEvent{CardID: cc.ID, DeckID: deck.ID})
		stored = cc
		return nil
	})
	return stored, err
}

// SetCardQuantity changes how many copies of a card the deck holds. A
// quantity of 0 removes the card and its instances.
func (s *Store) SetCardQuantity(ctx context.Context, deckID, cardID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: negative quantity", tabletop.ErrInvalidArgument)
	}
	_, err := s.Update(ctx, func(tx *Tx) error {
		deck, ok := tx.View().Decks.Get(deckID)
		if !ok {
			return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
		}
		i := slices.IndexFunc(deck.Cards, func(dc cards.DeckCard) bool { return dc.CardID == cardID })
		if i < 0 {
			return fmt.Errorf("%w: card %s in deck %s", cards.ErrNotFound, cardID, deckID)
		}
		cp := deck.Clone()
		cp.ModifiedAt = time.Now().UTC()
		if quantity > 0 {
			cp.Cards[i].Quantity = quantity
		} else {
			cp.Cards = slices.Delete(cp.Cards, i, i+1)
			removeCard(tx, cardID)
			tx.Emit(events.TypeCardRemoved, events.CardEvent{CardID: cardID, DeckID: deckID})
		}
		tx.Decks().Upsert(cp)
		tx.TouchDeck(deckID)
		tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: deckID})
		return nil
	})
	return err
}

// removeCard drops a card and every instance of it. Tabletops that held
// one lose their undo history, since older states would bring it back.
func removeCard(tx *Tx, cardID string) {
	tx.Cards().Remove(cardID)
	for _, tt := range tx.View().Tabletops.All() {
		if !tt.References(cardID) {
			continue
		}
		tx.Tabletops().Upsert(tt.Reset(tt.Present().RemoveCard(cardID)))
		tx.Emit(events.TypeTabletopUpdated, events.TabletopEvent{TabletopID: tt.ID, Action: ActionRemoveCard})
	}
}

// UpdateDataItem sets a data value on whatever target names:
//   - CardTarget: the card's value for the item;
//   - DeckTarget: the default value of the item in the deck schema;
//   - NewCardTarget: a new card in the deck, other items at their defaults.
//
// It returns the id of the card or deck that changed.
func (s *Store) UpdateDataItem(ctx context.Context, target cards.Target, dataItemID string, value cards.Value) (string, error) {
	if err := value.Validate(); err != nil {
		return "", err
	}
	var changedID string
	_, err := s.Update(ctx, func(tx *Tx) error {
		switch t := target.(type) {
		case cards.CardTarget:
			card, ok := tx.View().Cards.Get(t.CardID)
			if !ok {
				return fmt.Errorf("%w: card %s", cards.ErrNotFound, t.CardID)
			}
			deck, err := schemaDeck(tx.View(), card.DeckID, dataItemID, value)
			if err != nil {
				return err
			}
			cc := card.Clone()
			if cc.Data == nil {
				cc.Data = map[string]cards.Value{}
			}
			cc.Data[dataItemID] = value
			tx.Cards().Upsert(cc)
			tx.Emit(events.TypeCardUpdated, events.CardEvent{CardID: cc.ID, DeckID: deck.ID})
			changedID = cc.ID

		case cards.DeckTarget:
			deck, err := schemaDeck(tx.View(), t.DeckID, dataItemID, value)
			if err != nil {
				return err
			}
			cp := deck.Clone()
			item := cp.DataSchema[dataItemID]
			item.DefaultValue = value
			cp.DataSchema[dataItemID] = item
			cp.ModifiedAt = time.Now().UTC()
			tx.Decks().Upsert(cp)
			tx.Emit(events.TypeDeckUpdated, events.DeckEvent{DeckID: cp.ID})
			changedID = cp.ID

		case cards.NewCardTarget:
			deck, err := schemaDeck(tx.View(), t.DeckID, dataItemID, value)
			if err != nil {
				return err
			}
			card := &cards.Card{ID: tx.NewID(), DeckID: deck.ID, Data: deck.DefaultData(), Status: cards.StatusActive}
			card.Data[dataItemID] = value
			cp := deck.Clone()
			cp.Cards = append(cp.Cards, cards.DeckCard{CardID: card.ID, Quantity: 1})
			cp.ModifiedAt = time.Now().UTC()
			tx.Cards().Upsert(card)
			tx.Decks().Upsert(cp)
			tx.TouchDeck(cp.ID)
			tx.Emit(events.TypeCardUpdated, events.CardEvent{CardID: card.ID, DeckID: cp.ID})
			changedID = card.ID

		default:
			return fmt.Errorf("%w: %T", cards.ErrUnknownTarget, target)
		}
		return nil
	})
	return changedID, err
}

func schemaDeck(st *State, deckID, dataItemID string, value cards.Value) (*cards.Deck, error) {
	deck, ok := st.Decks.Get(deckID)
	if !ok {
		return nil, fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
	}
	item, ok := deck.DataSchema[dataItemID]
	if !ok {
		return nil, fmt.Errorf("%w: data item %s in deck %s", cards.ErrNotFound, dataItemID, deckID)
	}
	if item.Type != value.Type {
		return nil, fmt.Errorf("%w: item %s is %s, got %s", cards.ErrInvalidValue, dataItemID, item.Type, value.Type)
	}
	return deck, nil
}

func validateCardData(deck *cards.Deck, card *cards.Card) error {
	for id, v := range card.Data {
		item, ok := deck.DataSchema[id]
		if !ok {
			return fmt.Errorf("%w: data item %s in deck %s", cards.ErrNotFound, id, deck.ID)
		}
		if item.Type != v.Type {
			return fmt.Errorf("%w: item %s is %s, got %s", cards.ErrInvalidValue, id, item.Type, v.Type)
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// cardsOfDeck returns every card whose DeckID is deckID, listed or not.
func cardsOfDeck(st *State, deckID string) []*cards.Card {
	var out []*cards.Card
	for _, c := range st.Cards.All() {
		if c.DeckID == deckID {
			out = append(out, c)
		}
	}
	return out
}
