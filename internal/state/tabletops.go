package state

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/events"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

// Tabletop actions, as reported in tabletop:updated events.
const (
	ActionAddCardInstance  = "add-card-instance"
	ActionMoveCardInstance = "move-card-instance"
	ActionFlipCardInstance = "flip-card-instance"
	ActionFlipStack        = "flip-stack"
	ActionAddStack         = "add-stack"
	ActionRemoveStack      = "remove-stack"
	ActionShuffleStack     = "shuffle-stack"
	ActionDrawCards        = "draw-cards"
	ActionReset            = "reset"
	ActionUndo             = "undo"
	ActionRedo             = "redo"
	ActionAvailableDecks   = "available-decks"
	ActionRemoveCard       = "remove-card"
)

// DispatchTabletop applies m to a tabletop's present state as one undo
// step. Concurrent callers are serialized; each call is its own step.
func (s *Store) DispatchTabletop(ctx context.Context, tabletopID, action string, m tabletop.Mutation) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, action, func(_ *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		return tt.Dispatch(m, s.historyLimit)
	})
}

func (s *Store) updateTabletop(ctx context.Context, tabletopID, action string, fn func(*State, *tabletop.Tabletop) (*tabletop.Tabletop, error)) (*tabletop.Tabletop, error) {
	var updated *tabletop.Tabletop
	_, err := s.Update(ctx, func(tx *Tx) error {
		tt, ok := tx.View().Tabletops.Get(tabletopID)
		if !ok {
			return fmt.Errorf("%w: tabletop %s", tabletop.ErrNotFound, tabletopID)
		}
		next, err := fn(tx.View(), tt)
		if err != nil {
			return err
		}
		tx.Tabletops().Upsert(next)
		tx.Emit(events.TypeTabletopUpdated, events.TabletopEvent{
			TabletopID: tabletopID,
			Action:     action,
			CanUndo:    next.History.CanUndo(),
			CanRedo:    next.History.CanRedo(),
		})
		updated = next
		return nil
	})
	if err != nil {
		s.logger.Debug("tabletop action failed", "tabletop", tabletopID, "action", action, "error", err)
		return nil, err
	}
	return updated, nil
}

// AddCardInstance puts a new instance of a card into a stack and returns
// the instance id. Position tabletop.Append puts it at the bottom.
func (s *Store) AddCardInstance(ctx context.Context, tabletopID, cardID string, side tabletop.Side, stackID string, position int) (string, error) {
	id := s.newID()
	_, err := s.updateTabletop(ctx, tabletopID, ActionAddCardInstance, func(st *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		if !st.Cards.Has(cardID) {
			return nil, fmt.Errorf("%w: card %s", cards.ErrNotFound, cardID)
		}
		if side == "" {
			side = st.Settings.DefaultSide
		}
		return tt.Dispatch(func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
			return p.AddCardInstance(id, cardID, side, stackID, position)
		}, s.historyLimit)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// MoveCardInstance moves an instance between stacks, or within one.
func (s *Store) MoveCardInstance(ctx context.Context, tabletopID, cardInstanceID, fromStackID, toStackID string, position int) (*tabletop.Tabletop, error) {
	return s.DispatchTabletop(ctx, tabletopID, ActionMoveCardInstance, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.MoveCardInstance(cardInstanceID, fromStackID, toStackID, position)
	})
}

// FlipCardInstance turns one instance over.
func (s *Store) FlipCardInstance(ctx context.Context, tabletopID, cardInstanceID string) (*tabletop.Tabletop, error) {
	return s.DispatchTabletop(ctx, tabletopID, ActionFlipCardInstance, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.FlipCardInstance(cardInstanceID)
	})
}

// FlipStack turns a whole stack over.
func (s *Store) FlipStack(ctx context.Context, tabletopID, stackID string) (*tabletop.Tabletop, error) {
	return s.DispatchTabletop(ctx, tabletopID, ActionFlipStack, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.FlipStack(stackID)
	})
}

// AddStack inserts an empty stack and returns its id.
func (s *Store) AddStack(ctx context.Context, tabletopID string, position int) (string, error) {
	id := s.newID()
	_, err := s.DispatchTabletop(ctx, tabletopID, ActionAddStack, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.AddStack(id, position)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveStack removes a stack, moving its instances to the first remaining stack.
func (s *Store) RemoveStack(ctx context.Context, tabletopID, stackID string) (*tabletop.Tabletop, error) {
	return s.DispatchTabletop(ctx, tabletopID, ActionRemoveStack, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.RemoveStack(stackID)
	})
}

// ShuffleStack shuffles a stack. A non-nil seed makes the order reproducible;
// otherwise the store's RNG is used.
func (s *Store) ShuffleStack(ctx context.Context, tabletopID, stackID string, seed *uint64) (*tabletop.Tabletop, error) {
	rng := s.rng
	if seed != nil {
		rng = tabletop.NewSeededRNG(*seed)
	}
	return s.DispatchTabletop(ctx, tabletopID, ActionShuffleStack, func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
		return p.ShuffleStack(stackID, rng)
	})
}

// DrawCards moves the top count instances of one stack onto another. A
// count of 0 uses the DrawCount setting.
func (s *Store) DrawCards(ctx context.Context, tabletopID, fromStackID, toStackID string, count int) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, ActionDrawCards, func(st *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		n := count
		if n == 0 {
			n = st.Settings.DrawCount
		}
		return tt.Dispatch(func(p *tabletop.PresentState) (*tabletop.PresentState, error) {
			return p.DrawCards(fromStackID, toStackID, n)
		}, s.historyLimit)
	})
}

// ResetTabletop lays the tabletop out afresh from its decks: one instance per
// card copy in the first of MinStackCount stacks. The reset is undoable.
func (s *Store) ResetTabletop(ctx context.Context, tabletopID string) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, ActionReset, func(st *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		var deckCards []cards.DeckCard
		for _, deckID := range tt.AvailableDecks {
			if deck, ok := st.Decks.Get(deckID); ok && deck.IsActive() {
				deckCards = append(deckCards, deck.Cards...)
			}
		}
		side := st.Settings.DefaultSide
		return tt.Dispatch(func(*tabletop.PresentState) (*tabletop.PresentState, error) {
			return tabletop.FromDeckCards(s.newID, deckCards, side), nil
		}, s.historyLimit)
	})
}

// Undo steps a tabletop back one action.
func (s *Store) Undo(ctx context.Context, tabletopID string) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, ActionUndo, func(_ *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		return tt.Undo()
	})
}

// Redo re-applies the most recently undone action of a tabletop.
func (s *Store) Redo(ctx context.Context, tabletopID string) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, ActionRedo, func(_ *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		return tt.Redo()
	})
}

// SetAvailableDecks changes which decks a tabletop draws from.
func (s *Store) SetAvailableDecks(ctx context.Context, tabletopID string, deckIDs []string) (*tabletop.Tabletop, error) {
	return s.updateTabletop(ctx, tabletopID, ActionAvailableDecks, func(st *State, tt *tabletop.Tabletop) (*tabletop.Tabletop, error) {
		for _, id := range deckIDs {
			if !st.Decks.Has(id) {
				return nil, fmt.Errorf("%w: deck %s", cards.ErrNotFound, id)
			}
		}
		return tt.WithAvailableDecks(deckIDs), nil
	})
}
