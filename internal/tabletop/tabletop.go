package tabletop

import (
	"fmt"
	"slices"

	"github.com/ramonehamilton/cardtable/internal/history"
)

// Mutation produces the next present state from the current one.
type Mutation func(*PresentState) (*PresentState, error)

// Tabletop is the root aggregate of a play session. It owns the stacks and
// card instances through the history of its present state.
type Tabletop struct {
	ID             string                         `json:"id"`
	AvailableDecks []string                       `json:"availableDecks"`
	History        history.History[*PresentState] `json:"history"`
}

// New returns a tabletop with an empty history.
func New(id string, availableDecks []string, present *PresentState) *Tabletop {
	return &Tabletop{
		ID:             id,
		AvailableDecks: slices.Clone(availableDecks),
		History:        history.New(present),
	}
}

// EntityID implements cards.Entity.
func (t *Tabletop) EntityID() string { return t.ID }

// Present returns the live state.
func (t *Tabletop) Present() *PresentState { return t.History.Present }

// Dispatch applies m to the present state and records the previous state
// for undo. The result is validated; an inconsistent result is rejected and
// the tabletop is left unchanged.
func (t *Tabletop) Dispatch(m Mutation, limit int) (*Tabletop, error) {
	h, err := t.History.Apply(func(present *PresentState) (*PresentState, error) {
		next, err := m(present)
		if err != nil {
			return nil, err
		}
		if err := next.Validate(); err != nil {
			return nil, fmt.Errorf("mutation on tabletop %s: %w", t.ID, err)
		}
		return next, nil
	}, limit)
	if err != nil {
		return t, err
	}
	return t.with(h), nil
}

// Undo steps back one dispatch.
func (t *Tabletop) Undo() (*Tabletop, error) {
	h, err := t.History.Undo()
	if err != nil {
		return t, err
	}
	return t.with(h), nil
}

// Redo re-applies the most recently undone dispatch.
func (t *Tabletop) Redo() (*Tabletop, error) {
	h, err := t.History.Redo()
	if err != nil {
		return t, err
	}
	return t.with(h), nil
}

// WithAvailableDecks returns a copy of the tabletop offering the given decks.
func (t *Tabletop) WithAvailableDecks(deckIDs []string) *Tabletop {
	cp := *t
	cp.AvailableDecks = slices.Clone(deckIDs)
	return &cp
}

// Reset returns a copy of the tabletop with present as its state and no
// undo or redo history.
func (t *Tabletop) Reset(present *PresentState) *Tabletop {
	return t.with(history.New(present))
}

// TrimHistory returns a copy of the tabletop whose undo and redo history
// fits in limit.
func (t *Tabletop) TrimHistory(limit int) *Tabletop {
	return t.with(t.History.Trim(limit))
}

// References reports whether the present, past or future state holds an
// instance of the card.
func (t *Tabletop) References(cardID string) bool {
	if t.Present().HasCard(cardID) {
		return true
	}
	for _, states := range [][]*PresentState{t.History.Past, t.History.Future} {
		for _, p := range states {
			if p.HasCard(cardID) {
				return true
			}
		}
	}
	return false
}

func (t *Tabletop) with(h history.History[*PresentState]) *Tabletop {
	cp := *t
	cp.History = h
	return &cp
}
