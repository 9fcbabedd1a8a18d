// Package selectors provides memoized read paths over state snapshots.
//
// A selector returns the identical slice for repeated calls as long as the
// part of the state it reads is unchanged, even when other parts of the
// state have moved on. Returned slices are shared and must not be modified.
package selectors

import (
	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

type stackKey struct {
	tabletopID string
	stackID    string
	limit      int
}

// sliceDep identifies a slice by its first element and length.
type sliceDep struct {
	first *string
	n     int
}

func depOf(ids []string) sliceDep {
	if len(ids) == 0 {
		return sliceDep{}
	}
	return sliceDep{first: &ids[0], n: len(ids)}
}

// Selectors holds the memo caches. It is safe for concurrent use.
type Selectors struct {
	stackIDs         *memo[string, []string]
	firstX           *memo[stackKey, []string]
	hasCardInstances *memo[string, bool]
	deckCards        *memo[string, []*cards.Card]
	activeDecks      *memo[struct{}, []*cards.Deck]
}

// New creates an empty set of selectors.
func New() *Selectors {
	return &Selectors{
		stackIDs:         newMemo[string, []string](),
		firstX:           newMemo[stackKey, []string](),
		hasCardInstances: newMemo[string, bool](),
		deckCards:        newMemo[string, []*cards.Card](),
		activeDecks:      newMemo[struct{}, []*cards.Deck](),
	}
}

func present(st *state.State, tabletopID string) *tabletop.PresentState {
	tt, ok := st.Tabletop(tabletopID)
	if !ok {
		return nil
	}
	return tt.Present()
}

// StackIDs returns the stack order of a tabletop, or nil if the tabletop is unknown.
func (s *Selectors) StackIDs(st *state.State, tabletopID string) []string {
	p := present(st, tabletopID)
	if p == nil {
		return nil
	}
	return s.stackIDs.get(tabletopID, depOf(p.StackIDs), func() []string {
		return append([]string{}, p.StackIDs...)
	})
}

// FirstXCardInstances returns up to limit card instance ids from the top of
// a stack. It returns nil both when the stack does not exist and when it is
// empty; use Stack to tell the two apart.
func (s *Selectors) FirstXCardInstances(st *state.State, tabletopID, stackID string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	p := present(st, tabletopID)
	if p == nil {
		return nil
	}
	stack, ok := p.Stack(stackID)
	if !ok || stack.Len() == 0 {
		return nil
	}
	key := stackKey{tabletopID: tabletopID, stackID: stackID, limit: limit}
	return s.firstX.get(key, stack, func() []string {
		n := min(limit, stack.Len())
		return append([]string(nil), stack.CardInstances[:n]...)
	})
}

// DoesTabletopHaveCardInstances reports whether any stack of the tabletop
// holds a card instance that resolves. Unknown tabletops have none.
func (s *Selectors) DoesTabletopHaveCardInstances(st *state.State, tabletopID string) bool {
	p := present(st, tabletopID)
	if p == nil {
		return false
	}
	return s.hasCardInstances.get(tabletopID, p, func() bool {
		for _, stackID := range p.StackIDs {
			for _, ciID := range p.StacksByID[stackID].CardInstances {
				if _, ok := p.CardInstance(ciID); ok {
					return true
				}
			}
		}
		return false
	})
}

// Stack returns a stack of a tabletop.
func (s *Selectors) Stack(st *state.State, tabletopID, stackID string) (*tabletop.Stack, bool) {
	p := present(st, tabletopID)
	if p == nil {
		return nil, false
	}
	return p.Stack(stackID)
}

// CardInstance returns a card instance of a tabletop.
func (s *Selectors) CardInstance(st *state.State, tabletopID, cardInstanceID string) (*tabletop.CardInstance, bool) {
	p := present(st, tabletopID)
	if p == nil {
		return nil, false
	}
	return p.CardInstance(cardInstanceID)
}

// StackCount returns the number of instances in a stack, 0 when it is unknown.
func (s *Selectors) StackCount(st *state.State, tabletopID, stackID string) int {
	stack, ok := s.Stack(st, tabletopID, stackID)
	if !ok {
		return 0
	}
	return stack.Len()
}

// DeckCards returns the cards of a deck in deck list order, or nil if the
// deck is unknown. The result is reused until the deck or one of its own
// cards changes.
func (s *Selectors) DeckCards(st *state.State, deckID string) []*cards.Card {
	deck, ok := st.Deck(deckID)
	if !ok {
		return nil
	}
	return s.deckCards.getIf(deckID, deck, func(cached []*cards.Card) bool {
		return sameCards(st, deck, cached)
	}, func() []*cards.Card {
		return st.DeckCards(deckID)
	})
}

// sameCards reports whether the deck's cards still resolve to cached.
func sameCards(st *state.State, deck *cards.Deck, cached []*cards.Card) bool {
	i := 0
	for _, dc := range deck.Cards {
		c, ok := st.Cards.Get(dc.CardID)
		if !ok {
			continue
		}
		if i >= len(cached) || cached[i] != c {
			return false
		}
		i++
	}
	return i == len(cached)
}

// ActiveDecks returns the decks that are not soft-deleted, in creation order.
func (s *Selectors) ActiveDecks(st *state.State) []*cards.Deck {
	return s.activeDecks.get(struct{}{}, st.Decks, func() []*cards.Deck {
		out := []*cards.Deck{}
		for _, d := range st.Decks.All() {
			if d.IsActive() {
				out = append(out, d)
			}
		}
		return out
	})
}
