package tabletop

import (
	"fmt"
	"slices"

	"github.com/ramonehamilton/cardtable/internal/cards"
)

// AddCardInstance creates a card instance and inserts it into the target
// stack at position. Use Append to put it at the bottom.
func (s *PresentState) AddCardInstance(cardInstanceID, cardID string, side Side, targetStackID string, position int) (*PresentState, error) {
	if cardInstanceID == "" || cardID == "" {
		return nil, fmt.Errorf("%w: card instance and card ids are required", ErrInvalidArgument)
	}
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidArgument, side)
	}
	target, ok := s.StacksByID[targetStackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrInvalidTarget, targetStackID)
	}
	if _, exists := s.CardInstancesByID[cardInstanceID]; exists {
		return nil, fmt.Errorf("%w: card instance %s", ErrDuplicateID, cardInstanceID)
	}

	n := s.next()
	n.CardInstancesByID[cardInstanceID] = &CardInstance{ID: cardInstanceID, CardID: cardID, Side: side}
	n.StacksByID[targetStackID] = &Stack{ID: targetStackID, CardInstances: insertAt(target.CardInstances, cardInstanceID, position)}
	return n, nil
}

// MoveCardInstance removes a card instance from one stack and inserts it into
// another (or the same) stack at position, as one step. The instance must
// currently be in fromStackID; otherwise the caller's view is stale and the
// error matches both ErrNotFound and ErrStaleReference.
func (s *PresentState) MoveCardInstance(cardInstanceID, fromStackID, toStackID string, position int) (*PresentState, error) {
	from, ok := s.StacksByID[fromStackID]
	if !ok {
		return nil, fmt.Errorf("%w: %w: stack %s", ErrStaleReference, ErrNotFound, fromStackID)
	}
	to, ok := s.StacksByID[toStackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrInvalidTarget, toStackID)
	}
	index := from.IndexOf(cardInstanceID)
	if index < 0 {
		return nil, fmt.Errorf("%w: %w: card instance %s is not in stack %s", ErrStaleReference, ErrNotFound, cardInstanceID, fromStackID)
	}

	n := s.next()
	remaining := removeAt(from.CardInstances, index)
	if fromStackID == toStackID {
		n.StacksByID[toStackID] = &Stack{ID: toStackID, CardInstances: insertAt(remaining, cardInstanceID, position)}
		return n, nil
	}
	n.StacksByID[fromStackID] = &Stack{ID: fromStackID, CardInstances: remaining}
	n.StacksByID[toStackID] = &Stack{ID: toStackID, CardInstances: insertAt(to.CardInstances, cardInstanceID, position)}
	return n, nil
}

// FlipCardInstance toggles the side a card instance shows.
func (s *PresentState) FlipCardInstance(cardInstanceID string) (*PresentState, error) {
	ci, ok := s.CardInstancesByID[cardInstanceID]
	if !ok {
		return nil, fmt.Errorf("%w: card instance %s", ErrNotFound, cardInstanceID)
	}
	n := s.next()
	n.CardInstancesByID[cardInstanceID] = &CardInstance{ID: ci.ID, CardID: ci.CardID, Side: ci.Side.Flip()}
	return n, nil
}

// FlipStack turns a whole stack over: every instance changes side and the
// order reverses, so the old bottom becomes the new top.
func (s *PresentState) FlipStack(stackID string) (*PresentState, error) {
	st, ok := s.StacksByID[stackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrNotFound, stackID)
	}
	n := s.next()
	reversed := slices.Clone(st.CardInstances)
	slices.Reverse(reversed)
	for _, ciID := range reversed {
		ci := s.CardInstancesByID[ciID]
		n.CardInstancesByID[ciID] = &CardInstance{ID: ci.ID, CardID: ci.CardID, Side: ci.Side.Flip()}
	}
	n.StacksByID[stackID] = &Stack{ID: stackID, CardInstances: reversed}
	return n, nil
}

// AddStack inserts a new empty stack at position in the stack order.
func (s *PresentState) AddStack(stackID string, position int) (*PresentState, error) {
	if stackID == "" {
		return nil, fmt.Errorf("%w: stack id is required", ErrInvalidArgument)
	}
	if _, exists := s.StacksByID[stackID]; exists {
		return nil, fmt.Errorf("%w: stack %s", ErrDuplicateID, stackID)
	}
	n := s.next()
	n.StacksByID[stackID] = &Stack{ID: stackID, CardInstances: []string{}}
	n.StackIDs = insertAt(s.StackIDs, stackID, position)
	return n, nil
}

// RemoveStack removes a stack. Its card instances are appended to the first
// remaining stack rather than dropped. Removing a stack that would leave
// fewer than MinStackCount stacks fails with ErrBelowMinimumStacks.
func (s *PresentState) RemoveStack(stackID string) (*PresentState, error) {
	removed, ok := s.StacksByID[stackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrNotFound, stackID)
	}
	if len(s.StackIDs)-1 < MinStackCount {
		return nil, fmt.Errorf("%w: %d stacks remaining", ErrBelowMinimumStacks, len(s.StackIDs))
	}

	n := s.next()
	n.StackIDs = removeAt(s.StackIDs, slices.Index(s.StackIDs, stackID))
	delete(n.StacksByID, stackID)

	if removed.Len() > 0 {
		fallbackID := n.StackIDs[0]
		fallback := s.StacksByID[fallbackID]
		merged := make([]string, 0, fallback.Len()+removed.Len())
		merged = append(merged, fallback.CardInstances...)
		merged = append(merged, removed.CardInstances...)
		n.StacksByID[fallbackID] = &Stack{ID: fallbackID, CardInstances: merged}
	}
	return n, nil
}

// ShuffleStack returns a state with the stack's instances permuted by a
// Fisher-Yates shuffle driven by rng.
func (s *PresentState) ShuffleStack(stackID string, rng RNG) (*PresentState, error) {
	st, ok := s.StacksByID[stackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrNotFound, stackID)
	}
	shuffled := slices.Clone(st.CardInstances)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	n := s.next()
	n.StacksByID[stackID] = &Stack{ID: stackID, CardInstances: shuffled}
	return n, nil
}

// DrawCards moves the top count instances of one stack onto the top of
// another, keeping their order. Asking for more than the stack holds moves
// everything.
func (s *PresentState) DrawCards(fromStackID, toStackID string, count int) (*PresentState, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidArgument, count)
	}
	from, ok := s.StacksByID[fromStackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrNotFound, fromStackID)
	}
	to, ok := s.StacksByID[toStackID]
	if !ok {
		return nil, fmt.Errorf("%w: stack %s", ErrInvalidTarget, toStackID)
	}
	if fromStackID == toStackID {
		return nil, fmt.Errorf("%w: cannot draw from a stack onto itself", ErrInvalidArgument)
	}
	count = min(count, from.Len())

	drawn := from.CardInstances[:count]
	toIDs := make([]string, 0, to.Len()+count)
	toIDs = append(toIDs, drawn...)
	toIDs = append(toIDs, to.CardInstances...)

	n := s.next()
	n.StacksByID[fromStackID] = &Stack{ID: fromStackID, CardInstances: slices.Clone(from.CardInstances[count:])}
	n.StacksByID[toStackID] = &Stack{ID: toStackID, CardInstances: toIDs}
	return n, nil
}

// FromDeckCards builds the initial layout for a deck: MinStackCount stacks
// with one instance per card copy, all in the first stack in deck order.
func FromDeckCards(newID IDFunc, deckCards []cards.DeckCard, side Side) *PresentState {
	s := CreateInitStacks(newID)
	first := s.StacksByID[s.StackIDs[0]]
	ids := make([]string, 0)
	for _, dc := range deckCards {
		for range dc.Quantity {
			ciID := newID()
			s.CardInstancesByID[ciID] = &CardInstance{ID: ciID, CardID: dc.CardID, Side: side}
			ids = append(ids, ciID)
		}
	}
	s.StacksByID[first.ID] = &Stack{ID: first.ID, CardInstances: ids}
	return s
}

// RemapCards returns a copy of s whose instances reference new card ids,
// using fresh instance and stack ids. Instances whose card is not in
// cardIDs are dropped.
func (s *PresentState) RemapCards(newID IDFunc, cardIDs map[string]string) *PresentState {
	out := NewPresentState()
	for _, stackID := range s.StackIDs {
		newStackID := newID()
		ids := make([]string, 0, s.StacksByID[stackID].Len())
		for _, ciID := range s.StacksByID[stackID].CardInstances {
			ci := s.CardInstancesByID[ciID]
			mapped, ok := cardIDs[ci.CardID]
			if !ok {
				continue
			}
			newCI := &CardInstance{ID: newID(), CardID: mapped, Side: ci.Side}
			out.CardInstancesByID[newCI.ID] = newCI
			ids = append(ids, newCI.ID)
		}
		out.StacksByID[newStackID] = &Stack{ID: newStackID, CardInstances: ids}
		out.StackIDs = append(out.StackIDs, newStackID)
	}
	return out
}

// RemoveCard drops every instance of a card from the state.
func (s *PresentState) RemoveCard(cardID string) *PresentState {
	n := s.next()
	for _, stackID := range s.StackIDs {
		st := s.StacksByID[stackID]
		kept := make([]string, 0, st.Len())
		for _, ciID := range st.CardInstances {
			if s.CardInstancesByID[ciID].CardID == cardID {
				delete(n.CardInstancesByID, ciID)
				continue
			}
			kept = append(kept, ciID)
		}
		if len(kept) != st.Len() {
			n.StacksByID[stackID] = &Stack{ID: stackID, CardInstances: kept}
		}
	}
	return n
}
