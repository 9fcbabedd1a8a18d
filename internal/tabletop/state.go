// Package tabletop models the physical layout of cards during play: card
// instances arranged into ordered stacks.
//
// Every operation on a PresentState returns a new state and leaves its input
// untouched. Unchanged stacks and card instances are shared between the old
// and new state, which keeps history snapshots cheap and lets readers detect
// changes by pointer comparison.
//
// Index 0 of a stack is its top.
package tabletop

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNotFound is returned when a referenced stack or card instance is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTarget is returned when the destination of an operation does not exist.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrBelowMinimumStacks is returned when an operation would leave fewer
	// than MinStackCount stacks.
	ErrBelowMinimumStacks = errors.New("below minimum stack count")

	// ErrStaleReference is returned when the caller's view of stack membership
	// is out of date. It is always reported together with ErrNotFound.
	ErrStaleReference = errors.New("stale reference")

	// ErrDuplicateID is returned when a new stack or instance id is already in use.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidArgument is returned for malformed operation arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvariant is returned by Validate when the state is inconsistent.
	ErrInvariant = errors.New("tabletop invariant violated")
)

// MinStackCount is the fewest stacks a tabletop may have.
const MinStackCount = 2

// Append as a position inserts at the end (bottom) of a stack.
const Append = -1

// Side is the face of a card instance that is showing.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Flip returns the opposite side.
func (s Side) Flip() Side {
	if s == SideBack {
		return SideFront
	}
	return SideBack
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// IDFunc generates fresh ids for stacks and card instances.
type IDFunc func() string

// CardInstance is one physical copy of a card in play.
type CardInstance struct {
	ID     string `json:"cardInstanceId"`
	CardID string `json:"cardId"`
	Side   Side   `json:"side"`
}

// Stack is an ordered pile of card instance ids. Index 0 is the top.
type Stack struct {
	ID            string   `json:"id"`
	CardInstances []string `json:"cardInstances"`
}

// Len returns the number of instances in the stack.
func (s *Stack) Len() int { return len(s.CardInstances) }

// IndexOf returns the position of a card instance, or -1.
func (s *Stack) IndexOf(cardInstanceID string) int {
	return slices.Index(s.CardInstances, cardInstanceID)
}

// PresentState is the live layout of a tabletop.
type PresentState struct {
	StacksByID        map[string]*Stack        `json:"stacksById"`
	StackIDs          []string                 `json:"stacksIds"`
	CardInstancesByID map[string]*CardInstance `json:"cardInstancesById"`
}

// NewPresentState returns a state with no stacks.
func NewPresentState() *PresentState {
	return &PresentState{
		StacksByID:        map[string]*Stack{},
		StackIDs:          []string{},
		CardInstancesByID: map[string]*CardInstance{},
	}
}

// CreateInitStacks returns a state with MinStackCount empty stacks.
func CreateInitStacks(newID IDFunc) *PresentState {
	s := NewPresentState()
	for range MinStackCount {
		id := newID()
		s.StacksByID[id] = &Stack{ID: id, CardInstances: []string{}}
		s.StackIDs = append(s.StackIDs, id)
	}
	return s
}

// Stack returns a stack by id.
func (s *PresentState) Stack(stackID string) (*Stack, bool) {
	st, ok := s.StacksByID[stackID]
	return st, ok
}

// CardInstance returns a card instance by id.
func (s *PresentState) CardInstance(cardInstanceID string) (*CardInstance, bool) {
	ci, ok := s.CardInstancesByID[cardInstanceID]
	return ci, ok
}

// FindCardInstance returns the stack holding a card instance and its index.
func (s *PresentState) FindCardInstance(cardInstanceID string) (stackID string, index int, ok bool) {
	for _, id := range s.StackIDs {
		if i := s.StacksByID[id].IndexOf(cardInstanceID); i >= 0 {
			return id, i, true
		}
	}
	return "", -1, false
}

// CardInstanceCount returns the number of instances across all stacks.
func (s *PresentState) CardInstanceCount() int {
	n := 0
	for _, id := range s.StackIDs {
		n += s.StacksByID[id].Len()
	}
	return n
}

// HasCard reports whether any instance of the card is on the table.
func (s *PresentState) HasCard(cardID string) bool {
	for _, ci := range s.CardInstancesByID {
		if ci.CardID == cardID {
			return true
		}
	}
	return false
}

// Validate checks the referential invariants of the state:
// StackIDs is exactly the key set of StacksByID without duplicates, every
// instance referenced by a stack exists, and every instance is in exactly
// one stack.
func (s *PresentState) Validate() error {
	if len(s.StackIDs) != len(s.StacksByID) {
		return fmt.Errorf("%w: %d stack ids for %d stacks", ErrInvariant, len(s.StackIDs), len(s.StacksByID))
	}
	seenStacks := make(map[string]struct{}, len(s.StackIDs))
	membership := make(map[string]string, len(s.CardInstancesByID))
	for _, stackID := range s.StackIDs {
		if _, dup := seenStacks[stackID]; dup {
			return fmt.Errorf("%w: duplicate stack id %s", ErrInvariant, stackID)
		}
		seenStacks[stackID] = struct{}{}

		st, ok := s.StacksByID[stackID]
		if !ok {
			return fmt.Errorf("%w: stack id %s has no stack", ErrInvariant, stackID)
		}
		if st.ID != stackID {
			return fmt.Errorf("%w: stack %s stored under id %s", ErrInvariant, st.ID, stackID)
		}
		for _, ciID := range st.CardInstances {
			if _, ok := s.CardInstancesByID[ciID]; !ok {
				return fmt.Errorf("%w: stack %s references unknown card instance %s", ErrInvariant, stackID, ciID)
			}
			if other, dup := membership[ciID]; dup {
				return fmt.Errorf("%w: card instance %s is in stacks %s and %s", ErrInvariant, ciID, other, stackID)
			}
			membership[ciID] = stackID
		}
	}
	for ciID := range s.CardInstancesByID {
		if _, ok := membership[ciID]; !ok {
			return fmt.Errorf("%w: card instance %s is in no stack", ErrInvariant, ciID)
		}
	}
	return nil
}

// next returns a shallow copy of s whose maps and id list may be modified
// without affecting s. Stack and instance values are shared and must be
// replaced, never modified.
func (s *PresentState) next() *PresentState {
	cp := &PresentState{
		StacksByID:        make(map[string]*Stack, len(s.StacksByID)),
		StackIDs:          s.StackIDs,
		CardInstancesByID: make(map[string]*CardInstance, len(s.CardInstancesByID)),
	}
	for k, v := range s.StacksByID {
		cp.StacksByID[k] = v
	}
	for k, v := range s.CardInstancesByID {
		cp.CardInstancesByID[k] = v
	}
	return cp
}

// insertAt returns a new slice with id inserted at position. Positions
// outside [0, len] append.
func insertAt(ids []string, id string, position int) []string {
	if position < 0 || position > len(ids) {
		position = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:position]...)
	out = append(out, id)
	return append(out, ids[position:]...)
}

// removeAt returns a new slice without the element at index.
func removeAt(ids []string, index int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:index]...)
	return append(out, ids[index+1:]...)
}
