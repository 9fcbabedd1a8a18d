// Package state holds the application state (entity tables, tabletops and
// settings) and the single-writer Store every mutation goes through.
//
// A *State is an immutable snapshot. Updates build the next snapshot by
// cloning only the tables they write to, so unchanged tables, entities and
// tabletop states are shared between snapshots.
package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/tabletop"
)

var (
	// ErrAlreadyExists is returned when creating an entity whose id is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvariant is returned when an update would leave the state inconsistent.
	ErrInvariant = errors.New("state invariant violated")

	// ErrInvalidSettings is returned when settings values are out of range.
	ErrInvalidSettings = errors.New("invalid settings")
)

// NewID returns a fresh random id.
func NewID() string {
	return uuid.NewString()
}

// Settings are the user preferences stored alongside the entity tables.
type Settings struct {
	// DefaultSide is the side new card instances show.
	DefaultSide tabletop.Side `json:"defaultSide"`
	// DrawCount is the number of cards a draw moves when none is given.
	DrawCount int `json:"drawCount"`
	// DefaultCardSize is used for new decks.
	DefaultCardSize cards.CardSize `json:"defaultCardSize"`
	// DeveloperMode exposes raw state in the API.
	DeveloperMode bool `json:"developerMode"`
}

// DefaultSettings returns the settings used for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		DefaultSide:     tabletop.SideBack,
		DrawCount:       1,
		DefaultCardSize: cards.DefaultCardSize,
	}
}

// Validate checks the settings values.
func (s Settings) Validate() error {
	if !s.DefaultSide.Valid() {
		return fmt.Errorf("%w: default side %q", ErrInvalidSettings, s.DefaultSide)
	}
	if s.DrawCount < 1 {
		return fmt.Errorf("%w: draw count must be at least 1, got %d", ErrInvalidSettings, s.DrawCount)
	}
	switch s.DefaultCardSize {
	case cards.CardSizeSmall, cards.CardSizeMedium, cards.CardSizeLarge:
	default:
		return fmt.Errorf("%w: card size %q", ErrInvalidSettings, s.DefaultCardSize)
	}
	return nil
}

// State is one snapshot of the application state.
type State struct {
	Decks     *cards.Table[*cards.Deck]        `json:"decks"`
	Cards     *cards.Table[*cards.Card]        `json:"cards"`
	Templates *cards.Table[*cards.Template]    `json:"templates"`
	Tabletops *cards.Table[*tabletop.Tabletop] `json:"tabletops"`
	Settings  Settings                         `json:"settings"`
}

// New returns an empty state with the built-in templates seeded.
func New() *State {
	s := &State{
		Decks:     cards.NewTable[*cards.Deck](),
		Cards:     cards.NewTable[*cards.Card](),
		Templates: cards.NewTable[*cards.Template](),
		Tabletops: cards.NewTable[*tabletop.Tabletop](),
		Settings:  DefaultSettings(),
	}
	cards.SeedBuiltInTemplates(s.Templates)
	return s
}

// Normalize fills missing tables and restores built-in templates. It is used
// on states decoded from storage.
func (s *State) Normalize() {
	if s.Decks == nil {
		s.Decks = cards.NewTable[*cards.Deck]()
	}
	if s.Cards == nil {
		s.Cards = cards.NewTable[*cards.Card]()
	}
	if s.Templates == nil {
		s.Templates = cards.NewTable[*cards.Template]()
	}
	if s.Tabletops == nil {
		s.Tabletops = cards.NewTable[*tabletop.Tabletop]()
	}
	if s.Settings == (Settings{}) {
		s.Settings = DefaultSettings()
	}
	cards.SeedBuiltInTemplates(s.Templates)
}

// trimHistories caps every tabletop history at limit, e.g. after the limit
// was lowered between runs.
func (s *State) trimHistories(limit int) {
	if s.Tabletops == nil {
		return
	}
	var trimmed *cards.Table[*tabletop.Tabletop]
	for _, tt := range s.Tabletops.All() {
		h := tt.History
		if len(h.Past)+len(h.Future) <= limit {
			continue
		}
		if trimmed == nil {
			trimmed = s.Tabletops.Clone()
		}
		trimmed.Upsert(tt.TrimHistory(limit))
	}
	if trimmed != nil {
		s.Tabletops = trimmed
	}
}

// Deck returns a deck by id.
func (s *State) Deck(id string) (*cards.Deck, bool) { return s.Decks.Get(id) }

// Card returns a card by id.
func (s *State) Card(id string) (*cards.Card, bool) { return s.Cards.Get(id) }

// Template returns a template by id.
func (s *State) Template(id string) (*cards.Template, bool) { return s.Templates.Get(id) }

// Tabletop returns a tabletop by id.
func (s *State) Tabletop(id string) (*tabletop.Tabletop, bool) { return s.Tabletops.Get(id) }

// DeckCards returns the cards belonging to a deck, in deck list order.
func (s *State) DeckCards(deckID string) []*cards.Card {
	deck, ok := s.Decks.Get(deckID)
	if !ok {
		return nil
	}
	out := make([]*cards.Card, 0, len(deck.Cards))
	for _, dc := range deck.Cards {
		if c, ok := s.Cards.Get(dc.CardID); ok {
			out = append(out, c)
		}
	}
	return out
}

// CheckDeckIntegrity verifies that every card listed by the deck exists and
// belongs to it, and that its default tabletop only references those cards.
func (s *State) CheckDeckIntegrity(deckID string) error {
	deck, ok := s.Decks.Get(deckID)
	if !ok {
		return fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
	}
	listed := make(map[string]struct{}, len(deck.Cards))
	for _, dc := range deck.Cards {
		c, ok := s.Cards.Get(dc.CardID)
		if !ok {
			return fmt.Errorf("%w: deck %s lists missing card %s", ErrInvariant, deckID, dc.CardID)
		}
		if c.DeckID != deckID {
			return fmt.Errorf("%w: deck %s lists card %s of deck %s", ErrInvariant, deckID, c.ID, c.DeckID)
		}
		if dc.Quantity < 0 {
			return fmt.Errorf("%w: deck %s has negative quantity for card %s", ErrInvariant, deckID, c.ID)
		}
		listed[dc.CardID] = struct{}{}
	}
	if deck.DefaultTabletopID == "" {
		return nil
	}
	tt, ok := s.Tabletops.Get(deck.DefaultTabletopID)
	if !ok {
		return fmt.Errorf("%w: deck %s has no tabletop %s", ErrInvariant, deckID, deck.DefaultTabletopID)
	}
	for _, ci := range tt.Present().CardInstancesByID {
		if _, ok := listed[ci.CardID]; !ok {
			if _, exists := s.Cards.Get(ci.CardID); !exists {
				return fmt.Errorf("%w: tabletop %s references missing card %s", ErrInvariant, tt.ID, ci.CardID)
			}
		}
	}
	return nil
}
