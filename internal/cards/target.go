package cards

import "fmt"

// Target identifies what a data edit applies to. It is a closed set:
// CardTarget, DeckTarget and NewCardTarget.
type Target interface {
	isTarget()
}

// CardTarget edits an existing card.
type CardTarget struct {
	CardID string
}

// DeckTarget edits the deck itself (its schema defaults).
type DeckTarget struct {
	DeckID string
}

// NewCardTarget creates a new card in the deck.
type NewCardTarget struct {
	DeckID string
}

func (CardTarget) isTarget()    {}
func (DeckTarget) isTarget()    {}
func (NewCardTarget) isTarget() {}

// Target kinds used on the wire.
const (
	TargetKindCard      = "card"
	TargetKindDeck      = "deck"
	TargetKindNewInDeck = "new-card-in-deck"
)

// ParseTarget builds a Target from its wire kind and id.
func ParseTarget(kind, id string) (Target, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrUnknownTarget)
	}
	switch kind {
	case TargetKindCard:
		return CardTarget{CardID: id}, nil
	case TargetKindDeck:
		return DeckTarget{DeckID: id}, nil
	case TargetKindNewInDeck:
		return NewCardTarget{DeckID: id}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownTarget, kind)
	}
}

// TargetKind returns the wire kind of a target.
func TargetKind(t Target) (string, error) {
	switch t.(type) {
	case CardTarget:
		return TargetKindCard, nil
	case DeckTarget:
		return TargetKindDeck, nil
	case NewCardTarget:
		return TargetKindNewInDeck, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownTarget, t)
	}
}
