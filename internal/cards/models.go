// Package cards holds the canonical deck, card and template records and the
// normalized tables they are stored in.
package cards

import (
	"errors"
	"maps"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when a referenced deck, card or template is absent.
	ErrNotFound = errors.New("not found")

	// ErrBuiltInTemplate is returned when a caller tries to remove or
	// overwrite a built-in template.
	ErrBuiltInTemplate = errors.New("built-in template cannot be modified")

	// ErrInvalidValue is returned when a value does not match its data type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownTarget is returned by consumers of Target for unknown variants.
	ErrUnknownTarget = errors.New("unknown target")
)

// Status is the lifecycle status of a deck or card.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// CardSize is the physical size cards of a deck are rendered at.
type CardSize string

const (
	CardSizeSmall  CardSize = "small"
	CardSizeMedium CardSize = "medium"
	CardSizeLarge  CardSize = "large"

	DefaultCardSize = CardSizeMedium
)

// DeckCard is an entry of a deck's card list.
type DeckCard struct {
	CardID   string `json:"cardId"`
	Quantity int    `json:"quantity"`
}

// DataItem is a field of a deck's data schema.
type DataItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         DataType `json:"type"`
	DefaultValue Value    `json:"defaultValue"`
}

// MappingItem points a template slot at a deck data item.
type MappingItem struct {
	DataItemID string `json:"dataItemId"`
}

// TemplateBinding binds one card face to a template. DataTemplateMapping is
// keyed by the template's schema item id.
type TemplateBinding struct {
	TemplateID          string                 `json:"templateId"`
	DataTemplateMapping map[string]MappingItem `json:"dataTemplateMapping"`
}

// DeckTemplates holds the template bindings for both faces.
type DeckTemplates struct {
	Front TemplateBinding `json:"front"`
	Back  TemplateBinding `json:"back"`
}

// Deck is a user-authored collection of card definitions plus template bindings.
type Deck struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	CardSize          CardSize            `json:"cardSize"`
	Cards             []DeckCard          `json:"cards"`
	DataSchema        map[string]DataItem `json:"dataSchema"`
	DataSchemaOrder   []string            `json:"dataSchemaOrder"`
	DefaultTabletopID string              `json:"defaultTabletopId"`
	Templates         DeckTemplates       `json:"templates"`
	Status            Status              `json:"status"`
	CreatedAt         time.Time           `json:"createdAt"`
	ModifiedAt        time.Time           `json:"modifiedAt"`
}

// EntityID implements Entity.
func (d *Deck) EntityID() string { return d.ID }

// Clone returns a deep copy of the deck.
func (d *Deck) Clone() *Deck {
	cp := *d
	cp.Cards = slices.Clone(d.Cards)
	cp.DataSchema = maps.Clone(d.DataSchema)
	cp.DataSchemaOrder = slices.Clone(d.DataSchemaOrder)
	cp.Templates = DeckTemplates{
		Front: d.Templates.Front.clone(),
		Back:  d.Templates.Back.clone(),
	}
	return &cp
}

// IsActive reports whether the deck has not been soft-deleted.
func (d *Deck) IsActive() bool { return d.Status != StatusDeleted }

// CardQuantity returns the quantity of a card in the deck, 0 if absent.
func (d *Deck) CardQuantity(cardID string) int {
	for _, dc := range d.Cards {
		if dc.CardID == cardID {
			return dc.Quantity
		}
	}
	return 0
}

// TotalCards returns the number of physical copies described by the deck.
func (d *Deck) TotalCards() int {
	total := 0
	for _, dc := range d.Cards {
		total += dc.Quantity
	}
	return total
}

// DefaultData returns a fresh data map populated from the schema defaults.
func (d *Deck) DefaultData() map[string]Value {
	data := make(map[string]Value, len(d.DataSchema))
	for id, item := range d.DataSchema {
		data[id] = item.DefaultValue
	}
	return data
}

func (b TemplateBinding) clone() TemplateBinding {
	return TemplateBinding{
		TemplateID:          b.TemplateID,
		DataTemplateMapping: maps.Clone(b.DataTemplateMapping),
	}
}

// Card is an abstract data record belonging to one deck.
type Card struct {
	ID     string           `json:"id"`
	DeckID string           `json:"deckId"`
	Data   map[string]Value `json:"data"`
	Status Status           `json:"status"`
}

// EntityID implements Entity.
func (c *Card) EntityID() string { return c.ID }

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	cp := *c
	cp.Data = maps.Clone(c.Data)
	return &cp
}

// SchemaItem is a data slot exposed by a template.
type SchemaItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         DataType `json:"type"`
	DefaultValue Value    `json:"defaultValue"`
}

// Template defines the markup of a card face and the data slots it renders.
type Template struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Schema      map[string]SchemaItem `json:"schema"`
	SchemaOrder []string              `json:"schemaOrder"`
	Markup      string                `json:"markup"`
}

// EntityID implements Entity.
func (t *Template) EntityID() string { return t.ID }

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	cp := *t
	cp.Schema = maps.Clone(t.Schema)
	cp.SchemaOrder = slices.Clone(t.SchemaOrder)
	return &cp
}

// IsBuiltIn reports whether the template ships with the application.
func (t *Template) IsBuiltIn() bool { return IsBuiltInTemplateID(t.ID) }
