package importer

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// Reserved card file columns. They configure the card instead of becoming
// data items.
const (
	columnID       = "id"
	columnQuantity = "quantity"
)

// ToImportedDeck converts a feed deck into a deck and its cards.
//
// Ids are derived from the feed so that re-importing a deck updates it in
// place: data items are "<deck>:<column>" and cards are "<deck>:<id column>"
// or "<deck>:<row number>". A card file column may carry a type hint after a
// colon, such as "power:number".
func ToImportedDeck(fd FeedDeck) (state.ImportedDeck, error) {
	deckID := fd.Prop("id")
	if deckID == "" {
		return state.ImportedDeck{}, fmt.Errorf("%w: deck without id", ErrInvalidFeed)
	}
	name := fd.Prop("name")
	if name == "" {
		name = deckID
	}

	now := time.Now().UTC()
	deck := &cards.Deck{
		ID:              deckID,
		Name:            name,
		Description:     fd.Prop("description"),
		Cards:           []cards.DeckCard{},
		DataSchema:      map[string]cards.DataItem{},
		DataSchemaOrder: []string{},
		Templates: cards.DeckTemplates{
			Front: cards.TemplateBinding{TemplateID: cards.TemplatePlayingCardID, DataTemplateMapping: map[string]cards.MappingItem{}},
			Back:  cards.TemplateBinding{TemplateID: cards.TemplateCardBackID, DataTemplateMapping: map[string]cards.MappingItem{}},
		},
		Status:     cards.StatusActive,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if size := cards.CardSize(fd.Prop("cardSize")); size != "" {
		switch size {
		case cards.CardSizeSmall, cards.CardSizeMedium, cards.CardSizeLarge:
			deck.CardSize = size
		default:
			return state.ImportedDeck{}, fmt.Errorf("%w: deck %s has unknown card size %q", ErrInvalidFeed, deckID, size)
		}
	}

	columns := fd.Columns
	if columns == nil {
		columns = dataColumns(fd.Data)
	}
	itemByColumn := make(map[string]cards.DataItem, len(columns))
	for _, col := range columns {
		if col == columnID || col == columnQuantity {
			continue
		}
		itemName, dataType, err := parseColumn(col)
		if err != nil {
			return state.ImportedDeck{}, fmt.Errorf("deck %s: %w", deckID, err)
		}
		key := slug(itemName)
		if key == "" {
			key = fmt.Sprintf("item-%d", len(deck.DataSchemaOrder)+1)
		}
		item := cards.DataItem{
			ID:           deckID + ":" + key,
			Name:         itemName,
			Type:         dataType,
			DefaultValue: zeroValue(dataType),
		}
		if _, dup := deck.DataSchema[item.ID]; dup {
			return state.ImportedDeck{}, fmt.Errorf("%w: deck %s has duplicate column %q", ErrInvalidFeed, deckID, itemName)
		}
		deck.DataSchema[item.ID] = item
		deck.DataSchemaOrder = append(deck.DataSchemaOrder, item.ID)
		itemByColumn[col] = item
	}
	mapFrontSlots(deck)

	out := state.ImportedDeck{Deck: deck, Cards: make([]*cards.Card, 0, len(fd.Data))}
	seen := make(map[string]struct{}, len(fd.Data))
	for i, row := range fd.Data {
		cardID := fmt.Sprintf("%s:%d", deckID, i+1)
		if id := strings.TrimSpace(row[columnID]); id != "" {
			cardID = deckID + ":" + id
		}
		if _, dup := seen[cardID]; dup {
			return state.ImportedDeck{}, fmt.Errorf("%w: deck %s row %d repeats card %s", ErrInvalidFeed, deckID, i+1, cardID)
		}
		seen[cardID] = struct{}{}

		quantity := 1
		if raw := strings.TrimSpace(row[columnQuantity]); raw != "" {
			q, err := strconv.Atoi(raw)
			if err != nil || q < 0 {
				return state.ImportedDeck{}, fmt.Errorf("%w: deck %s row %d has quantity %q", ErrInvalidFeed, deckID, i+1, raw)
			}
			quantity = q
		}

		card := &cards.Card{ID: cardID, DeckID: deckID, Data: deck.DefaultData(), Status: cards.StatusActive}
		for col, item := range itemByColumn {
			raw, ok := row[col]
			if !ok || strings.TrimSpace(raw) == "" {
				continue
			}
			v, err := cards.NewValue(item.Type, raw)
			if err != nil {
				return state.ImportedDeck{}, fmt.Errorf("deck %s row %d column %q: %w", deckID, i+1, item.Name, err)
			}
			card.Data[item.ID] = v
		}
		out.Cards = append(out.Cards, card)
		deck.Cards = append(deck.Cards, cards.DeckCard{CardID: cardID, Quantity: quantity})
	}
	return out, nil
}

// ToImportedDecks converts the enabled decks of a feed. A deck whose
// "enabled" prop is false is skipped.
func ToImportedDecks(feed []FeedDeck) ([]state.ImportedDeck, error) {
	out := make([]state.ImportedDeck, 0, len(feed))
	ids := make(map[string]struct{}, len(feed))
	for _, fd := range feed {
		if enabled, ok := fd.BoolProp("enabled"); ok && !enabled {
			continue
		}
		deck, err := ToImportedDeck(fd)
		if err != nil {
			return nil, err
		}
		if _, dup := ids[deck.Deck.ID]; dup {
			return nil, fmt.Errorf("%w: deck %s listed twice", ErrInvalidFeed, deck.Deck.ID)
		}
		ids[deck.Deck.ID] = struct{}{}
		out = append(out, deck)
	}
	return out, nil
}

// mapFrontSlots maps each playing-card slot onto the data item of the same name.
func mapFrontSlots(deck *cards.Deck) {
	for _, tpl := range cards.BuiltInTemplates() {
		if tpl.ID != deck.Templates.Front.TemplateID {
			continue
		}
		for _, slotID := range tpl.SchemaOrder {
			slot := tpl.Schema[slotID]
			for _, itemID := range deck.DataSchemaOrder {
				item := deck.DataSchema[itemID]
				if strings.EqualFold(item.Name, slot.Name) && item.Type == slot.Type {
					deck.Templates.Front.DataTemplateMapping[slotID] = cards.MappingItem{DataItemID: itemID}
					break
				}
			}
		}
	}
}

// dataColumns returns the sorted union of keys of rows without a header.
func dataColumns(rows []map[string]string) []string {
	set := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return cols
}

func parseColumn(col string) (string, cards.DataType, error) {
	name, hint, found := strings.Cut(col, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: empty column name", ErrInvalidFeed)
	}
	if !found {
		return name, cards.DataTypeText, nil
	}
	switch t := cards.DataType(strings.ToLower(strings.TrimSpace(hint))); t {
	case cards.DataTypeText, cards.DataTypeNumber, cards.DataTypeBoolean, cards.DataTypeColor:
		return name, t, nil
	default:
		return "", "", fmt.Errorf("%w: column %q has unknown type %q", ErrInvalidFeed, name, hint)
	}
}

func zeroValue(t cards.DataType) cards.Value {
	switch t {
	case cards.DataTypeNumber:
		return cards.Value{Type: t, Value: "0"}
	case cards.DataTypeBoolean:
		return cards.Value{Type: t, Value: "false"}
	case cards.DataTypeColor:
		return cards.Value{Type: t, Value: "#000000"}
	default:
		return cards.TextValue("")
	}
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
