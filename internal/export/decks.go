package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/importer"
	"github.com/ramonehamilton/cardtable/internal/state"
)

// Table is a deck laid out as a card file.
type Table struct {
	Props   map[string]any
	Columns []string
	Rows    [][]string
}

// Feed returns the table as a feed deck.
func (t *Table) Feed() importer.FeedDeck {
	fd := importer.FeedDeck{Props: t.Props, Columns: t.Columns, Data: make([]map[string]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		record := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			record[col] = row[i]
		}
		fd.Data = append(fd.Data, record)
	}
	return fd
}

// DeckTable lays out a deck's cards in deck list order. The first two
// columns are id and quantity; each data item follows as "<name>:<type>".
// Card ids lose the "<deck>:" prefix the importer adds, so importing the
// table as the same deck reproduces the ids.
func DeckTable(st *state.State, deckID string) (*Table, error) {
	deck, ok := st.Deck(deckID)
	if !ok {
		return nil, fmt.Errorf("%w: deck %s", cards.ErrNotFound, deckID)
	}

	t := &Table{
		Props: map[string]any{
			"id":   deck.ID,
			"name": deck.Name,
		},
		Columns: []string{"id", "quantity"},
		Rows:    make([][]string, 0, len(deck.Cards)),
	}
	if deck.Description != "" {
		t.Props["description"] = deck.Description
	}
	if deck.CardSize != "" {
		t.Props["cardSize"] = string(deck.CardSize)
	}

	items := make([]cards.DataItem, 0, len(deck.DataSchemaOrder))
	for i, id := range deck.DataSchemaOrder {
		item := deck.DataSchema[id]
		items = append(items, item)
		name := strings.TrimSpace(strings.ReplaceAll(item.Name, ":", " "))
		if name == "" {
			name = fmt.Sprintf("item-%d", i+1)
		}
		t.Columns = append(t.Columns, name+":"+string(item.Type))
	}

	for _, dc := range deck.Cards {
		card, ok := st.Cards.Get(dc.CardID)
		if !ok {
			continue
		}
		row := make([]string, 0, len(t.Columns))
		row = append(row, strings.TrimPrefix(card.ID, deck.ID+":"), strconv.Itoa(dc.Quantity))
		for _, item := range items {
			v, ok := card.Data[item.ID]
			if !ok {
				v = item.DefaultValue
			}
			row = append(row, v.Value)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
