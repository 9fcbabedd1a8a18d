package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardtable/internal/cards"
	"github.com/ramonehamilton/cardtable/internal/importer"
	"github.com/ramonehamilton/cardtable/internal/state"
)

func pokerFeed() importer.FeedDeck {
	return importer.FeedDeck{
		Props:   map[string]any{"id": "poker", "name": "Poker", "description": "Standard"},
		Columns: []string{"id", "quantity", "value", "suit", "power:number"},
		Data: []map[string]string{
			{"id": "as", "quantity": "2", "value": "A", "suit": "spades", "power": "14"},
			{"id": "kh", "value": "K", "suit": "hearts", "power": "13"},
		},
	}
}

func importedState(t *testing.T) *state.State {
	t.Helper()
	imported, err := importer.ToImportedDecks([]importer.FeedDeck{pokerFeed()})
	require.NoError(t, err)
	store := state.NewStore(nil, state.Options{})
	require.NoError(t, store.ImportDecks(context.Background(), imported))
	return store.Snapshot()
}

func TestDeckTable(t *testing.T) {
	st := importedState(t)

	table, err := DeckTable(st, "poker")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "quantity", "value:text", "suit:text", "power:number"}, table.Columns)
	assert.Equal(t, [][]string{
		{"as", "2", "A", "spades", "14"},
		{"kh", "1", "K", "hearts", "13"},
	}, table.Rows)
	assert.Equal(t, "Standard", table.Props["description"])

	_, err = DeckTable(st, "missing")
	assert.ErrorIs(t, err, cards.ErrNotFound)
}

func assertSameCards(t *testing.T, st *state.State, reimported state.ImportedDeck) {
	t.Helper()
	original := st.DeckCards("poker")
	require.Len(t, reimported.Cards, len(original))
	for i, card := range original {
		assert.Equal(t, card.ID, reimported.Cards[i].ID)
		assert.Equal(t, card.Data, reimported.Cards[i].Data)
	}
	deck, _ := st.Deck("poker")
	assert.Equal(t, deck.Cards, reimported.Deck.Cards)
	assert.Equal(t, deck.DataSchemaOrder, reimported.Deck.DataSchemaOrder)
}

func TestCSVReimports(t *testing.T) {
	st := importedState(t)
	table, err := DeckTable(st, "poker")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, NewExporter(Options{Format: FormatCSV, FilePath: filepath.Join(dir, "poker.csv")}).Export(table))
	require.NoError(t, os.WriteFile(filepath.Join(dir, importer.IndexFile),
		[]byte("id,name,cards\npoker,Poker,poker.csv\n"), 0o644))

	feed, err := importer.NewDirSource(dir).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 1)
	reimported, err := importer.ToImportedDeck(feed[0])
	require.NoError(t, err)
	assertSameCards(t, st, reimported)
}

func TestJSONReimports(t *testing.T) {
	st := importedState(t)
	table, err := DeckTable(st, "poker")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportToWriter(&buf, FormatJSON, table, true))

	var fd importer.FeedDeck
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fd))
	assert.Equal(t, "Poker", fd.Prop("name"))
	reimported, err := importer.ToImportedDeck(fd)
	require.NoError(t, err)
	assertSameCards(t, st, reimported)
}

func TestExporter_Overwrite(t *testing.T) {
	table := &Table{Columns: []string{"id"}, Rows: [][]string{{"a"}}}
	path := filepath.Join(t.TempDir(), "nested", "deck.csv")

	require.NoError(t, NewExporter(Options{Format: FormatCSV, FilePath: path}).Export(table))
	assert.Error(t, NewExporter(Options{Format: FormatCSV, FilePath: path}).Export(table))
	require.NoError(t, NewExporter(Options{Format: FormatCSV, FilePath: path, Overwrite: true}).Export(table))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id\na\n", string(data))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, ExportToWriter(&bytes.Buffer{}, Format("xml"), &Table{}, false), ErrUnsupportedFormat)
}
