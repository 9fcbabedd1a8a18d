// Package importer materializes decks from the included-decks feed.
//
// The feed is a directory of CSV files. decks.csv lists one deck per row;
// its columns become the deck's props. A deck's "cards" prop names a second
// CSV file holding one card per row, whose header row names the deck's data
// items.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IndexFile is the name of the deck list in a feed directory.
const IndexFile = "decks.csv"

// ErrInvalidFeed is returned for feed content that cannot be imported.
var ErrInvalidFeed = errors.New("invalid feed")

// FeedDeck is one deck as supplied by the feed.
//
// Prop values are string, bool or nil. Data is nil for decks without a card
// file; Columns keeps the header order of the card file.
type FeedDeck struct {
	Props   map[string]any      `json:"props"`
	Columns []string            `json:"columns,omitempty"`
	Data    []map[string]string `json:"data"`
}

// Prop returns a string prop, or "" if it is absent or not a string.
func (d FeedDeck) Prop(name string) string {
	s, _ := d.Props[name].(string)
	return s
}

// BoolProp returns a bool prop and whether it was set.
func (d FeedDeck) BoolProp(name string) (value, ok bool) {
	value, ok = d.Props[name].(bool)
	return value, ok
}

// Source supplies the feed.
type Source interface {
	Fetch(ctx context.Context) ([]FeedDeck, error)
}

// DirSource reads the feed from a directory.
type DirSource struct {
	Dir string
}

// NewDirSource creates a source reading from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Fetch reads decks.csv and every card file it references.
func (s *DirSource) Fetch(ctx context.Context) ([]FeedDeck, error) {
	header, rows, err := readCSV(filepath.Join(s.Dir, IndexFile))
	if err != nil {
		return nil, err
	}

	decks := make([]FeedDeck, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deck := FeedDeck{Props: make(map[string]any, len(header))}
		for i, col := range header {
			deck.Props[col] = propValue(row[i])
		}

		if file := deck.Prop("cards"); file != "" {
			if filepath.IsAbs(file) || strings.Contains(filepath.ToSlash(file), "..") {
				return nil, fmt.Errorf("%w: card file %q must be inside the feed directory", ErrInvalidFeed, file)
			}
			columns, cardRows, err := readCSV(filepath.Join(s.Dir, file))
			if err != nil {
				return nil, err
			}
			deck.Columns = columns
			deck.Data = make([]map[string]string, 0, len(cardRows))
			for _, r := range cardRows {
				record := make(map[string]string, len(columns))
				for i, col := range columns {
					record[col] = r[i]
				}
				deck.Data = append(deck.Data, record)
			}
		}
		decks = append(decks, deck)
	}
	return decks, nil
}

// propValue maps a CSV cell to a prop: empty cells are nil and true/false
// are booleans.
func propValue(cell string) any {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// readCSV reads a CSV file with a header row. Rows shorter than the header
// are padded with empty cells.
func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrInvalidFeed, filepath.Base(path))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}
		if len(record) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, nil, fmt.Errorf("%w: %s line %d has %d fields, header has %d", ErrInvalidFeed, filepath.Base(path), line, len(record), len(header))
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}
