// Package export writes decks out in the included-decks feed format, as
// CSV card files or as JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format represents the export format.
type Format string

const (
	// FormatCSV writes a card file: a header row followed by one row per card.
	FormatCSV Format = "csv"
	// FormatJSON writes the feed deck with its props.
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for formats other than csv and json.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat maps a format name to a Format. An empty name means CSV.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Options holds configuration for file exports.
type Options struct {
	Format     Format
	FilePath   string
	PrettyJSON bool
	Overwrite  bool
}

// Exporter writes tables to files.
type Exporter struct {
	opts Options
}

// NewExporter creates a new Exporter with the given options.
func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Export writes t to the configured file.
func (e *Exporter) Export(t *Table) (err error) {
	file, err := e.createFile()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return ExportToWriter(file, e.opts.Format, t, e.opts.PrettyJSON)
}

// createFile creates the output file, handling overwrite settings.
func (e *Exporter) createFile() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(e.opts.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if _, err := os.Stat(e.opts.FilePath); err == nil && !e.opts.Overwrite {
		return nil, fmt.Errorf("file already exists: %s (use overwrite option to replace)", e.opts.FilePath)
	}
	file, err := os.Create(e.opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// ExportToWriter writes t to w in the given format.
func ExportToWriter(w io.Writer, format Format, t *Table, prettyJSON bool) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		if prettyJSON {
			encoder.SetIndent("", "  ")
		}
		return encoder.Encode(t.Feed())
	case FormatCSV:
		return writeCSV(w, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
