package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// CSVHeader is the first row WriteCSV emits.
var CSVHeader = []string{"ranking", "title", "price", "rating", "link", "source"}

// WriteCSV writes listings to w with a header row. Ranking is the 1-based
// position in listings; an absent rating is an empty cell.
func WriteCSV(w io.Writer, listings []domain.Listing) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range listings {
		l := &listings[i]
		rating := ""
		if l.Rating != nil {
			rating = strconv.FormatFloat(*l.Rating, 'f', 2, 64)
		}
		if err := cw.Write([]string{
			strconv.Itoa(i + 1),
			l.Title,
			strconv.FormatFloat(l.Price, 'f', 2, 64),
			rating,
			l.Link,
			l.Source,
		}); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// CSVExporter rewrites a CSV file with every saved result set.
type CSVExporter struct {
	path string
}

// NewCSVExporter creates an exporter writing to path.
func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

// Path returns the output file.
func (e *CSVExporter) Path() string {
	return e.path
}

// Export replaces the file at the exporter's path with listings. The parent
// directory is created when missing.
func (e *CSVExporter) Export(_ context.Context, listings []domain.Listing) error {
	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating export directory: %w", domain.ErrPersistence, err)
		}
	}

	f, err := os.Create(e.path) //nolint:gosec // path from config
	if err != nil {
		return fmt.Errorf("%w: creating export file: %w", domain.ErrPersistence, err)
	}

	if err := WriteCSV(f, listings); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing export file: %w", domain.ErrPersistence, err)
	}
	return nil
}
