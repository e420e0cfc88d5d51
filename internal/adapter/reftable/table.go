// Package reftable loads station reference tables and resolves station names
// against them.
package reftable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

var requiredColumns = []string{"org", "lat", "lon", "station"}

// Load reads a reference CSV with at least the columns org, lat, lon and
// station. The table is named after the file.
func Load(path string, logger *slog.Logger) (*domain.ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, f, logger)
}

// Parse decodes reference rows from r. Rows whose coordinates are not numbers
// are skipped with a warning; a header without the required columns returns
// an error wrapping domain.ErrMissingColumns.
func Parse(name string, r io.Reader, logger *slog.Logger) (*domain.ReferenceTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s header: %w", name, domain.ErrEmptyTable)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("reference table %s: %w", name, err)
	}

	table := &domain.ReferenceTable{Name: name}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", name, err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			line, _ := cr.FieldPos(0)
			logger.Warn("skipping reference row", "table", name, "line", line, "error", err)
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(requiredColumns))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w", strings.Join(missing, ", "), domain.ErrMissingColumns)
	}
	return index, nil
}

func parseRow(record []string, index map[string]int) (domain.ReferenceRow, error) {
	cell := func(c string) string {
		if i := index[c]; i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	lat, err := strconv.ParseFloat(cell("lat"), 64)
	if err != nil {
		return domain.ReferenceRow{}, fmt.Errorf("parse lat %q: %w", cell("lat"), err)
	}
	lon, err := strconv.ParseFloat(cell("lon"), 64)
	if err != nil {
		return domain.ReferenceRow{}, fmt.Errorf("parse lon %q: %w", cell("lon"), err)
	}
	return domain.ReferenceRow{
		Org:     cell("org"),
		Lat:     lat,
		Lon:     lon,
		Station: cell("station"),
	}, nil
}
