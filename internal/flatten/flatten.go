// Package flatten turns the nested station record documents into one row per
// measurement, written as CSV and optionally as an XLSX workbook.
package flatten

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/orbs-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

var identityColumns = []string{"id", "org", "station", "lat", "lon"}

var sampleColumns = []string{"begperiod", "Sample", "Radionuclide", "Dt", "Dt_unc", "ND", "ND_unc", "Unit"}

// Table is a flattened document. A row cell is nil, a string, an int or a
// float64.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Columns returns the full column list for st before null columns are dropped.
func Columns(st domain.SampleType) []string {
	cols := append([]string{}, identityColumns...)
	if st != domain.Seawater {
		return append(cols, sampleColumns...)
	}
	cols = append(cols, "depth", "begperiod")
	for _, n := range domain.Nuclides {
		c := n.Columns()
		cols = append(cols, c[:]...)
	}
	return cols
}

// Build flattens records into one row per measurement. Columns that are null
// in every row are dropped; a table without rows keeps all columns.
func Build(st domain.SampleType, records []domain.StationRecord) Table {
	t := Table{Columns: Columns(st)}
	for _, rec := range records {
		identity := []any{rec.ID, rec.Org, optString(rec.Station), rec.Lat, rec.Lon}
		if st == domain.Seawater {
			for _, block := range rec.DepthData {
				for _, m := range block.Data {
					row := append(append([]any{}, identity...), block.Depth, m.BegPeriod)
					for _, n := range domain.Nuclides {
						r := m.Readings(n)
						row = append(row, reading(r.Value), reading(r.Unc), reading(r.ND), reading(r.NDUnc))
					}
					t.Rows = append(t.Rows, row)
				}
			}
			continue
		}
		for _, m := range rec.Data {
			row := append(append([]any{}, identity...),
				ptr(m.BegPeriod), ptr(m.Sample), ptr(m.Radionuclide),
				ptr(m.Dt), ptr(m.DtUnc), ptr(m.ND), ptr(m.NDUnc), ptr(m.Unit))
			t.Rows = append(t.Rows, row)
		}
	}
	return t.dropNullColumns()
}

func (t Table) dropNullColumns() Table {
	if len(t.Rows) == 0 {
		return t
	}
	var keep []int
	for c := range t.Columns {
		for _, row := range t.Rows {
			if row[c] != nil {
				keep = append(keep, c)
				break
			}
		}
	}
	if len(keep) == len(t.Columns) {
		return t
	}

	out := Table{Columns: make([]string, len(keep)), Rows: make([][]any, len(t.Rows))}
	for i, c := range keep {
		out.Columns[i] = t.Columns[c]
	}
	for r, row := range t.Rows {
		out.Rows[r] = make([]any, len(keep))
		for i, c := range keep {
			out.Rows[r][i] = row[c]
		}
	}
	return out
}

// WriteCSV writes the header and rows. Nulls are empty cells and floats use
// the shortest decimal form that round-trips.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCell renders a table cell as CSV text.
func FormatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// WriteXLSX writes t to a workbook at path with a single sheet. Null cells are
// left unset and numbers are stored as numeric cells.
func WriteXLSX(path, sheet string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for r, row := range t.Rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write xlsx cell %s: %w", cell, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// Flattener converts the JSON documents in one directory into CSV (and
// optionally XLSX) files in another.
type Flattener struct {
	jsonDir string
	csvDir  string
	xlsx    bool
	logger  *slog.Logger
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithXLSX also writes <type>_data.xlsx next to each CSV.
func WithXLSX(enabled bool) Option {
	return func(f *Flattener) { f.xlsx = enabled }
}

func New(jsonDir, csvDir string, logger *slog.Logger, opts ...Option) *Flattener {
	f := &Flattener{jsonDir: jsonDir, csvDir: csvDir, logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CSVPath returns the CSV output path for st under dir.
func CSVPath(dir string, st domain.SampleType) string {
	return filepath.Join(dir, st.FileStem()+".csv")
}

// XLSXPath returns the workbook output path for st under dir.
func XLSXPath(dir string, st domain.SampleType) string {
	return filepath.Join(dir, st.FileStem()+".xlsx")
}

// Run flattens every sample type. A missing JSON document is logged and
// skipped; other failures are returned.
func (f *Flattener) Run(ctx context.Context) error {
	for _, st := range domain.SampleTypes {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := jsonfile.Path(f.jsonDir, st)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f.logger.Warn("no json document to flatten", "sample_type", st, "path", path)
			continue
		}
		if err := f.Flatten(st); err != nil {
			return err
		}
	}
	return nil
}

// Flatten reads the JSON document of st and writes its flat outputs.
func (f *Flattener) Flatten(st domain.SampleType) error {
	records, err := jsonfile.ReadRecords(jsonfile.Path(f.jsonDir, st), st)
	if err != nil {
		return fmt.Errorf("flatten %s: %w", st, err)
	}
	t := Build(st, records)

	if err := os.MkdirAll(f.csvDir, 0o755); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}
	if err := writeFile(CSVPath(f.csvDir, st), func(w io.Writer) error { return WriteCSV(w, t) }); err != nil {
		return fmt.Errorf("flatten %s: %w", st, err)
	}
	if f.xlsx {
		if err := WriteXLSX(XLSXPath(f.csvDir, st), string(st), t); err != nil {
			return fmt.Errorf("flatten %s: %w", st, err)
		}
	}

	f.logger.Info("flattened", "sample_type", st, "rows", len(t.Rows), "columns", len(t.Columns), "xlsx", f.xlsx)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reading(r domain.Reading) any {
	if r.Value == nil {
		return nil
	}
	return *r.Value
}

func ptr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
