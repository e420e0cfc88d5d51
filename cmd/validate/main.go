// Command validate checks the integrity of a processed ORBS output tree: the
// station JSON documents and the flat CSV files derived from them. It verifies
// document structure, row counts, identity columns and the column policy of
// the flat files.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -json-dir stations/transformed/json \
//	  -csv-dir stations/transformed/csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/couchcryptid/orbs-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/flatten"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// dataset is everything loaded for one sample type.
type dataset struct {
	st      domain.SampleType
	raw     []map[string]json.RawMessage
	records []domain.StationRecord
	header  []string
	rows    [][]string
}

func main() {
	jsonDir := flag.String("json-dir", "", "directory containing the station JSON documents")
	csvDir := flag.String("csv-dir", "", "directory containing the flat CSV files")
	flag.Parse()

	if *jsonDir == "" || *csvDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*jsonDir, *csvDir); code != 0 {
		os.Exit(code)
	}
}

func run(jsonDir, csvDir string) int {
	fmt.Println("=== ORBS Output Integrity Validation ===")
	fmt.Println()

	var sets []*dataset
	for _, st := range domain.SampleTypes {
		ds, err := load(st, jsonDir, csvDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", st, err)
			return 1
		}
		sets = append(sets, ds)
	}

	phases := []*phase{
		validateDocuments(sets),
		validateRowCounts(sets),
		validateIdentity(sets),
		validateColumns(sets),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, ds := range sets {
		fmt.Printf("%s: %d stations, %d CSV rows\n", ds.st, len(ds.records), len(ds.rows))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(st domain.SampleType, jsonDir, csvDir string) (*dataset, error) {
	path := jsonfile.Path(jsonDir, st)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ds := &dataset{st: st}
	if err := json.Unmarshal(data, &ds.raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if ds.records, err = jsonfile.ReadRecords(path, st); err != nil {
		return nil, err
	}

	f, err := os.Open(flatten.CSVPath(csvDir, st))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("csv for %s has no header", st)
	}
	ds.header, ds.rows = all[0], all[1:]
	return ds, nil
}

// ── Phase 1: Document structure ──
// Every record carries exactly the collection of its sample type, ids are
// unique and coordinates are in range.

func validateDocuments(sets []*dataset) *phase {
	p := &phase{name: "Phase 1: Document Structure (JSON)"}

	for _, ds := range sets {
		want, other := "data", "depth_data"
		if ds.st == domain.Seawater {
			want, other = other, want
		}
		seen := make(map[int]bool, len(ds.records))
		for i, raw := range ds.raw {
			if v, ok := raw[want]; !ok || string(v) == "null" {
				p.errorf("%s record %d: %q missing or null", ds.st, i, want)
			}
			if _, ok := raw[other]; ok {
				p.errorf("%s record %d: unexpected %q", ds.st, i, other)
			}
		}
		for i, rec := range ds.records {
			if seen[rec.ID] {
				p.errorf("%s record %d: duplicate id %d", ds.st, i, rec.ID)
			}
			seen[rec.ID] = true
			if math.Abs(rec.Lat) > 90 || math.Abs(rec.Lon) > 180 {
				p.errorf("%s station %d: coordinates out of range (%g, %g)", ds.st, rec.ID, rec.Lat, rec.Lon)
			}
			for _, b := range rec.DepthData {
				for j, m := range b.Data {
					if m.BegPeriod == "" {
						p.errorf("%s station %d depth %q row %d: empty begperiod", ds.st, rec.ID, b.Depth, j)
					}
				}
			}
		}
	}
	return p
}

// ── Phase 2: Row counts ──

func validateRowCounts(sets []*dataset) *phase {
	p := &phase{name: "Phase 2: Row Counts (JSON vs CSV)"}

	for _, ds := range sets {
		want := 0
		for _, rec := range ds.records {
			want += rec.MeasurementCount()
		}
		if want != len(ds.rows) {
			p.errorf("%s: JSON has %d measurements, CSV has %d rows", ds.st, want, len(ds.rows))
		}
		for i, row := range ds.rows {
			if len(row) != len(ds.header) {
				p.errorf("%s line %d: %d cells, header has %d", ds.st, i+2, len(row), len(ds.header))
			}
		}
	}
	return p
}

// ── Phase 3: Identity columns ──
// CSV rows follow the JSON records in order; each row repeats its station's
// id, org, station and coordinates.

func validateIdentity(sets []*dataset) *phase {
	p := &phase{name: "Phase 3: Identity Columns (CSV vs JSON)"}

	for _, ds := range sets {
		col := make(map[string]int, len(ds.header))
		for i, h := range ds.header {
			col[h] = i
		}
		cell := func(row []string, name string) (string, bool) {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return "", false
			}
			return row[i], true
		}

		line := 0
		for _, rec := range ds.records {
			expected := map[string]string{
				"id":      strconv.Itoa(rec.ID),
				"org":     rec.Org,
				"station": rec.Station,
				"lat":     flatten.FormatCell(rec.Lat),
				"lon":     flatten.FormatCell(rec.Lon),
			}
			for range rec.MeasurementCount() {
				if line >= len(ds.rows) {
					return p
				}
				row := ds.rows[line]
				line++
				for name, want := range expected {
					got, ok := cell(row, name)
					if !ok {
						if want != "" {
							p.errorf("%s line %d: column %q dropped but station %d has %q", ds.st, line+1, name, rec.ID, want)
						}
						continue
					}
					if got != want {
						p.errorf("%s line %d: %s=%q, station %d has %q", ds.st, line+1, name, got, rec.ID, want)
					}
				}
			}
		}
	}
	return p
}

// ── Phase 4: Column policy ──
// The header keeps the canonical column order and no kept column is empty
// in every row.

func validateColumns(sets []*dataset) *phase {
	p := &phase{name: "Phase 4: Column Policy (CSV)"}

	for _, ds := range sets {
		canonical := flatten.Columns(ds.st)
		last := -1
		for _, h := range ds.header {
			idx := slices.Index(canonical, h)
			if idx < 0 {
				p.errorf("%s: unknown column %q", ds.st, h)
				continue
			}
			if idx <= last {
				p.errorf("%s: column %q out of order", ds.st, h)
			}
			last = idx
		}

		if len(ds.rows) == 0 {
			continue
		}
		for c, h := range ds.header {
			empty := true
			for _, row := range ds.rows {
				if c < len(row) && row[c] != "" {
					empty = false
					break
				}
			}
			if empty {
				p.errorf("%s: column %q is empty in every row", ds.st, h)
			}
		}
	}
	return p
}
