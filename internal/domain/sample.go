package domain

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var (
	// ErrEmptyTable is returned when a table has no header row.
	ErrEmptyTable = errors.New("empty table")

	// ErrMissingColumns is returned when a table header lacks required columns.
	ErrMissingColumns = errors.New("missing required columns")
)

// samplePreambleRows is the number of free-form lines above the header of
// fish and seaweed tables. Blank lines count.
const samplePreambleRows = 2

// Source header names of the fish and seaweed tables.
const (
	colSamplingDate = "Date and time of Sampling"
	colSample       = "Sample"
	colRadionuclide = "Radionuclide"
	colDt           = "Dt"
	colND           = "ND"
	colUnit         = "Unit"
)

var sampleColumns = []string{colSamplingDate, colSample, colRadionuclide, colDt, colND, colUnit}

// SampleParser decodes the single-header fish and seaweed CSV layout.
type SampleParser struct {
	logger *slog.Logger
}

func NewSampleParser(logger *slog.Logger) *SampleParser {
	return &SampleParser{logger: logger}
}

// Parse reads one fish or seaweed file. Dt and ND cells are split into a value
// and an uncertainty; columns other than the known ones are ignored.
func (p *SampleParser) Parse(source string, r io.Reader) ([]SampleMeasurement, error) {
	br := bufio.NewReader(r)
	for range samplePreambleRows {
		line, err := br.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return nil, fmt.Errorf("%s: skip preamble: %w", source, tableError(err))
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, tableError(err))
	}
	index := headerIndex(header)
	if len(index) == 0 {
		return nil, fmt.Errorf("%s: no known columns in header %q: %w", source, header, ErrMissingColumns)
	}

	out := []SampleMeasurement{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row: %w", source, err)
		}
		if blankRecord(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		out = append(out, p.measurement(source, line+samplePreambleRows, index, record))
	}
	return out, nil
}

func (p *SampleParser) measurement(source string, line int, index map[string]int, record []string) SampleMeasurement {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	value := func(name string) Value {
		v, err := ParseValue(cell(name))
		if err != nil {
			p.logger.Warn("unparsable sample value", "file", source, "line", line, "column", name, "error", err)
		}
		return v
	}

	dt := value(colDt)
	nd := value(colND)
	return SampleMeasurement{
		BegPeriod:    optionalString(cell(colSamplingDate)),
		Sample:       optionalString(cell(colSample)),
		Radionuclide: optionalString(cell(colRadionuclide)),
		Dt:           dt.Value,
		DtUnc:        dt.Unc,
		ND:           nd.Value,
		NDUnc:        nd.Unc,
		Unit:         optionalString(cell(colUnit)),
	}
}

// headerIndex maps each known column to its first position in header.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(sampleColumns))
	for i, h := range header {
		h = strings.TrimSpace(h)
		for _, name := range sampleColumns {
			if h != name {
				continue
			}
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}
	}
	return index
}

func blankRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func tableError(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrEmptyTable
	}
	return err
}
