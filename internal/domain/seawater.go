package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrSeawaterLayout is returned when a seawater file is too short to carry
// the depth and nuclide header lines.
var ErrSeawaterLayout = errors.New("unexpected seawater table layout")

// Line indexes of the seawater CSV layout. Lines 0-2 are a free-form preamble
// and line 5 holds per-column sub-labels that carry no information we keep.
const (
	depthHeaderLine   = 3
	nuclideHeaderLine = 4
	firstDataLine     = 6
)

// depthRange is the half-open column range [start, end) of one depth block.
type depthRange struct {
	label string
	start int
	end   int
}

// seawaterColumn describes one source column inside a depth block.
type seawaterColumn struct {
	name    string
	nuclide Nuclide
	nd      bool
	known   bool
}

// SeawaterParser decodes the multi-header, multi-depth seawater CSV layout.
type SeawaterParser struct {
	logger *slog.Logger
}

// NewSeawaterParser creates a SeawaterParser that reports cell-level
// degradations to logger.
func NewSeawaterParser(logger *slog.Logger) *SeawaterParser {
	return &SeawaterParser{logger: logger}
}

// SplitLines splits file content into lines, dropping a UTF-8 byte order
// mark and normalizing CRLF line endings.
func SplitLines(content string) []string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

// Parse decodes the lines of one seawater file into depth blocks.
//
// Line 3 carries sparse depth labels, each marking the first column of its
// block; line 4 carries a nuclide label over each value column, followed by
// an unlabeled not-detected column. Data rows start at line 6. Every depth
// label yields a block, possibly with no rows.
func (p *SeawaterParser) Parse(source string, lines []string) ([]DepthBlock, error) {
	if len(lines) <= nuclideHeaderLine {
		return nil, fmt.Errorf("%s: %d lines: %w", source, len(lines), ErrSeawaterLayout)
	}

	nuclideCells := splitCells(lines[nuclideHeaderLine])
	ranges := depthRanges(splitCells(lines[depthHeaderLine]), len(nuclideCells))

	var rows [][]string
	if len(lines) > firstDataLine {
		rows = make([][]string, 0, len(lines)-firstDataLine)
		for _, line := range lines[firstDataLine:] {
			rows = append(rows, splitCells(line))
		}
	}

	blocks := make([]DepthBlock, 0, len(ranges))
	for _, r := range ranges {
		blocks = append(blocks, DepthBlock{
			Depth: r.label,
			Data:  p.parseBlock(source, r, nuclideCells, rows),
		})
	}
	return blocks, nil
}

// depthRanges finds the distinct depth labels in first-occurrence order. Each
// range ends where the next label starts; the last one ends at width.
func depthRanges(labels []string, width int) []depthRange {
	var ranges []depthRange
	seen := make(map[string]bool)
	for i, cell := range labels {
		label := strings.TrimSpace(cell)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		ranges = append(ranges, depthRange{label: label, start: i})
	}
	for i := range ranges {
		if i+1 < len(ranges) {
			ranges[i].end = ranges[i+1].start
		} else {
			ranges[i].end = width
		}
	}
	return ranges
}

// blockSchema builds ["begperiod", n1, n1_nd, n2, n2_nd, ...] for one range.
// It returns false when the range falls outside the nuclide header or the
// schema does not line up with the range width.
func (p *SeawaterParser) blockSchema(source string, r depthRange, nuclideCells []string) ([]seawaterColumn, bool) {
	if r.start >= len(nuclideCells) || r.end > len(nuclideCells) || r.start >= r.end {
		p.logger.Warn("depth block outside nuclide header",
			"file", source, "depth", r.label, "start", r.start, "end", r.end, "header_width", len(nuclideCells))
		return nil, false
	}

	schema := []seawaterColumn{{name: "begperiod"}}
	for _, cell := range nuclideCells[r.start:r.end] {
		label := strings.TrimSpace(cell)
		if label == "" {
			continue
		}
		n, known := ParseNuclide(label)
		if !known {
			p.logger.Warn("ignoring unknown nuclide column", "file", source, "depth", r.label, "nuclide", label)
		}
		schema = append(schema,
			seawaterColumn{name: label, nuclide: n, known: known},
			seawaterColumn{name: label + "_nd", nuclide: n, nd: true, known: known},
		)
	}

	if len(schema) != r.end-r.start {
		p.logger.Warn("nuclide header does not match depth block width",
			"file", source, "depth", r.label, "columns", len(schema), "width", r.end-r.start)
		return nil, false
	}
	return schema, true
}

func (p *SeawaterParser) parseBlock(source string, r depthRange, nuclideCells []string, rows [][]string) []SeawaterMeasurement {
	data := []SeawaterMeasurement{}
	schema, ok := p.blockSchema(source, r, nuclideCells)
	if !ok {
		return data
	}

	for i, row := range rows {
		cell := func(j int) string {
			if k := r.start + j; k < len(row) {
				return strings.TrimSpace(row[k])
			}
			return ""
		}

		period := cell(0)
		if isMissing(period) {
			continue
		}

		m := SeawaterMeasurement{BegPeriod: period}
		for j := 1; j < len(schema); j++ {
			col := schema[j]
			if !col.known {
				continue
			}
			v, err := ParseValue(cell(j))
			if err != nil {
				p.logger.Warn("unparsable seawater value",
					"file", source, "line", firstDataLine+i+1, "depth", r.label, "column", col.name, "error", err)
			}
			readings := m.Readings(col.nuclide)
			if col.nd {
				readings.ND.Value, readings.NDUnc.Value = v.Value, v.Unc
			} else {
				readings.Value.Value, readings.Unc.Value = v.Value, v.Unc
			}
		}
		data = append(data, m)
	}

	markCollectedColumns(data)
	return data
}

// markCollectedColumns flags a column as present in every row when at least
// one row of the block carries a number for it. Columns that are null in all
// rows stay absent.
func markCollectedColumns(data []SeawaterMeasurement) {
	for _, n := range Nuclides {
		for f := range 4 {
			collected := false
			for i := range data {
				if data[i].Readings(n).fields()[f].Value != nil {
					collected = true
					break
				}
			}
			if !collected {
				continue
			}
			for i := range data {
				data[i].Readings(n).fields()[f].Present = true
			}
		}
	}
}

func splitCells(line string) []string {
	return strings.Split(line, ",")
}
