package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchCoordinate(t *testing.T) {
	tests := []struct {
		name      string
		candidate float64
		target    float64
		expected  bool
	}{
		{"target rounded to candidate precision", 37.123, 37.12345, true},
		{"trailing digits ignored", 141.45, 141.4502, true},
		{"exact", 37.42, 37.42, true},
		{"different at candidate precision", 37.123, 37.124, false},
		{"rounds up past candidate", 37.123, 37.1236, false},
		{"whole-number candidate keeps one decimal", 37.0, 37.04, true},
		{"whole-number candidate is not a wildcard", 37.0, 37.4, false},
		{"whole-number candidate rounds away", 37.0, 37.96, false},
		{"target less precise than candidate", 37.1234, 37.12, false},
		{"negative", -141.45, -141.4549, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchCoordinate(tt.candidate, tt.target))
		})
	}
}

func TestReferenceTable_Match(t *testing.T) {
	table := &ReferenceTable{
		Name: "station_points",
		Rows: []ReferenceRow{
			{Org: "TEPCO", Lat: 37.42, Lon: 141.03, Station: "T-1"},
			{Org: "MOE", Lat: 37.42, Lon: 141.03, Station: "M-1"},
			{Org: "MOE", Lat: 37.4, Lon: 141.0, Station: "M-coarse"},
		},
	}

	t.Run("org must match exactly", func(t *testing.T) {
		name, ok := table.Match("MOE", 37.4201, 141.0349)
		assert.True(t, ok)
		assert.Equal(t, "M-1", name)
	})

	t.Run("first matching row wins", func(t *testing.T) {
		name, ok := table.Match("MOE", 37.42, 141.03)
		assert.True(t, ok)
		assert.Equal(t, "M-1", name)
	})

	t.Run("falls through to coarser row", func(t *testing.T) {
		name, ok := table.Match("MOE", 37.4449, 141.0111)
		assert.True(t, ok)
		assert.Equal(t, "M-coarse", name)
	})

	t.Run("unknown org", func(t *testing.T) {
		_, ok := table.Match("NRA", 37.42, 141.03)
		assert.False(t, ok)
	})

	t.Run("case sensitive org", func(t *testing.T) {
		_, ok := table.Match("tepco", 37.42, 141.03)
		assert.False(t, ok)
	})

	t.Run("latitude mismatch", func(t *testing.T) {
		_, ok := table.Match("TEPCO", 37.5, 141.03)
		assert.False(t, ok)
	})

	t.Run("nil table", func(t *testing.T) {
		var empty *ReferenceTable
		_, ok := empty.Match("TEPCO", 37.42, 141.03)
		assert.False(t, ok)
	})
}
