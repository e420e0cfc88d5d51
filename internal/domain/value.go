package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a measurement cell is not a number.
var ErrInvalidValue = errors.New("invalid measurement value")

// Value is a parsed measurement cell. Unc is nil when the cell carried no
// "±uncertainty" part; both are nil for an empty cell.
type Value struct {
	Value *float64
	Unc   *float64
}

// ParseValue parses a raw measurement cell such as "12.3±0.4", "5%" or "0.81".
//
// Empty cells and the "-" placeholder yield an empty Value without error. A
// trailing percent sign is stripped, not divided. On any parse failure the
// returned Value is empty and the error wraps ErrInvalidValue, so callers can
// log it and keep going.
func ParseValue(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if isMissing(s) {
		return Value{}, nil
	}

	if strings.Contains(s, "±") {
		parts := strings.Split(s, "±")
		v, errV := parseFloat(parts[0])
		u, errU := parseFloat(parts[1])
		if errV != nil || errU != nil {
			return Value{}, fmt.Errorf("value with uncertainty %q: %w", raw, ErrInvalidValue)
		}
		return Value{Value: &v, Unc: &u}, nil
	}

	v, err := parseFloat(strings.ReplaceAll(s, "%", ""))
	if err != nil {
		return Value{}, fmt.Errorf("value %q: %w", raw, ErrInvalidValue)
	}
	return Value{Value: &v}, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// isMissing reports whether a trimmed cell is one of the source's null markers.
func isMissing(s string) bool {
	return s == "" || s == "-"
}

// optionalString returns nil for an empty cell and a pointer to the trimmed
// text otherwise. A "-" in a text column is kept as written.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
