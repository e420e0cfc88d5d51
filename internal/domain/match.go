package domain

import (
	"context"
	"strconv"
	"strings"
)

// StationMatcher resolves a station name from its organization and
// coordinates. An empty name with a nil error means nothing matched.
type StationMatcher interface {
	MatchStation(ctx context.Context, org string, c Coordinates) (string, error)
}

// ReferenceRow is one row of a station reference table.
type ReferenceRow struct {
	Org     string
	Lat     float64
	Lon     float64
	Station string
}

// ReferenceTable is a read-only list of known stations. It is safe to share
// between goroutines.
type ReferenceTable struct {
	Name string
	Rows []ReferenceRow
}

// Match returns the station name of the first row whose organization equals
// org and whose coordinates match lat and lon at the row's own precision.
func (t *ReferenceTable) Match(org string, lat, lon float64) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, row := range t.Rows {
		if row.Org != org {
			continue
		}
		if MatchCoordinate(row.Lat, lat) && MatchCoordinate(row.Lon, lon) {
			return row.Station, true
		}
	}
	return "", false
}

// MatchCoordinate compares target to candidate after rounding both to the
// number of decimals the candidate is stored with. Reference tables carry
// inconsistent precision, so 37.12345 matches a stored 37.123 and 141.4502
// matches a stored 141.45. A whole-number candidate such as 37.0 counts one
// decimal, so it matches 37.04 but not 37.4.
func MatchCoordinate(candidate, target float64) bool {
	places := decimalPlaces(candidate)
	return strconv.FormatFloat(candidate, 'f', places, 64) == strconv.FormatFloat(target, 'f', places, 64)
}

// decimalPlaces counts the fractional digits of the shortest decimal form of
// v, with a minimum of one.
func decimalPlaces(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	_, frac, ok := strings.Cut(s, ".")
	if !ok || frac == "" {
		return 1
	}
	return len(frac)
}
