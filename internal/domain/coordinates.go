package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNoCoordinates is returned for an empty coordinate string.
	ErrNoCoordinates = errors.New("no coordinates")

	// ErrInvalidDMS is returned when a coordinate half has no numeric part.
	ErrInvalidDMS = errors.New("invalid DMS coordinate")
)

// ParseCoordinates converts a "lat/lon" DMS composite, e.g. 37°25'12"N/141°2'33"E,
// into decimal degrees.
func ParseCoordinates(text string) (Coordinates, error) {
	if strings.TrimSpace(text) == "" {
		return Coordinates{}, ErrNoCoordinates
	}

	halves := strings.Split(norm.NFKC.String(text), "/")
	if len(halves) < 2 {
		return Coordinates{}, fmt.Errorf("parse coordinates %q: missing '/' separator: %w", text, ErrInvalidDMS)
	}

	lat, err := ParseDMS(halves[0])
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := ParseDMS(halves[1])
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse longitude: %w", err)
	}
	return Coordinates{Lat: lat, Lon: lon}, nil
}

// ParseDMS converts one degrees/minutes/seconds string to decimal degrees.
//
// The numeric runs are read as degrees, minutes, seconds and fractional
// seconds; any non-digit text separates them, so "37°25'12.5\"N", "37 25 12.5 N"
// and full-width forms all parse. Missing minutes or seconds count as zero.
// A southern or western hemisphere marker, or a leading minus, negates the result.
func ParseDMS(s string) (float64, error) {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	parts := strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if len(parts) == 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidDMS)
	}
	if len(parts) > 4 {
		parts = parts[:4]
	}

	degrees, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%q: degrees: %w", s, ErrInvalidDMS)
	}
	minutes := 0.0
	if len(parts) > 1 {
		minutes, _ = strconv.ParseFloat(parts[1], 64)
	}
	secondsText := "0"
	if len(parts) > 2 {
		secondsText = parts[2]
	}
	if len(parts) > 3 {
		secondsText += "." + parts[3]
	}
	seconds, err := strconv.ParseFloat(secondsText, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: seconds: %w", s, ErrInvalidDMS)
	}

	value := degrees + minutes/60 + seconds/3600
	if negativeHemisphere(s) {
		value = -value
	}
	return value, nil
}

func negativeHemisphere(s string) bool {
	if strings.HasPrefix(s, "-") {
		return true
	}
	return strings.ContainsAny(s, "SsWw南西")
}
