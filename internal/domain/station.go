package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SampleType identifies one of the three ORBS monitoring datasets.
type SampleType string

const (
	Seawater SampleType = "Seawater"
	Fish     SampleType = "Fish"
	Seaweed  SampleType = "Seaweed"
)

// SampleTypes lists every sample type in processing order.
var SampleTypes = []SampleType{Seawater, Fish, Seaweed}

// ParseSampleType accepts a sample type name case-insensitively.
func ParseSampleType(s string) (SampleType, error) {
	for _, st := range SampleTypes {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown sample type %q", s)
}

// Category is the portal category (and raw download subdirectory) for the sample type.
func (s SampleType) Category() string {
	switch s {
	case Fish:
		return "Fishes"
	case Seaweed:
		return "Seaweeds"
	default:
		return string(s)
	}
}

// FileStem is the base name shared by the JSON and CSV outputs, e.g. "seawater_data".
func (s SampleType) FileStem() string {
	return strings.ToLower(string(s)) + "_data"
}

// StationEntry is one station of the station-coordinate source document.
type StationEntry struct {
	ID          int    `json:"id"`
	Org         string `json:"org"`
	Station     string `json:"station"`
	Coordinates string `json:"coordinates"`
}

// StationSource maps each sample type to its ordered station entries.
type StationSource map[SampleType][]StationEntry

// Coordinates is a decimal-degree position; south and west are negative.
type Coordinates struct {
	Lat float64
	Lon float64
}

// StationRecord is the normalized output for one station of one sample type.
// Exactly one of Data and DepthData is serialized, selected by SampleType.
// An empty Station means the name could not be resolved and is written as null.
type StationRecord struct {
	ID         int                 `json:"id"`
	Org        string              `json:"org"`
	Station    string              `json:"station"`
	Lat        float64             `json:"lat"`
	Lon        float64             `json:"lon"`
	Data       []SampleMeasurement `json:"data"`
	DepthData  []DepthBlock        `json:"depth_data"`
	SampleType SampleType          `json:"-"`
}

type recordIdentity struct {
	ID      int     `json:"id"`
	Org     string  `json:"org"`
	Station *string `json:"station"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// MarshalJSON writes the identity fields followed by the collection that
// matches the record's sample type. The collection is never null.
func (r StationRecord) MarshalJSON() ([]byte, error) {
	id := recordIdentity{ID: r.ID, Org: r.Org, Lat: r.Lat, Lon: r.Lon}
	if r.Station != "" {
		name := r.Station
		id.Station = &name
	}

	if r.SampleType == Seawater {
		blocks := r.DepthData
		if blocks == nil {
			blocks = []DepthBlock{}
		}
		return json.Marshal(struct {
			recordIdentity
			DepthData []DepthBlock `json:"depth_data"`
		}{id, blocks})
	}

	data := r.Data
	if data == nil {
		data = []SampleMeasurement{}
	}
	return json.Marshal(struct {
		recordIdentity
		Data []SampleMeasurement `json:"data"`
	}{id, data})
}

// MeasurementCount returns the number of leaf measurements in the record.
func (r StationRecord) MeasurementCount() int {
	if r.SampleType != Seawater {
		return len(r.Data)
	}
	n := 0
	for _, b := range r.DepthData {
		n += len(b.Data)
	}
	return n
}
