package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Nuclide is a radionuclide reported in the seawater tables.
type Nuclide string

const (
	Cs134 Nuclide = "Cs-134"
	Cs137 Nuclide = "Cs-137"
	H3    Nuclide = "H-3"
)

// Nuclides is the fixed set of seawater nuclides, in output column order.
var Nuclides = []Nuclide{Cs134, Cs137, H3}

// ParseNuclide reports whether label names one of the fixed seawater nuclides.
func ParseNuclide(label string) (Nuclide, bool) {
	for _, n := range Nuclides {
		if string(n) == label {
			return n, true
		}
	}
	return "", false
}

// Columns returns the four output column names derived from the nuclide:
// value, uncertainty, not-detected value and its uncertainty.
func (n Nuclide) Columns() [4]string {
	s := string(n)
	return [4]string{s, s + "_unc", s + "_nd", s + "_nd_unc"}
}

// Reading is one nullable numeric cell of a seawater depth block.
//
// Present=false means the column was never collected anywhere in the block and
// the key is omitted from the output. Present=true with a nil Value means the
// column exists in the block but this row carries no number (written as null).
type Reading struct {
	Present bool
	Value   *float64
}

// NuclideReadings groups the four columns derived from one nuclide.
type NuclideReadings struct {
	Value Reading
	Unc   Reading
	ND    Reading
	NDUnc Reading
}

func (r *NuclideReadings) fields() [4]*Reading {
	return [4]*Reading{&r.Value, &r.Unc, &r.ND, &r.NDUnc}
}

// SeawaterMeasurement is one sampling time at one depth.
type SeawaterMeasurement struct {
	BegPeriod string
	Cs134     NuclideReadings
	Cs137     NuclideReadings
	H3        NuclideReadings
}

// Readings returns the readings for n, or nil for a nuclide outside the fixed set.
func (m *SeawaterMeasurement) Readings(n Nuclide) *NuclideReadings {
	switch n {
	case Cs134:
		return &m.Cs134
	case Cs137:
		return &m.Cs137
	case H3:
		return &m.H3
	default:
		return nil
	}
}

// Column looks up a reading by its output column name, e.g. "Cs-137_nd_unc".
func (m *SeawaterMeasurement) Column(name string) (*Reading, bool) {
	for _, n := range Nuclides {
		cols := n.Columns()
		fields := m.Readings(n).fields()
		for i := range cols {
			if cols[i] == name {
				return fields[i], true
			}
		}
	}
	return nil, false
}

// MarshalJSON writes begperiod followed by every present column in fixed order.
func (m SeawaterMeasurement) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	period, err := json.Marshal(m.BegPeriod)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"begperiod":`)
	buf.Write(period)

	for _, n := range Nuclides {
		cols := n.Columns()
		for i, r := range m.Readings(n).fields() {
			if !r.Present {
				continue
			}
			key, _ := json.Marshal(cols[i])
			buf.WriteByte(',')
			buf.Write(key)
			buf.WriteByte(':')
			if r.Value == nil {
				buf.WriteString("null")
				continue
			}
			v, err := json.Marshal(*r.Value)
			if err != nil {
				return nil, fmt.Errorf("marshal %s: %w", cols[i], err)
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores the presence policy: a key that is present, even
// with a null value, marks the column as collected.
func (m *SeawaterMeasurement) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = SeawaterMeasurement{}
	if p, ok := raw["begperiod"]; ok {
		if err := json.Unmarshal(p, &m.BegPeriod); err != nil {
			return fmt.Errorf("decode begperiod: %w", err)
		}
	}

	for key, value := range raw {
		r, ok := m.Column(key)
		if !ok {
			continue
		}
		r.Present = true
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		var f float64
		if err := json.Unmarshal(value, &f); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		r.Value = &f
	}
	return nil
}

// DepthBlock holds the time series of one sampling depth of a seawater station.
type DepthBlock struct {
	Depth string                `json:"depth"`
	Data  []SeawaterMeasurement `json:"data"`
}

// SampleMeasurement is one fish or seaweed measurement. Every field is
// nullable and always written.
type SampleMeasurement struct {
	BegPeriod    *string  `json:"begperiod"`
	Sample       *string  `json:"Sample"`
	Radionuclide *string  `json:"Radionuclide"`
	Dt           *float64 `json:"Dt"`
	DtUnc        *float64 `json:"Dt_unc"`
	ND           *float64 `json:"ND"`
	NDUnc        *float64 `json:"ND_unc"`
	Unit         *string  `json:"Unit"`
}
