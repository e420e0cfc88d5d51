// Package jsonfile reads the station-coordinate document and writes and reads
// the per-sample-type station record documents.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

// Sink writes station records to <dir>/<type>_data.json.
type Sink struct {
	dir string
}

func NewSink(dir string) *Sink {
	return &Sink{dir: dir}
}

// Path returns the output path for a sample type.
func (s *Sink) Path(st domain.SampleType) string {
	return Path(s.dir, st)
}

// Path returns the record document path for st under dir.
func Path(dir string, st domain.SampleType) string {
	return filepath.Join(dir, st.FileStem()+".json")
}

// WriteRecords replaces the sample type's document with records. The file is
// written to a temporary name first and renamed into place.
func (s *Sink) WriteRecords(ctx context.Context, st domain.SampleType, records []domain.StationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []domain.StationRecord{}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create json directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+st.FileStem()+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp json: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s records: %w", st, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp json: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp json: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(st)); err != nil {
		return fmt.Errorf("rename json output: %w", err)
	}
	return nil
}

// Name identifies the sink in logs.
func (s *Sink) Name() string { return "json" }

// ReadRecords decodes a station record document written by Sink and tags
// every record with st.
func ReadRecords(path string, st domain.SampleType) ([]domain.StationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []domain.StationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", st, err)
	}
	for i := range records {
		records[i].SampleType = st
	}
	return records, nil
}

// LoadStations decodes the station-coordinate document, a JSON object keyed
// by sample type ("Seawater", "Fish", "Seaweed"). Unknown keys are dropped.
func LoadStations(path string) (domain.StationSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	var raw map[string][]domain.StationEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}

	src := make(domain.StationSource, len(domain.SampleTypes))
	for _, st := range domain.SampleTypes {
		if entries, ok := raw[string(st)]; ok {
			src[st] = entries
		}
	}
	return src, nil
}

// StationFile adapts a station-coordinate document to the aggregator's
// station source.
type StationFile struct {
	path string
}

func NewStationFile(path string) *StationFile {
	return &StationFile{path: path}
}

func (f *StationFile) Stations(_ context.Context) (domain.StationSource, error) {
	return LoadStations(f.path)
}
