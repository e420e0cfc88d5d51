package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
	"github.com/couchcryptid/orbs-data-etl/internal/observability"
)

// RawFiles lists and reads the raw CSV files of a station.
type RawFiles interface {
	Files(st domain.SampleType, id int) ([]string, error)
	ReadFile(path string) (string, error)
}

// StationTransformer implements Transformer: it parses the station's
// coordinates, resolves its name and parses its raw files.
type StationTransformer struct {
	matcher  domain.StationMatcher
	raw      RawFiles
	seawater *domain.SeawaterParser
	samples  *domain.SampleParser
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a StationTransformer. Pass a nil matcher to disable
// reference-table lookups; unnamed stations then stay unresolved.
func NewTransformer(matcher domain.StationMatcher, raw RawFiles, logger *slog.Logger, metrics *observability.Metrics) *StationTransformer {
	return &StationTransformer{
		matcher:  matcher,
		raw:      raw,
		seawater: domain.NewSeawaterParser(logger),
		samples:  domain.NewSampleParser(logger),
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *StationTransformer) Transform(ctx context.Context, st domain.SampleType, entry domain.StationEntry) (domain.StationRecord, bool, error) {
	logger := t.logger.With("sample_type", st, "station_id", entry.ID)

	coords, err := domain.ParseCoordinates(entry.Coordinates)
	if errors.Is(err, domain.ErrNoCoordinates) {
		logger.Debug("skipping station without coordinates")
		t.metrics.StationsSkipped.WithLabelValues(string(st), "no_coordinates").Inc()
		return domain.StationRecord{}, false, nil
	}
	if err != nil {
		logger.Warn("skipping station with unparsable coordinates", "coordinates", entry.Coordinates, "error", err)
		t.metrics.StationsSkipped.WithLabelValues(string(st), "invalid_coordinates").Inc()
		return domain.StationRecord{}, false, nil
	}

	name, err := t.resolveName(ctx, logger, entry, coords)
	if err != nil {
		return domain.StationRecord{}, false, fmt.Errorf("match station: %w", err)
	}

	rec := domain.StationRecord{
		ID:         entry.ID,
		Org:        entry.Org,
		Station:    name,
		Lat:        coords.Lat,
		Lon:        coords.Lon,
		SampleType: st,
	}

	files, err := t.raw.Files(st, entry.ID)
	if err != nil {
		logger.Warn("listing raw files failed", "error", err)
	}
	if len(files) == 0 {
		logger.Debug("no raw files for station")
	}
	for _, path := range files {
		t.parseFile(logger, &rec, path)
	}

	if st == domain.Seawater && rec.DepthData == nil {
		rec.DepthData = []domain.DepthBlock{}
	}
	if st != domain.Seawater && rec.Data == nil {
		rec.Data = []domain.SampleMeasurement{}
	}

	t.metrics.StationsProcessed.WithLabelValues(string(st)).Inc()
	return rec, true, nil
}

func (t *StationTransformer) resolveName(ctx context.Context, logger *slog.Logger, entry domain.StationEntry, coords domain.Coordinates) (string, error) {
	if name := strings.TrimSpace(entry.Station); name != "" {
		t.metrics.StationMatches.WithLabelValues("input").Inc()
		return name, nil
	}
	if t.matcher == nil {
		t.metrics.StationMatches.WithLabelValues("unresolved").Inc()
		return "", nil
	}

	name, err := t.matcher.MatchStation(ctx, entry.Org, coords)
	if err != nil {
		return "", err
	}
	if name == "" {
		logger.Debug("station name unresolved", "org", entry.Org, "lat", coords.Lat, "lon", coords.Lon)
		t.metrics.StationMatches.WithLabelValues("unresolved").Inc()
		return "", nil
	}
	t.metrics.StationMatches.WithLabelValues("reference").Inc()
	return name, nil
}

// parseFile replaces the record's data with the contents of path. On failure
// the previous data is kept.
func (t *StationTransformer) parseFile(logger *slog.Logger, rec *domain.StationRecord, path string) {
	name := filepath.Base(path)
	t.metrics.RawFiles.WithLabelValues(string(rec.SampleType)).Inc()

	content, err := t.raw.ReadFile(path)
	if err != nil {
		t.fileFailed(logger, rec.SampleType, name, err)
		return
	}

	if rec.SampleType == domain.Seawater {
		blocks, err := t.seawater.Parse(name, domain.SplitLines(content))
		if err != nil {
			t.fileFailed(logger, rec.SampleType, name, err)
			return
		}
		rec.DepthData = blocks
		return
	}

	data, err := t.samples.Parse(name, strings.NewReader(content))
	if err != nil {
		t.fileFailed(logger, rec.SampleType, name, err)
		return
	}
	rec.Data = data
}

func (t *StationTransformer) fileFailed(logger *slog.Logger, st domain.SampleType, file string, err error) {
	logger.Warn("raw file not parsed, keeping previous data", "file", file, "error", err)
	t.metrics.FileParseErrors.WithLabelValues(string(st)).Inc()
}
