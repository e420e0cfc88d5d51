package reftable

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

// Matcher implements domain.StationMatcher over an ordered list of reference
// CSV files. Each file is loaded on first use and shared read-only afterwards.
type Matcher struct {
	sources []*source
	logger  *slog.Logger
}

type source struct {
	path  string
	once  sync.Once
	table *domain.ReferenceTable
	err   error
}

// NewMatcher creates a matcher that consults the tables in paths order; the
// first table with a non-empty station name for a lookup wins.
func NewMatcher(logger *slog.Logger, paths ...string) *Matcher {
	m := &Matcher{logger: logger}
	for _, p := range paths {
		m.sources = append(m.sources, &source{path: p})
	}
	return m
}

// MatchStation returns the station name for org at c, or "" when no table has
// a matching row. A table whose header lacks required columns fails every
// lookup with an error wrapping domain.ErrMissingColumns.
func (m *Matcher) MatchStation(ctx context.Context, org string, c domain.Coordinates) (string, error) {
	for _, s := range m.sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		table, err := m.load(s)
		if err != nil {
			return "", err
		}
		if name, ok := table.Match(org, c.Lat, c.Lon); ok && name != "" {
			return name, nil
		}
	}
	return "", nil
}

func (m *Matcher) load(s *source) (*domain.ReferenceTable, error) {
	s.once.Do(func() {
		table, err := Load(s.path, m.logger)
		switch {
		case err == nil:
			s.table = table
			m.logger.Debug("reference table loaded", "table", table.Name, "rows", len(table.Rows))
		case errors.Is(err, domain.ErrMissingColumns):
			s.err = err
		default:
			m.logger.Warn("reference table unreadable, treating as empty", "path", s.path, "error", err)
			s.table = &domain.ReferenceTable{Name: strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))}
		}
	})
	return s.table, s.err
}
