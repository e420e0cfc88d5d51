// Package rawfs stores and reads the raw per-station CSV files downloaded from
// the ORBS portal. Files live under <root>/<category>/, e.g.
// downloaded_CSVs/Seawater/Seawater_10_42.csv.
package rawfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

// Store is a directory of raw CSV files grouped by sample type category.
// Directory listings are read once per Store and cached.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	index map[domain.SampleType]map[int][]string
}

func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{
		root:   root,
		logger: logger,
		index:  make(map[domain.SampleType]map[int][]string),
	}
}

// Dir returns the directory holding the raw files of a sample type.
func (s *Store) Dir(st domain.SampleType) string {
	return filepath.Join(s.root, st.Category())
}

// Files returns the paths of the raw files belonging to station id, sorted by
// file name. A missing category directory yields no files.
func (s *Store) Files(st domain.SampleType, id int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.index[st]
	if !ok {
		var err error
		byID, err = s.list(st)
		if err != nil {
			return nil, err
		}
		s.index[st] = byID
	}
	return byID[id], nil
}

func (s *Store) list(st domain.SampleType) (map[int][]string, error) {
	dir := s.Dir(st)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("raw directory missing", "dir", dir)
		return map[int][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list raw files: %w", err)
	}

	byID := make(map[int][]string)
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		id, ok := StationID(e.Name())
		if !ok {
			s.logger.Debug("ignoring raw file without station id", "file", e.Name())
			continue
		}
		byID[id] = append(byID[id], filepath.Join(dir, e.Name()))
	}
	for _, paths := range byID {
		sort.Strings(paths)
	}
	return byID, nil
}

// StationID extracts the station id from a raw file name: the text after the
// last underscore of the name without its extension. "Fishes_20_301.csv" has
// id 301.
func StationID(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	if i < 0 {
		return 0, false
	}
	suffix := stem[i+1:]
	id, err := strconv.Atoi(suffix)
	if err != nil || strconv.Itoa(id) != suffix {
		return 0, false
	}
	return id, true
}

// ReadFile returns the decoded text of a raw file. Files that are not valid
// UTF-8 are decoded as Shift_JIS.
func (s *Store) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read raw file: %w", err)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode %s as Shift_JIS: %w", filepath.Base(path), err)
	}
	s.logger.Debug("decoded raw file as Shift_JIS", "file", filepath.Base(path))
	return string(decoded), nil
}

// Save writes a downloaded file into the category directory, replacing any
// previous copy. It returns the written path.
func (s *Store) Save(category, name string, data []byte) (string, error) {
	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create raw directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write raw file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename raw file: %w", err)
	}

	s.mu.Lock()
	delete(s.index, categoryType(category))
	s.mu.Unlock()
	return path, nil
}

func categoryType(category string) domain.SampleType {
	for _, st := range domain.SampleTypes {
		if st.Category() == category {
			return st
		}
	}
	return ""
}
