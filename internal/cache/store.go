// Package cache persists geocoding outcomes in a flat CSV file keyed by full address.
package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/jszwec/csvutil"
)

// row is the on-disk layout of a cache entry. Empty coordinates mark a failed lookup.
type row struct {
	FullAddress string `csv:"full_address"`
	Latitude    string `csv:"latitude"`
	Longitude   string `csv:"longitude"`
}

// Store reads and rewrites the cache file.
type Store struct {
	path string
	log  *slog.Logger
}

// NewStore creates a Store backed by the CSV file at path.
func NewStore(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.path
}

// Load parses the cache file in file order. A missing file is an empty cache.
// Repeated addresses keep their first entry.
func (s *Store) Load() ([]models.CacheEntry, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Info("No cache found, starting fresh", "path", s.path)
		return []models.CacheEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(file))
	if errors.Is(err, io.EOF) {
		return []models.CacheEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache header: %w", err)
	}

	seen := make(map[string]struct{})
	entries := []models.CacheEntry{}
	for {
		var r row
		if err = dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode cache row %d: %w", len(entries)+1, err)
		}

		if _, dup := seen[r.FullAddress]; dup {
			s.log.Warn("Duplicate cache entry ignored", "address", r.FullAddress)
			continue
		}
		seen[r.FullAddress] = struct{}{}

		entry, errParse := r.entry()
		if errParse != nil {
			return nil, fmt.Errorf("failed to parse cache row %d: %w", len(entries)+1, errParse)
		}
		entries = append(entries, entry)
	}

	s.log.Info("Loaded cached geocoded addresses", "path", s.path, "entries", len(entries))

	return entries, nil
}

// Flush writes the complete entry list, replacing the previous file content.
// The data goes to a temporary file first and is renamed over the cache file.
func (s *Store) Flush(entries []models.CacheEntry) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	enc := csvutil.NewEncoder(writer)
	if err = enc.EncodeHeader(row{}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache header: %w", err)
	}
	for _, entry := range entries {
		if err = enc.Encode(newRow(entry)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write cache entry: %w", err)
		}
	}

	writer.Flush()
	if err = writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush cache writer: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	s.log.Debug("Cache flushed", "path", s.path, "entries", len(entries))

	return nil
}

// Index maps each entry by its full address.
func Index(entries []models.CacheEntry) map[string]models.CacheEntry {
	index := make(map[string]models.CacheEntry, len(entries))
	for _, entry := range entries {
		if _, ok := index[entry.FullAddress]; !ok {
			index[entry.FullAddress] = entry
		}
	}

	return index
}

// Pending returns the keys whose full address has no entry yet, keeping their order.
// Cached failures count as entries and are not returned.
func Pending(unique []models.AddressKey, loaded map[string]models.CacheEntry) []models.AddressKey {
	pending := make([]models.AddressKey, 0, len(unique))
	for _, key := range unique {
		if _, ok := loaded[key.Full]; ok {
			continue
		}
		pending = append(pending, key)
	}

	return pending
}

func newRow(entry models.CacheEntry) row {
	r := row{FullAddress: entry.FullAddress}
	if entry.Coordinates != nil {
		r.Latitude = strconv.FormatFloat(entry.Coordinates.Latitude, 'f', -1, 64)
		r.Longitude = strconv.FormatFloat(entry.Coordinates.Longitude, 'f', -1, 64)
	}

	return r
}

func (r row) entry() (models.CacheEntry, error) {
	entry := models.CacheEntry{FullAddress: r.FullAddress}

	lat, latOK, err := parseCoordinate(r.Latitude)
	if err != nil {
		return entry, fmt.Errorf("invalid latitude %q: %w", r.Latitude, err)
	}
	lon, lonOK, err := parseCoordinate(r.Longitude)
	if err != nil {
		return entry, fmt.Errorf("invalid longitude %q: %w", r.Longitude, err)
	}

	if latOK && lonOK {
		entry.Coordinates = &models.Coordinates{Latitude: lat, Longitude: lon}
	}

	return entry, nil
}

// parseCoordinate reads one coordinate cell. Empty and NaN cells are absent values.
func parseCoordinate(value string) (float64, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(parsed) {
		return 0, false, nil
	}

	return parsed, true, nil
}
