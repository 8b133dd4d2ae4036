package service

import (
	"github.com/UnknownOlympus/jobmap/internal/cache"
	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/twpayne/go-geom"
)

// Merge joins records with cache entries on the full address and keeps only the
// rows whose entry has coordinates. Input order is preserved.
func Merge(records []models.KeyedRecord, entries []models.CacheEntry) []models.ResolvedRecord {
	index := cache.Index(entries)

	resolved := make([]models.ResolvedRecord, 0, len(records))
	for _, record := range records {
		entry, ok := index[record.Key.Full]
		if !ok || !entry.Resolved() {
			continue
		}

		coords := *entry.Coordinates
		resolved = append(resolved, models.ResolvedRecord{
			KeyedRecord: record,
			Coordinates: coords,
			Point:       geom.NewPointFlat(geom.XY, []float64{coords.Longitude, coords.Latitude}).SetSRID(4326),
		})
	}

	return resolved
}
