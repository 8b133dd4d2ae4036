package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/jobmap/internal/geocoding"
	"github.com/UnknownOlympus/jobmap/internal/metrics"
	"github.com/UnknownOlympus/jobmap/internal/models"
)

// Flusher persists the complete list of cache entries.
type Flusher interface {
	Flush(entries []models.CacheEntry) error
}

// GeocodingService resolves pending addresses one at a time and keeps the
// cache file in step with the results.
type GeocodingService struct {
	log          *slog.Logger       // Logger for logging service activities
	provider     geocoding.Provider // Rate-limited geocoding provider
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking service performance
	store        Flusher            // Destination of periodic flushes
	flushEvery   int                // Flush after every n-th accumulated entry
	errorPause   time.Duration      // Extra pause after a failed lookup
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewGeocodingService creates a new instance of GeocodingService.
// The provider is expected to carry the rate limit already (see geocoding.RateLimiter).
func NewGeocodingService(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	store Flusher,
	flushEvery int,
	errorPause time.Duration,
) *GeocodingService {
	if flushEvery <= 0 {
		flushEvery = 1
	}

	return &GeocodingService{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		store:        store,
		flushEvery:   flushEvery,
		errorPause:   errorPause,
		sleep:        geocoding.Sleep,
	}
}

// Run geocodes every pending key in order and appends one entry per key to results.
// total is the number of unique addresses of the run and is only used for progress.
// Each time len(results) reaches a multiple of the flush interval the whole list is
// flushed, and once more when the loop ends. If ctx is cancelled the loop stops,
// flushes what it has and returns the context error together with the results.
func (gs *GeocodingService) Run(
	ctx context.Context,
	pending []models.AddressKey,
	results []models.CacheEntry,
	total int,
) ([]models.CacheEntry, error) {
	recorded := make(map[string]struct{}, len(results)+len(pending))
	for _, entry := range results {
		recorded[entry.FullAddress] = struct{}{}
	}

	var interrupted error
	for _, key := range pending {
		if interrupted = ctx.Err(); interrupted != nil {
			break
		}
		if _, done := recorded[key.Full]; done {
			gs.log.DebugContext(ctx, "Address already recorded in this run", "address", key.Full)
			continue
		}

		coords, err := gs.lookup(ctx, key)
		if err != nil && ctx.Err() != nil {
			interrupted = ctx.Err()
			break
		}

		results = append(results, models.CacheEntry{FullAddress: key.Full, Coordinates: coords})
		recorded[key.Full] = struct{}{}

		switch {
		case err != nil:
			gs.log.ErrorContext(ctx, "Error geocoding address", "address", key.Full, "error", err)
			gs.metrics.LookupsProcessed.WithLabelValues(metrics.StatusFailure).Inc()
			gs.metrics.APIErrors.Inc()
			interrupted = gs.sleep(ctx, gs.errorPause)
		case coords == nil:
			gs.log.DebugContext(ctx, "Address not found", "address", key.Full)
			gs.metrics.LookupsProcessed.WithLabelValues(metrics.StatusNotFound).Inc()
		default:
			gs.metrics.LookupsProcessed.WithLabelValues(metrics.StatusSuccess).Inc()
		}

		if len(results)%gs.flushEvery == 0 {
			gs.log.InfoContext(ctx, "Geocoding progress", "geocoded", len(results), "total", total)
			if errFlush := gs.flush(results); errFlush != nil {
				return results, errFlush
			}
		}

		if interrupted != nil {
			break
		}
	}

	if err := gs.flush(results); err != nil {
		return results, err
	}

	if interrupted != nil {
		return results, fmt.Errorf("geocoding interrupted: %w", interrupted)
	}

	return results, nil
}

// lookup queries the full address and, when nothing is found and the fallback
// differs, the city-level address. A nil result with a nil error means no match.
func (gs *GeocodingService) lookup(ctx context.Context, key models.AddressKey) (*models.Coordinates, error) {
	coords, err := gs.query(ctx, key.Full)
	if err != nil || coords != nil {
		return coords, err
	}

	if key.Simple == key.Full {
		return nil, nil
	}

	gs.log.InfoContext(ctx, "Full address failed, trying simple address", "simple_address", key.Simple)

	return gs.query(ctx, key.Simple)
}

func (gs *GeocodingService) query(ctx context.Context, address string) (*models.Coordinates, error) {
	startTime := time.Now()
	coords, err := gs.provider.Geocode(ctx, address)
	gs.metrics.RequestSeconds.WithLabelValues(gs.providerName).Observe(time.Since(startTime).Seconds())

	if errors.Is(err, geocoding.ErrNoResult) {
		return nil, nil
	}

	return coords, err
}

func (gs *GeocodingService) flush(results []models.CacheEntry) error {
	if err := gs.store.Flush(results); err != nil {
		return fmt.Errorf("failed to flush geocoding cache: %w", err)
	}
	gs.metrics.CacheFlushes.Inc()

	return nil
}
