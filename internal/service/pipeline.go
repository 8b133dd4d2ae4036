package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/jobmap/internal/address"
	"github.com/UnknownOlympus/jobmap/internal/cache"
	"github.com/UnknownOlympus/jobmap/internal/loader"
	"github.com/UnknownOlympus/jobmap/internal/metrics"
	"github.com/UnknownOlympus/jobmap/internal/models"
)

// CacheStore is the persisted address cache.
type CacheStore interface {
	Flusher
	Load() ([]models.CacheEntry, error)
}

// Renderer draws resolved records on the state map.
type Renderer interface {
	Render(ctx context.Context, points []models.ResolvedRecord) error
}

// LocationSink receives the resolved records of a state.
type LocationSink interface {
	SaveLocations(ctx context.Context, state string, records []models.ResolvedRecord) error
}

// PipelineConfig selects the input and the state of a run.
type PipelineConfig struct {
	InputPath string
	StateCode string
}

// Summary reports the counts of one run.
type Summary struct {
	Filtered  int // Filtered is the number of records in the target state.
	Unique    int // Unique is the number of distinct address keys.
	Cached    int // Cached is the number of unique keys already in the cache.
	Looked    int // Looked is the number of keys sent to the geocoder.
	Entries   int // Entries is the size of the cache after the run.
	Succeeded int // Succeeded is the number of cache entries with coordinates.
	Resolved  int // Resolved is the number of records that got coordinates.
}

// Pipeline runs load, normalize, dedup, geocode, merge and render in sequence.
type Pipeline struct {
	log      *slog.Logger
	config   PipelineConfig
	store    CacheStore
	geocoder *GeocodingService
	metrics  *metrics.Metrics
	renderer Renderer
	sink     LocationSink
}

// NewPipeline wires a pipeline. renderer and sink may be nil to skip those steps.
func NewPipeline(
	log *slog.Logger,
	config PipelineConfig,
	store CacheStore,
	geocoder *GeocodingService,
	metrics *metrics.Metrics,
	renderer Renderer,
	sink LocationSink,
) *Pipeline {
	return &Pipeline{
		log:      log,
		config:   config,
		store:    store,
		geocoder: geocoder,
		metrics:  metrics,
		renderer: renderer,
		sink:     sink,
	}
}

// Run executes the pipeline once.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	records, err := loader.Load(p.config.InputPath, p.config.StateCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}
	summary := &Summary{Filtered: len(records)}
	p.log.InfoContext(ctx, "Filtered employers", "state", p.config.StateCode, "records", len(records))

	keyed := address.Key(records)
	unique := address.Unique(keyed)
	summary.Unique = len(unique)
	p.log.InfoContext(ctx, "Unique addresses to geocode", "count", len(unique))

	results, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load geocoding cache: %w", err)
	}

	pending := cache.Pending(unique, cache.Index(results))
	summary.Cached = len(unique) - len(pending)
	summary.Looked = len(pending)
	p.metrics.CacheHits.Add(float64(summary.Cached))
	p.log.InfoContext(ctx, "Cache status",
		"already_geocoded", len(results),
		"cache_hits", summary.Cached,
		"remaining", len(pending))

	results, err = p.geocoder.Run(ctx, pending, results, len(unique))
	if err != nil {
		return summary, err
	}

	for _, entry := range results {
		if entry.Resolved() {
			summary.Succeeded++
		}
	}
	summary.Entries = len(results)
	p.log.InfoContext(ctx, "Successfully geocoded addresses",
		"succeeded", summary.Succeeded,
		"total", summary.Entries)

	resolved := Merge(keyed, results)
	summary.Resolved = len(resolved)
	p.metrics.ResolvedRecords.Set(float64(len(resolved)))
	p.log.InfoContext(ctx, "Jobs with valid coordinates", "count", len(resolved))

	if p.sink != nil {
		if err = p.sink.SaveLocations(ctx, p.config.StateCode, resolved); err != nil {
			return summary, fmt.Errorf("failed to export locations: %w", err)
		}
	}

	if p.renderer != nil {
		if err = p.renderer.Render(ctx, resolved); err != nil {
			return summary, fmt.Errorf("failed to render map: %w", err)
		}
		p.log.InfoContext(ctx, "Plotted employer job locations", "count", len(resolved))
	}

	return summary, nil
}

// Interrupted reports whether err comes from a cancelled run.
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
