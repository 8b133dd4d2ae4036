package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/UnknownOlympus/jobmap/internal/geocoding"
	"github.com/UnknownOlympus/jobmap/internal/metrics"
	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/UnknownOlympus/jobmap/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service  *GeocodingService
	provider *mocks.Provider
	store    *mocks.CacheStore
	metrics  *metrics.Metrics
	sleeps   []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	fx := &fixture{
		provider: mocks.NewProvider(t),
		store:    mocks.NewCacheStore(t),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	fx.service = NewGeocodingService(logger, fx.provider, "mock", fx.metrics, fx.store, 10, 2*time.Second)
	fx.service.sleep = func(_ context.Context, d time.Duration) error {
		fx.sleeps = append(fx.sleeps, d)
		return nil
	}

	return fx
}

func withLen(n int) any {
	return mock.MatchedBy(func(entries []models.CacheEntry) bool { return len(entries) == n })
}

func keyFor(i int) models.AddressKey {
	return models.AddressKey{
		Full:   fmt.Sprintf("%d Main St, Macon, GA 31201", i),
		Simple: "Macon, GA 31201",
	}
}

func TestGeocodingService_Run(t *testing.T) {
	ctx := t.Context()
	coords := &models.Coordinates{Latitude: 32.84, Longitude: -83.63}
	key := models.AddressKey{Full: "10 Peach St, Macon, GA 31201", Simple: "Macon, GA 31201"}

	t.Run("full address resolves", func(t *testing.T) {
		fx := newFixture(t)
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(coords, nil).Once()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key}, nil, 1)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, models.CacheEntry{FullAddress: key.Full, Coordinates: coords}, results[0])
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.LookupsProcessed.WithLabelValues(metrics.StatusSuccess)), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.CacheFlushes), 0)
	})

	t.Run("falls back to simple address", func(t *testing.T) {
		fx := newFixture(t)
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(nil, geocoding.ErrNominatimEmptyResponse).Once()
		fx.provider.On("Geocode", mock.Anything, key.Simple).Return(coords, nil).Once()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key}, nil, 1)

		require.NoError(t, err)
		assert.Equal(t, coords, results[0].Coordinates)
		assert.Equal(t, key.Full, results[0].FullAddress)
	})

	t.Run("no fallback when simple equals full", func(t *testing.T) {
		fx := newFixture(t)
		same := models.AddressKey{Full: ", , GA ", Simple: ", , GA "}
		fx.provider.On("Geocode", mock.Anything, same.Full).Return(nil, geocoding.ErrEmptyResponse).Once()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{same}, nil, 1)

		require.NoError(t, err)
		assert.Nil(t, results[0].Coordinates)
		fx.provider.AssertNumberOfCalls(t, "Geocode", 1)
	})

	t.Run("both forms unresolved is a negative entry", func(t *testing.T) {
		fx := newFixture(t)
		fx.provider.On("Geocode", mock.Anything, mock.Anything).Return(nil, geocoding.ErrCensusEmptyResponse).Twice()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key}, nil, 1)

		require.NoError(t, err)
		assert.False(t, results[0].Resolved())
		assert.Empty(t, fx.sleeps)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.LookupsProcessed.WithLabelValues(metrics.StatusNotFound)), 0)
	})

	t.Run("provider error records negative entry and pauses", func(t *testing.T) {
		fx := newFixture(t)
		other := keyFor(2)
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(nil, assert.AnError).Once()
		fx.provider.On("Geocode", mock.Anything, other.Full).Return(coords, nil).Once()
		fx.store.On("Flush", withLen(2)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key, other}, nil, 2)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Nil(t, results[0].Coordinates)
		assert.Equal(t, coords, results[1].Coordinates)
		assert.Equal(t, []time.Duration{2 * time.Second}, fx.sleeps)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.APIErrors), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.LookupsProcessed.WithLabelValues(metrics.StatusFailure)), 0)
	})

	t.Run("exhausted retries fall back to simple address", func(t *testing.T) {
		fx := newFixture(t)
		limiter := geocoding.NewRateLimiter(fx.provider, geocoding.LimiterConfig{MaxRetries: 1}, slog.Default())
		fx.service.provider = limiter
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(nil, assert.AnError).Twice()
		fx.provider.On("Geocode", mock.Anything, key.Simple).Return(coords, nil).Once()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key}, nil, 1)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, models.CacheEntry{FullAddress: key.Full, Coordinates: coords}, results[0])
		assert.Empty(t, fx.sleeps)
		assert.InDelta(t, 0, testutil.ToFloat64(fx.metrics.APIErrors), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(fx.metrics.LookupsProcessed.WithLabelValues(metrics.StatusSuccess)), 0)
	})

	t.Run("flushes every ten entries and at the end", func(t *testing.T) {
		fx := newFixture(t)
		pending := make([]models.AddressKey, 0, 12)
		for i := range 12 {
			pending = append(pending, keyFor(i))
		}
		fx.provider.On("Geocode", mock.Anything, mock.Anything).Return(coords, nil).Times(12)
		fx.store.On("Flush", withLen(10)).Return(nil).Once()
		fx.store.On("Flush", withLen(12)).Return(nil).Once()

		results, err := fx.service.Run(ctx, pending, nil, 12)

		require.NoError(t, err)
		assert.Len(t, results, 12)
		assert.InDelta(t, 2, testutil.ToFloat64(fx.metrics.CacheFlushes), 0)
	})

	t.Run("cached entries count toward the flush interval", func(t *testing.T) {
		fx := newFixture(t)
		existing := make([]models.CacheEntry, 0, 8)
		for i := range 8 {
			existing = append(existing, models.CacheEntry{FullAddress: keyFor(i).Full})
		}
		pending := []models.AddressKey{keyFor(100), keyFor(101), keyFor(102)}
		fx.provider.On("Geocode", mock.Anything, mock.Anything).Return(coords, nil).Times(3)
		fx.store.On("Flush", withLen(10)).Return(nil).Once()
		fx.store.On("Flush", withLen(11)).Return(nil).Once()

		results, err := fx.service.Run(ctx, pending, existing, 11)

		require.NoError(t, err)
		assert.Len(t, results, 11)
	})

	t.Run("no pending addresses flushes the loaded entries unchanged", func(t *testing.T) {
		fx := newFixture(t)
		existing := []models.CacheEntry{{FullAddress: key.Full, Coordinates: coords}, {FullAddress: "other"}}
		fx.store.On("Flush", mock.MatchedBy(func(entries []models.CacheEntry) bool {
			return assert.ObjectsAreEqual(existing, entries)
		})).Return(nil).Once()

		results, err := fx.service.Run(ctx, nil, existing, 2)

		require.NoError(t, err)
		assert.Equal(t, existing, results)
		fx.provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	})

	t.Run("repeated full address is looked up once", func(t *testing.T) {
		fx := newFixture(t)
		twin := models.AddressKey{Full: key.Full, Simple: "Somewhere Else, GA 31201"}
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(coords, nil).Once()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(ctx, []models.AddressKey{key, twin}, nil, 2)

		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("flush error stops the run", func(t *testing.T) {
		fx := newFixture(t)
		fx.provider.On("Geocode", mock.Anything, key.Full).Return(coords, nil).Once()
		fx.store.On("Flush", mock.Anything).Return(assert.AnError).Once()

		_, err := fx.service.Run(ctx, []models.AddressKey{key}, nil, 1)

		require.ErrorIs(t, err, assert.AnError)
		assert.ErrorContains(t, err, "failed to flush geocoding cache")
	})

	t.Run("cancelled context flushes and stops", func(t *testing.T) {
		fx := newFixture(t)
		existing := []models.CacheEntry{{FullAddress: "other"}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		fx.store.On("Flush", withLen(1)).Return(nil).Once()

		results, err := fx.service.Run(cctx, []models.AddressKey{key}, existing, 2)

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, existing, results)
		fx.provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	})

	t.Run("cancellation during a lookup is not cached", func(t *testing.T) {
		fx := newFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		fx.provider.On("Geocode", mock.Anything, key.Full).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, context.Canceled).Once()
		fx.store.On("Flush", withLen(0)).Return(nil).Once()

		results, err := fx.service.Run(cctx, []models.AddressKey{key}, nil, 1)

		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, results)
	})
}
