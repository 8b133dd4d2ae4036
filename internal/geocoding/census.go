package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/UnknownOlympus/jobmap/internal/models"
)

// CensusBaseURL is the US Census Bureau one-line address geocoder.
const CensusBaseURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"

const censusBenchmark = "Public_AR_Current"

// ErrCensusEmptyResponse is returned when the Census geocoder has no address match.
var ErrCensusEmptyResponse = fmt.Errorf("census geocoder returned no address match: %w", ErrNoResult)

// CensusProvider geocodes US street addresses with the Census Bureau geocoder.
// It needs no API key but only knows addresses inside the United States.
type CensusProvider struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
}

type censusResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// NewCensusProvider creates a Census provider against the public endpoint.
func NewCensusProvider(timeout time.Duration, log *slog.Logger) *CensusProvider {
	return NewCensusProviderWithClient(&http.Client{Timeout: timeout}, CensusBaseURL, log)
}

// NewCensusProviderWithClient allows injecting a custom HTTP client and endpoint.
func NewCensusProviderWithClient(client HTTPClient, baseURL string, log *slog.Logger) *CensusProvider {
	return &CensusProvider{client: client, baseURL: baseURL, log: log}
}

// Geocode resolves a one-line address using the current public benchmark.
func (cp *CensusProvider) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	cp.log.DebugContext(ctx, "Geocoding using Census geocoder", "address", address)

	params := url.Values{
		"address":   {address},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cp.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := cp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		cp.log.ErrorContext(ctx, "Census API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("census API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result censusResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode census response: %w", err)
	}

	matches := result.Result.AddressMatches
	if len(matches) == 0 {
		return nil, ErrCensusEmptyResponse
	}

	cp.log.DebugContext(ctx, "Census found result", "address", address, "matched", matches[0].MatchedAddress)

	return &models.Coordinates{
		Latitude:  matches[0].Coordinates.Y,
		Longitude: matches[0].Coordinates.X,
	}, nil
}
