package geocoding

import (
	"context"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/jobmap/internal/models"
)

// ErrNoResult means the provider answered but found no match for the address.
// It is not a failure of the service and must not be retried.
var ErrNoResult = errors.New("no geocoding result")

// Provider is an interface that defines a method for geocoding an address.
// The Geocode method takes a context and an address string as input,
// and returns the corresponding coordinates and an error if any occurs.
// An address without a match yields an error wrapping ErrNoResult.
type Provider interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
