package models

import "github.com/twpayne/go-geom"

// Record is one row of the employer jobs dataset. Every field is a plain string;
// a missing column or an empty cell is read as "".
type Record struct {
	CaseNumber   string `csv:"CASE_NUMBER"`          // CaseNumber identifies the job order.
	EmployerName string `csv:"EMPLOYER_NAME"`        // EmployerName is the legal name of the employer.
	JobTitle     string `csv:"JOB_TITLE"`            // JobTitle is the advertised position.
	Address      string `csv:"EMPLOYER_ADDRESS_1"`   // Address is the first street address line.
	City         string `csv:"EMPLOYER_CITY"`        // City of the employer.
	State        string `csv:"EMPLOYER_STATE"`       // State is the two-letter state code.
	PostalCode   string `csv:"EMPLOYER_POSTAL_CODE"` // PostalCode is the ZIP code as written in the source.
}

// AddressKey is the pair of geocoding queries derived from a Record.
// Full is also the cache key.
type AddressKey struct {
	Full   string // Full is "street, city, state zip".
	Simple string // Simple is the coarser "city, state zip" fallback.
}

// KeyedRecord is a Record together with its normalized address key.
type KeyedRecord struct {
	Record
	Key AddressKey
}

// ResolvedRecord is a KeyedRecord whose address was geocoded successfully.
type ResolvedRecord struct {
	KeyedRecord
	Coordinates Coordinates
	Point       *geom.Point // Point holds (longitude, latitude) in EPSG:4326.
}
