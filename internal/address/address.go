// Package address derives geocoding queries from employer records.
package address

import (
	"strings"
	"unicode"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize builds the full and the fallback address for a record.
// Street and city are trimmed and title-cased; state and postal code are kept as written.
// The result depends only on the record's field values.
func Normalize(record models.Record) models.AddressKey {
	street := titleCase(record.Address)
	city := titleCase(record.City)
	postal := strings.TrimSpace(record.PostalCode)

	return models.AddressKey{
		Full:   street + ", " + city + ", " + record.State + " " + postal,
		Simple: city + ", " + record.State + " " + postal,
	}
}

// Key normalizes every record, keeping the input order.
func Key(records []models.Record) []models.KeyedRecord {
	keyed := make([]models.KeyedRecord, 0, len(records))
	for _, record := range records {
		keyed = append(keyed, models.KeyedRecord{Record: record, Key: Normalize(record)})
	}

	return keyed
}

// Unique returns the distinct address keys in order of first occurrence.
func Unique(records []models.KeyedRecord) []models.AddressKey {
	seen := make(map[models.AddressKey]struct{}, len(records))
	keys := make([]models.AddressKey, 0, len(records))

	for _, record := range records {
		if _, ok := seen[record.Key]; ok {
			continue
		}
		seen[record.Key] = struct{}{}
		keys = append(keys, record.Key)
	}

	return keys
}

// titleCase trims the value and upper-cases the first letter of each word.
// A letter right after an apostrophe starts a new word too ("O'Brien"), so keys
// match the ones already written to existing cache files.
// A fresh caser is used per call since cases.Caser keeps state.
func titleCase(value string) string {
	titled := []rune(cases.Title(language.English).String(strings.TrimSpace(value)))
	for i := 1; i < len(titled); i++ {
		if titled[i-1] == '\'' || titled[i-1] == '\u2019' {
			titled[i] = unicode.ToUpper(titled[i])
		}
	}

	return string(titled)
}
