package models

// CacheEntry is the stored outcome of geocoding one full address.
// A nil Coordinates means the lookup was attempted and nothing was found;
// such an entry is final and is never looked up again.
type CacheEntry struct {
	FullAddress string
	Coordinates *Coordinates
}

// Resolved reports whether the entry carries coordinates.
func (e CacheEntry) Resolved() bool {
	return e.Coordinates != nil
}
