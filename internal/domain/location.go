package domain

import "strings"

// Location is a coastal monitoring site.
type Location struct {
	Key  string  `json:"key"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultLocations are the Bali sites tracked when no SITES override is configured.
var DefaultLocations = []Location{
	{Key: "jimbaran", Name: "Jimbaran", Lat: -8.783715, Lon: 115.125306},
	{Key: "nusadua", Name: "Nusa Dua", Lat: -8.808350, Lon: 115.263204},
	{Key: "sanur", Name: "Sanur", Lat: -8.673680, Lon: 115.277472},
}

// FindLocation looks a site up by key, ignoring case and surrounding whitespace.
func FindLocation(locations []Location, key string) (Location, bool) {
	key = strings.TrimSpace(key)
	for _, loc := range locations {
		if strings.EqualFold(loc.Key, key) {
			return loc, true
		}
	}
	return Location{}, false
}

// LocationKeys returns the keys of locations in order.
func LocationKeys(locations []Location) []string {
	keys := make([]string, len(locations))
	for i, loc := range locations {
		keys[i] = loc.Key
	}
	return keys
}
