package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// DateColumn is the header of the date column in exported archive tables.
const DateColumn = "date"

// Entry holds the temperatures (°C) recorded for one date, keyed by site.
// A site without a key has no reading for that date.
type Entry map[string]float64

// Archive maps canonical dates to their per-site readings.
type Archive map[string]Entry

// MergeStats counts what a merge accepted and what it filtered out.
type MergeStats struct {
	Rows          int `json:"rows"`
	Accepted      int `json:"accepted"`
	RejectedDates int `json:"rejected_dates"`
	Values        int `json:"values"`
	InvalidValues int `json:"invalid_values"`
}

// Add accumulates other into s.
func (s *MergeStats) Add(other MergeStats) {
	s.Rows += other.Rows
	s.Accepted += other.Accepted
	s.RejectedDates += other.RejectedDates
	s.Values += other.Values
	s.InvalidValues += other.InvalidValues
}

// Observation is a single normalized reading, typically a fetched daily mean.
type Observation struct {
	Date     string
	Location string
	Value    float64
}

// NewArchive returns an empty archive.
func NewArchive() Archive {
	return make(Archive)
}

// Clone returns a deep copy of the archive.
func (a Archive) Clone() Archive {
	out := make(Archive, len(a))
	for date, entry := range a {
		e := make(Entry, len(entry))
		for loc, v := range entry {
			e[loc] = v
		}
		out[date] = e
	}
	return out
}

// Dates returns the archive's dates in ascending order.
func (a Archive) Dates() []string {
	dates := make([]string, 0, len(a))
	for d := range a {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Value returns the reading for a site on a date.
func (a Archive) Value(date, location string) (float64, bool) {
	entry, ok := a[date]
	if !ok {
		return 0, false
	}
	v, ok := entry[location]
	return v, ok
}

func (a Archive) set(date, location string, v float64) {
	entry, ok := a[date]
	if !ok {
		entry = make(Entry)
		a[date] = entry
	}
	entry[location] = v
}

// MergeRows folds tabular rows into a copy of existing and returns it.
//
// Each row's date is read through the date header aliases and normalized; rows
// whose date cannot be normalized are dropped. For every site in locations with
// a parseable cell the stored value for that date is overwritten. Any other
// column is kept as a site keyed by its lower-cased header, so a table written
// by ToRows reads back in full. Empty or unparseable cells never clear a stored
// value. existing is not modified and may be nil.
func MergeRows(existing Archive, rows []Row, locations []Location) (Archive, MergeStats) {
	out := existing.Clone()
	var stats MergeStats

	claimed := make(map[string]struct{})
	for _, alias := range dateHeaderAliases {
		claimed[canonicalHeader(alias)] = struct{}{}
	}
	for _, loc := range locations {
		for _, alias := range locationHeaderAliases(loc) {
			claimed[canonicalHeader(alias)] = struct{}{}
		}
	}

	mergeCell := func(date, key, cell string) {
		if strings.TrimSpace(cell) == "" {
			return
		}
		v, ok := NormalizeNumber(cell)
		if !ok {
			stats.InvalidValues++
			return
		}
		out.set(date, key, v)
		stats.Values++
	}

	for _, row := range rows {
		stats.Rows++
		rawDate, _ := lookupField(row, dateHeaderAliases)
		date := NormalizeDate(rawDate)
		if date == "" {
			stats.RejectedDates++
			continue
		}
		stats.Accepted++
		if _, ok := out[date]; !ok {
			out[date] = make(Entry)
		}

		for _, loc := range locations {
			if cell, ok := lookupField(row, locationHeaderAliases(loc)); ok {
				mergeCell(date, loc.Key, cell)
			}
		}
		for _, h := range extraColumns(row, claimed) {
			mergeCell(date, strings.ToLower(strings.TrimSpace(h)), row[h])
		}
	}
	return out, stats
}

// extraColumns returns the row's headers that name neither the date nor a
// configured site, in sorted order.
func extraColumns(row Row, claimed map[string]struct{}) []string {
	var extra []string
	for h := range row {
		c := canonicalHeader(h)
		if c == "" {
			continue
		}
		if _, ok := claimed[c]; ok {
			continue
		}
		extra = append(extra, h)
	}
	sort.Strings(extra)
	return extra
}

// MergeObservations folds individual readings into a copy of existing using the
// same per-site, per-date overwrite rule as MergeRows.
func MergeObservations(existing Archive, observations []Observation) (Archive, MergeStats) {
	out := existing.Clone()
	var stats MergeStats

	for _, obs := range observations {
		stats.Rows++
		date := NormalizeDate(obs.Date)
		if date == "" {
			stats.RejectedDates++
			continue
		}
		stats.Accepted++
		if obs.Location == "" || math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
			stats.InvalidValues++
			continue
		}
		out.set(date, obs.Location, obs.Value)
		stats.Values++
	}
	return out, stats
}

// KnownLocations returns the column keys used when exporting an archive: the
// configured sites in order, then any other site keys found in the archive, sorted.
func KnownLocations(a Archive, configured []Location) []string {
	keys := LocationKeys(configured)
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}

	var extra []string
	for _, entry := range a {
		for k := range entry {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// ToRows renders the archive as table rows, one per date in ascending order.
// Every known site column is present; missing readings are empty strings and
// values use the shortest representation that parses back to the same float.
func ToRows(a Archive, locations []Location) []Row {
	keys := KnownLocations(a, locations)
	dates := a.Dates()
	rows := make([]Row, 0, len(dates))

	for _, date := range dates {
		row := Row{DateColumn: date}
		for _, k := range keys {
			row[k] = ""
			if v, ok := a[date][k]; ok {
				row[k] = FormatValue(v)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatValue renders a temperature without trailing zeros or exponent noise.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
