package domain

import (
	"sort"
	"strings"
)

// DailyMeans reduces hourly samples to one mean per date. Timestamps are
// "YYYY-MM-DDTHH:MM" local times; only the date part is used. Nil samples are
// skipped and dates without any sample are left out.
func DailyMeans(times []string, temps []*float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for i, ts := range times {
		if i >= len(temps) || temps[i] == nil {
			continue
		}
		date, _, _ := strings.Cut(ts, "T")
		date = strings.TrimSpace(date)
		if date == "" {
			continue
		}
		sums[date] += *temps[i]
		counts[date]++
	}

	means := make(map[string]float64, len(sums))
	for date, sum := range sums {
		means[date] = sum / float64(counts[date])
	}
	return means
}

// ObservationsFromDaily converts one site's daily means into observations
// sorted by date.
func ObservationsFromDaily(location string, daily map[string]float64) []Observation {
	out := make([]Observation, 0, len(daily))
	for date, v := range daily {
		out = append(out, Observation{Date: date, Location: location, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
