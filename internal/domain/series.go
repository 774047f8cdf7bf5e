package domain

import (
	"errors"
	"fmt"
	"time"
)

// maxRangeDays bounds a requested range so a typo in a year cannot allocate
// millions of days.
const maxRangeDays = 50 * 366

// ErrInvalidRange is returned for unreadable or reversed date ranges.
var ErrInvalidRange = errors.New("invalid date range")

// Series is a gap-free, index-aligned view of one site over a date range,
// ready for Detect. Missing observations are nil.
type Series struct {
	Location  string     `json:"location"`
	Dates     []string   `json:"dates"`
	SST       []*float64 `json:"sst"`
	Baselines []Baseline `json:"baselines"`
}

// Observed returns the number of days with an SST reading.
func (s Series) Observed() int {
	n := 0
	for _, v := range s.SST {
		if v != nil {
			n++
		}
	}
	return n
}

// DateRange returns every canonical date from start to end inclusive.
func DateRange(start, end string) ([]string, error) {
	from, err := parseRangeBound("start", start)
	if err != nil {
		return nil, err
	}
	to, err := parseRangeBound("end", end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, end, start)
	}

	days := int(to.Sub(from).Hours()/24) + 1
	if days > maxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidRange, days, maxRangeDays)
	}

	dates := make([]string, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

func parseRangeBound(name, raw string) (time.Time, error) {
	d := NormalizeDate(raw)
	if d == "" {
		return time.Time{}, fmt.Errorf("%w: unreadable %s date %q", ErrInvalidRange, name, raw)
	}
	return time.Parse(DateLayout, d)
}

// DefaultRange returns 1 January of the current year through today.
func DefaultRange() (string, string) {
	now := clock.Now()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	return start.Format(DateLayout), now.Format(DateLayout)
}

// TrailingRange returns the window of days ending today, inclusive.
func TrailingRange(days int) (string, string) {
	if days < 1 {
		days = 1
	}
	now := clock.Now()
	return now.AddDate(0, 0, -(days - 1)).Format(DateLayout), now.Format(DateLayout)
}

// BuildSeries lines up a site's archived readings and baselines over a range.
func BuildSeries(a Archive, idx *BaselineIndex, location, start, end string) (Series, error) {
	dates, err := DateRange(start, end)
	if err != nil {
		return Series{}, err
	}

	s := Series{
		Location:  location,
		Dates:     dates,
		SST:       make([]*float64, len(dates)),
		Baselines: make([]Baseline, len(dates)),
	}
	for i, date := range dates {
		if v, ok := a.Value(date, location); ok {
			s.SST[i] = &v
		}
		s.Baselines[i] = idx.Resolve(date, location)
	}
	return s, nil
}

// DetectRange builds a series for a site and runs Detect over it.
func DetectRange(a Archive, idx *BaselineIndex, location, start, end string) (Series, Detection, error) {
	s, err := BuildSeries(a, idx, location, start, end)
	if err != nil {
		return Series{}, Detection{}, err
	}
	det, err := Detect(s.Dates, s.SST, s.Baselines)
	if err != nil {
		return Series{}, Detection{}, err
	}
	return s, det, nil
}
