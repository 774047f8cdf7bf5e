package domain

import (
	"sort"
	"strings"
	"time"
)

// Baseline column names for tables that carry one climatology for every site.
const (
	GenericClimColumn  = "climatology_mean"
	GenericP90Column   = "percentile_90"
	GenericSigmaColumn = "sigma"
)

// Per-site baseline column suffixes, e.g. "sanur_clim".
const (
	climSuffix  = "_clim"
	p90Suffix   = "_p90"
	sigmaSuffix = "_sigma"
)

var dayOfYearAliases = []string{"day of year", "day_of_year"}

// Baseline is the climatology for one site on one day of the year. Nil fields
// are missing values; a Baseline with nil P90 cannot classify a day.
type Baseline struct {
	Clim  *float64 `json:"clim"`
	P90   *float64 `json:"p90"`
	Sigma *float64 `json:"sigma,omitempty"`
}

// Delta returns p90 - clim, the unit of heatwave severity.
func (b Baseline) Delta() (float64, bool) {
	if b.Clim == nil || b.P90 == nil {
		return 0, false
	}
	return *b.P90 - *b.Clim, true
}

// baselineColumns is one table row after its column scheme has been resolved.
type baselineColumns interface {
	forLocation(key string) Baseline
}

// genericColumns apply the same climatology regardless of site.
type genericColumns struct {
	baseline Baseline
}

func (g genericColumns) forLocation(string) Baseline { return g.baseline }

// locationColumns hold one climatology per site, keyed by lower-cased site key.
type locationColumns map[string]Baseline

func (l locationColumns) forLocation(key string) Baseline {
	return l[strings.ToLower(strings.TrimSpace(key))]
}

// BaselineStats describes how a baseline table was loaded.
type BaselineStats struct {
	Rows        int  `json:"rows"`
	Loaded      int  `json:"loaded"`
	InvalidDay  int  `json:"invalid_day"`
	Duplicates  int  `json:"duplicates"`
	Generic     int  `json:"generic"`
	PerLocation int  `json:"per_location"`
	LeapDayRow  bool `json:"leap_day_row"`
}

// BaselineIndex resolves calendar dates to climatology rows. It is immutable
// after construction and safe for concurrent use. The zero value and a nil
// index resolve every date to the missing-baseline sentinel.
type BaselineIndex struct {
	days map[int]baselineColumns
}

// NewBaselineIndex builds an index from table rows. Each row's column scheme is
// decided once here: generic columns win when a row carries a generic clim or
// p90 value, otherwise every "<site>_clim"/"<site>_p90" pair is read. Rows with
// a missing or out-of-range day number are skipped; the first row for a day wins.
func NewBaselineIndex(rows []Row) (*BaselineIndex, BaselineStats) {
	idx := &BaselineIndex{days: make(map[int]baselineColumns)}
	var stats BaselineStats

	for _, row := range rows {
		stats.Rows++
		rawDay, _ := lookupField(row, dayOfYearAliases)
		dayValue, ok := NormalizeNumber(rawDay)
		day := int(dayValue)
		if !ok || day < 1 || day > 366 {
			stats.InvalidDay++
			continue
		}
		if _, dup := idx.days[day]; dup {
			stats.Duplicates++
			continue
		}
		if day == 366 {
			stats.LeapDayRow = true
		}

		if generic, ok := parseGenericColumns(row); ok {
			idx.days[day] = generic
			stats.Generic++
		} else {
			idx.days[day] = parseLocationColumns(row)
			stats.PerLocation++
		}
		stats.Loaded++
	}
	return idx, stats
}

func parseGenericColumns(row Row) (genericColumns, bool) {
	clim := numberField(row, GenericClimColumn)
	p90 := numberField(row, GenericP90Column)
	if clim == nil && p90 == nil {
		return genericColumns{}, false
	}
	return genericColumns{baseline: Baseline{
		Clim:  clim,
		P90:   p90,
		Sigma: numberField(row, GenericSigmaColumn),
	}}, true
}

func parseLocationColumns(row Row) locationColumns {
	cols := make(locationColumns)
	for header, cell := range row {
		h := strings.ToLower(strings.TrimSpace(header))
		var key string
		var assign func(b *Baseline, v *float64)
		switch {
		case strings.HasSuffix(h, climSuffix):
			key = strings.TrimSuffix(h, climSuffix)
			assign = func(b *Baseline, v *float64) { b.Clim = v }
		case strings.HasSuffix(h, p90Suffix):
			key = strings.TrimSuffix(h, p90Suffix)
			assign = func(b *Baseline, v *float64) { b.P90 = v }
		case strings.HasSuffix(h, sigmaSuffix):
			key = strings.TrimSuffix(h, sigmaSuffix)
			assign = func(b *Baseline, v *float64) { b.Sigma = v }
		default:
			continue
		}
		if key == "" {
			continue
		}
		v, ok := NormalizeNumber(cell)
		if !ok {
			continue
		}
		b := cols[key]
		assign(&b, &v)
		cols[key] = b
	}
	return cols
}

func numberField(row Row, column string) *float64 {
	cell, ok := lookupField(row, []string{column})
	if !ok {
		return nil
	}
	v, ok := NormalizeNumber(cell)
	if !ok {
		return nil
	}
	return &v
}

// BaselineDayOfYear returns the baseline row number for a date. Tables follow a
// fixed 365-day year, so in leap years every date after 28 February is moved back
// one day: 29 February shares row 59 with 28 February and 1 March is always 60.
func BaselineDayOfYear(t time.Time) int {
	day := t.YearDay()
	if isLeapYear(t.Year()) && (t.Month() > time.February || (t.Month() == time.February && t.Day() > 28)) {
		day--
	}
	return day
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Resolve returns the baseline for a site on a date. Unparseable dates and days
// missing from the table yield an empty Baseline rather than an error.
func (x *BaselineIndex) Resolve(date, location string) Baseline {
	d := NormalizeDate(date)
	if d == "" {
		return Baseline{}
	}
	t, err := time.Parse(DateLayout, d)
	if err != nil {
		return Baseline{}
	}
	return x.ResolveTime(t, location)
}

// ResolveTime is Resolve for an already parsed date.
func (x *BaselineIndex) ResolveTime(t time.Time, location string) Baseline {
	return x.ResolveDay(BaselineDayOfYear(t), location)
}

// ResolveDay returns the baseline stored for a day-of-year row.
func (x *BaselineIndex) ResolveDay(day int, location string) Baseline {
	if x == nil {
		return Baseline{}
	}
	cols, ok := x.days[day]
	if !ok {
		return Baseline{}
	}
	return cols.forLocation(location)
}

// Len returns the number of day rows in the index.
func (x *BaselineIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.days)
}

// Days returns the indexed day numbers in ascending order.
func (x *BaselineIndex) Days() []int {
	if x == nil {
		return nil
	}
	days := make([]int, 0, len(x.days))
	for d := range x.days {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}
