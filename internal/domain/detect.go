package domain

import (
	"errors"
	"fmt"
)

// MinEventDuration is the shortest run of hot days reported as a heatwave.
// Shorter runs are treated as spikes and dropped.
const MinEventDuration = 5

// ErrMisalignedSeries is returned when detection inputs differ in length.
var ErrMisalignedSeries = errors.New("misaligned series")

// Category is a heatwave severity tier, 0 (heat spike) through 4.
type Category int

const (
	CategoryHeatSpike Category = iota
	CategoryModerate
	CategoryStrong
	CategorySevere
	CategoryExtreme
)

var categoryLabels = [...]string{
	"Heat Spike",
	"Category I",
	"Category II",
	"Category III",
	"Category IV",
}

func (c Category) String() string {
	if c < CategoryHeatSpike || c > CategoryExtreme {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryLabels[c]
}

// DayMeta is the classification of one day inside a reported heatwave.
type DayMeta struct {
	Anomaly   float64  `json:"anomaly"`
	Category  Category `json:"category"`
	Threshold float64  `json:"threshold"`
	Clim      *float64 `json:"clim"`
}

// Event is one reported marine heatwave. Anomalies are SST minus p90 in °C;
// CumulativeAnomaly is in °C·day.
type Event struct {
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Duration          int      `json:"duration"`
	MaxAnomaly        float64  `json:"max_anomaly"`
	MinAnomaly        float64  `json:"min_anomaly"`
	MeanAnomaly       float64  `json:"mean_anomaly"`
	CumulativeAnomaly float64  `json:"cumulative_anomaly"`
	Category          Category `json:"category"`
	PeakDate          string   `json:"peak_date"`
	PeakSST           float64  `json:"peak_sst"`
}

// Detection is the result of one detection pass.
type Detection struct {
	Events []Event            `json:"events"`
	PerDay map[string]DayMeta `json:"per_day"`
}

// CategorizeDay grades a hot day by how many multiples of delta (p90 - clim)
// its excess over p90 represents. It returns CategoryHeatSpike when clim is
// missing or p90 <= clim, and when sst does not exceed p90.
func CategorizeDay(sst float64, b Baseline) Category {
	if b.P90 == nil {
		return CategoryHeatSpike
	}
	excess := sst - *b.P90
	delta, ok := b.Delta()
	if !ok || delta <= 0 || excess <= 0 {
		return CategoryHeatSpike
	}

	switch {
	case excess >= 3*delta:
		return CategoryExtreme
	case excess >= 2*delta:
		return CategorySevere
	case excess >= delta:
		return CategoryStrong
	default:
		return CategoryModerate
	}
}

type runDay struct {
	date string
	sst  float64
	meta DayMeta
}

// Detect scans index-aligned dates, SST values and baselines and returns the
// heatwaves found.
//
// A day is eligible when both its SST and its p90 are known. Eligible days with
// SST above p90 extend the current run; any other day closes it. Closed runs of
// at least MinEventDuration days become events and contribute their days to
// PerDay; shorter runs leave no trace. A run still open at the end of the input
// is closed by the same rule.
//
// The caller supplies a gap-free date range with missing observations as nil.
// The only error is ErrMisalignedSeries.
func Detect(dates []string, sst []*float64, baselines []Baseline) (Detection, error) {
	if len(dates) != len(sst) || len(dates) != len(baselines) {
		return Detection{}, fmt.Errorf("%w: %d dates, %d sst values, %d baselines",
			ErrMisalignedSeries, len(dates), len(sst), len(baselines))
	}

	result := Detection{Events: []Event{}, PerDay: make(map[string]DayMeta)}
	var run []runDay

	for i, date := range dates {
		b := baselines[i]
		if sst[i] == nil || b.P90 == nil {
			result.closeRun(run)
			run = run[:0]
			continue
		}

		value := *sst[i]
		anomaly := value - *b.P90
		if anomaly <= 0 {
			result.closeRun(run)
			run = run[:0]
			continue
		}

		run = append(run, runDay{
			date: date,
			sst:  value,
			meta: DayMeta{
				Anomaly:   anomaly,
				Category:  CategorizeDay(value, b),
				Threshold: *b.P90,
				Clim:      b.Clim,
			},
		})
	}
	result.closeRun(run)

	return result, nil
}

// closeRun records run as an event when it is long enough.
func (d *Detection) closeRun(run []runDay) {
	if len(run) < MinEventDuration {
		return
	}

	first := run[0]
	ev := Event{
		Start:      first.date,
		End:        run[len(run)-1].date,
		Duration:   len(run),
		MaxAnomaly: first.meta.Anomaly,
		MinAnomaly: first.meta.Anomaly,
		Category:   first.meta.Category,
		PeakDate:   first.date,
		PeakSST:    first.sst,
	}

	for _, day := range run {
		a := day.meta.Anomaly
		ev.CumulativeAnomaly += a
		if a > ev.MaxAnomaly {
			ev.MaxAnomaly = a
		}
		if a < ev.MinAnomaly {
			ev.MinAnomaly = a
		}
		if day.meta.Category > ev.Category {
			ev.Category = day.meta.Category
		}
		if day.sst > ev.PeakSST {
			ev.PeakSST = day.sst
			ev.PeakDate = day.date
		}
		d.PerDay[day.date] = day.meta
	}
	ev.MeanAnomaly = ev.CumulativeAnomaly / float64(len(run))

	d.Events = append(d.Events, ev)
}
