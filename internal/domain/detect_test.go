package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func constBaselines(n int, clim, p90 *float64) []Baseline {
	out := make([]Baseline, n)
	for i := range out {
		out[i] = Baseline{Clim: clim, P90: p90}
	}
	return out
}

func values(vs ...float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = ptr(v)
	}
	return out
}

func januaryDates(t *testing.T, n int) []string {
	t.Helper()
	dates, err := DateRange("2025-01-01", fmt.Sprintf("2025-01-%02d", n))
	require.NoError(t, err)
	require.Len(t, dates, n)
	return dates
}

func TestDetect_ConcreteScenario(t *testing.T) {
	dates := januaryDates(t, 10)
	sst := values(27, 27, 27, 27, 27, 30.5, 30.5, 30.5, 30.5, 30.5)
	baselines := constBaselines(10, ptr(28.0), ptr(29.0))

	det, err := Detect(dates, sst, baselines)
	require.NoError(t, err)

	require.Len(t, det.Events, 1)
	ev := det.Events[0]
	assert.Equal(t, "2025-01-06", ev.Start)
	assert.Equal(t, "2025-01-10", ev.End)
	assert.Equal(t, 5, ev.Duration)
	assert.Equal(t, 1.5, ev.MaxAnomaly)
	assert.Equal(t, 1.5, ev.MinAnomaly)
	assert.Equal(t, 1.5, ev.MeanAnomaly)
	assert.Equal(t, 7.5, ev.CumulativeAnomaly)
	assert.Equal(t, CategoryStrong, ev.Category)
	assert.Equal(t, 2, int(ev.Category))
	assert.Equal(t, "2025-01-06", ev.PeakDate)
	assert.Equal(t, 30.5, ev.PeakSST)

	require.Len(t, det.PerDay, 5)
	for _, d := range dates[5:] {
		meta, ok := det.PerDay[d]
		require.True(t, ok, d)
		assert.Equal(t, 1.5, meta.Anomaly)
		assert.Equal(t, CategoryStrong, meta.Category)
		assert.Equal(t, 29.0, meta.Threshold)
		require.NotNil(t, meta.Clim)
		assert.Equal(t, 28.0, *meta.Clim)
	}
}

func TestDetect_MinimumDuration(t *testing.T) {
	t.Run("four hot days are a spike", func(t *testing.T) {
		dates := januaryDates(t, 6)
		sst := values(27, 30, 30, 30, 30, 27)

		det, err := Detect(dates, sst, constBaselines(6, ptr(28.0), ptr(29.0)))
		require.NoError(t, err)

		assert.Empty(t, det.Events)
		assert.Empty(t, det.PerDay)
	})

	t.Run("five hot days are an event", func(t *testing.T) {
		dates := januaryDates(t, 7)
		sst := values(27, 30, 30, 30, 30, 30, 27)

		det, err := Detect(dates, sst, constBaselines(7, ptr(28.0), ptr(29.0)))
		require.NoError(t, err)

		require.Len(t, det.Events, 1)
		assert.Equal(t, "2025-01-02", det.Events[0].Start)
		assert.Equal(t, "2025-01-06", det.Events[0].End)
		assert.Len(t, det.PerDay, 5)
		assert.NotContains(t, det.PerDay, "2025-01-01")
		assert.NotContains(t, det.PerDay, "2025-01-07")
	})
}

func TestDetect_TrailingRunFlushed(t *testing.T) {
	dates := januaryDates(t, 6)
	sst := values(27, 29.5, 29.5, 29.5, 29.5, 29.5)

	det, err := Detect(dates, sst, constBaselines(6, ptr(28.0), ptr(29.0)))
	require.NoError(t, err)

	require.Len(t, det.Events, 1)
	assert.Equal(t, "2025-01-06", det.Events[0].End)
	assert.Equal(t, CategoryModerate, det.Events[0].Category)
}

func TestDetect_GapsBreakRuns(t *testing.T) {
	t.Run("missing observation", func(t *testing.T) {
		dates := januaryDates(t, 9)
		sst := values(30, 30, 30, 30, 30, 30, 30, 30, 30)
		sst[4] = nil

		det, err := Detect(dates, sst, constBaselines(9, ptr(28.0), ptr(29.0)))
		require.NoError(t, err)

		assert.Empty(t, det.Events, "two runs of four days")
	})

	t.Run("missing threshold", func(t *testing.T) {
		dates := januaryDates(t, 11)
		sst := values(30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30)
		baselines := constBaselines(11, ptr(28.0), ptr(29.0))
		baselines[5] = Baseline{Clim: ptr(28.0)}

		det, err := Detect(dates, sst, baselines)
		require.NoError(t, err)

		require.Len(t, det.Events, 2)
		assert.Equal(t, "2025-01-05", det.Events[0].End)
		assert.Equal(t, "2025-01-07", det.Events[1].Start)
		assert.NotContains(t, det.PerDay, "2025-01-06")
	})
}

func TestDetect_AllThresholdsMissing(t *testing.T) {
	dates := januaryDates(t, 8)
	sst := values(35, 35, 35, 35, 35, 35, 35, 35)

	det, err := Detect(dates, sst, make([]Baseline, 8))
	require.NoError(t, err)

	assert.Empty(t, det.Events)
	assert.NotNil(t, det.Events)
	assert.Empty(t, det.PerDay)
}

func TestDetect_EventAggregates(t *testing.T) {
	dates := januaryDates(t, 7)
	// delta = 1.0: anomalies 0.5, 1, 2, 3.5, 0.25 -> categories 1, 2, 3, 4, 1
	sst := values(28, 29.5, 30, 31, 32.5, 29.25, 28)

	det, err := Detect(dates, sst, constBaselines(7, ptr(28.0), ptr(29.0)))
	require.NoError(t, err)

	require.Len(t, det.Events, 1)
	ev := det.Events[0]
	assert.Equal(t, 5, ev.Duration)
	assert.Equal(t, 3.5, ev.MaxAnomaly)
	assert.Equal(t, 0.25, ev.MinAnomaly)
	assert.InDelta(t, 7.25, ev.CumulativeAnomaly, 1e-9)
	assert.InDelta(t, 1.45, ev.MeanAnomaly, 1e-9)
	assert.Equal(t, CategoryExtreme, ev.Category, "event takes its most severe day")
	assert.Equal(t, "2025-01-05", ev.PeakDate)
	assert.Equal(t, 32.5, ev.PeakSST)

	assert.Equal(t, CategoryModerate, det.PerDay["2025-01-02"].Category)
	assert.Equal(t, CategorySevere, det.PerDay["2025-01-04"].Category)
}

func TestDetect_MissingClimStillDetects(t *testing.T) {
	dates := januaryDates(t, 5)

	det, err := Detect(dates, values(31, 31, 31, 31, 31), constBaselines(5, nil, ptr(29.0)))
	require.NoError(t, err)

	require.Len(t, det.Events, 1)
	assert.Equal(t, CategoryHeatSpike, det.Events[0].Category)
	assert.Nil(t, det.PerDay["2025-01-01"].Clim)
}

func TestDetect_ThresholdEqualityIsNotHot(t *testing.T) {
	dates := januaryDates(t, 5)

	det, err := Detect(dates, values(29, 29, 29, 29, 29), constBaselines(5, ptr(28.0), ptr(29.0)))
	require.NoError(t, err)

	assert.Empty(t, det.Events)
}

func TestDetect_Misaligned(t *testing.T) {
	_, err := Detect([]string{"2025-01-01", "2025-01-02"}, values(30), make([]Baseline, 2))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMisalignedSeries)
}

func TestDetect_Empty(t *testing.T) {
	det, err := Detect(nil, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, det.Events)
	assert.Empty(t, det.PerDay)
}

func TestCategorizeDay(t *testing.T) {
	clim, p90 := ptr(28.0), ptr(29.0)
	tests := []struct {
		name     string
		sst      float64
		baseline Baseline
		expected Category
	}{
		{"just above threshold", 29.01, Baseline{Clim: clim, P90: p90}, CategoryModerate},
		{"one delta", 30.0, Baseline{Clim: clim, P90: p90}, CategoryStrong},
		{"two deltas", 31.0, Baseline{Clim: clim, P90: p90}, CategorySevere},
		{"three deltas", 32.0, Baseline{Clim: clim, P90: p90}, CategoryExtreme},
		{"far above", 40.0, Baseline{Clim: clim, P90: p90}, CategoryExtreme},
		{"at threshold", 29.0, Baseline{Clim: clim, P90: p90}, CategoryHeatSpike},
		{"missing clim", 35.0, Baseline{P90: p90}, CategoryHeatSpike},
		{"missing p90", 35.0, Baseline{Clim: clim}, CategoryHeatSpike},
		{"zero delta", 35.0, Baseline{Clim: ptr(29.0), P90: p90}, CategoryHeatSpike},
		{"negative delta", 35.0, Baseline{Clim: ptr(30.0), P90: p90}, CategoryHeatSpike},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeDay(tt.sst, tt.baseline))
		})
	}
}

func TestCategorizeDay_Monotonic(t *testing.T) {
	baselines := []Baseline{
		{Clim: ptr(28.0), P90: ptr(29.0)},
		{Clim: ptr(26.3), P90: ptr(27.05)},
		{Clim: ptr(29.0), P90: ptr(29.0)},
		{P90: ptr(29.0)},
	}

	for _, b := range baselines {
		prev := CategoryHeatSpike
		for sst := 25.0; sst <= 40; sst += 0.01 {
			c := CategorizeDay(sst, b)
			assert.GreaterOrEqual(t, int(c), int(prev), "sst %.2f", sst)
			prev = c
		}
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "Heat Spike", CategoryHeatSpike.String())
	assert.Equal(t, "Category II", CategoryStrong.String())
	assert.Equal(t, "Category IV", CategoryExtreme.String())
	assert.Equal(t, "Category(9)", Category(9).String())
}
