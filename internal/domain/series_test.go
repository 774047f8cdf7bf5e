package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	t.Run("inclusive across leap day", func(t *testing.T) {
		dates, err := DateRange("2024-02-27", "2024-03-01")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, dates)
	})

	t.Run("single day", func(t *testing.T) {
		dates, err := DateRange(testDate, testDate)
		require.NoError(t, err)
		assert.Equal(t, []string{testDate}, dates)
	})

	t.Run("accepts loose formats", func(t *testing.T) {
		dates, err := DateRange("30/12/2024", "2025-01-02")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-02"}, dates)
	})

	t.Run("reversed", func(t *testing.T) {
		_, err := DateRange("2025-01-02", "2025-01-01")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("unreadable", func(t *testing.T) {
		_, err := DateRange("soon", "2025-01-01")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := DateRange("1900-01-01", "2025-01-01")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestDefaultAndTrailingRange(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.September, 10, 13, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	start, end := DefaultRange()
	assert.Equal(t, "2025-01-01", start)
	assert.Equal(t, testDate, end)

	start, end = TrailingRange(7)
	assert.Equal(t, "2025-09-04", start)
	assert.Equal(t, testDate, end)

	start, end = TrailingRange(0)
	assert.Equal(t, testDate, start)
	assert.Equal(t, testDate, end)
}

func TestBuildSeries(t *testing.T) {
	archive := Archive{
		"2025-01-01": Entry{testJimbaran: 27.5},
		"2025-01-03": Entry{testJimbaran: 28.5, testSanur: 29},
	}
	idx, _ := NewBaselineIndex([]Row{
		{"day of year": "1", "jimbaran_clim": "27", "jimbaran_p90": "28"},
		{"day of year": "2", "jimbaran_clim": "27.1", "jimbaran_p90": "28.1"},
	})

	s, err := BuildSeries(archive, idx, testJimbaran, "2025-01-01", "2025-01-03")
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, s.Dates)
	require.Len(t, s.SST, 3)
	require.NotNil(t, s.SST[0])
	assert.Equal(t, 27.5, *s.SST[0])
	assert.Nil(t, s.SST[1], "gap day stays nil")
	assert.Equal(t, 28.5, *s.SST[2])
	assert.Equal(t, 2, s.Observed())

	require.NotNil(t, s.Baselines[1].P90)
	assert.Equal(t, 28.1, *s.Baselines[1].P90)
	assert.Equal(t, Baseline{}, s.Baselines[2], "day 3 missing from table")
}

func TestDetectRange(t *testing.T) {
	archive := NewArchive()
	dates, err := DateRange("2025-01-01", "2025-01-10")
	require.NoError(t, err)
	for i, d := range dates {
		v := 27.0
		if i >= 5 {
			v = 30.5
		}
		archive[d] = Entry{testSanur: v}
	}
	rows := make([]Row, 0, 10)
	for day := 1; day <= 10; day++ {
		rows = append(rows, Row{"day of year": FormatValue(float64(day)), "climatology_mean": "28", "percentile_90": "29"})
	}
	idx, _ := NewBaselineIndex(rows)

	s, det, err := DetectRange(archive, idx, testSanur, "2025-01-01", "2025-01-10")
	require.NoError(t, err)

	assert.Len(t, s.Dates, 10)
	require.Len(t, det.Events, 1)
	assert.Equal(t, "2025-01-06", det.Events[0].Start)
	assert.Equal(t, CategoryStrong, det.Events[0].Category)

	_, _, err = DetectRange(archive, idx, testSanur, "2025-01-10", "2025-01-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDailyMeans(t *testing.T) {
	times := []string{
		"2025-09-10T00:00", "2025-09-10T01:00", "2025-09-10T02:00",
		"2025-09-11T00:00", "2025-09-11T01:00",
		"2025-09-12T00:00",
	}
	temps := []*float64{ptr(28), ptr(29), nil, ptr(27.5), ptr(28.5), nil}

	means := DailyMeans(times, temps)

	assert.Equal(t, map[string]float64{testDate: 28.5, "2025-09-11": 28}, means)
}

func TestDailyMeans_ShortTemps(t *testing.T) {
	means := DailyMeans([]string{"2025-09-10T00:00", "2025-09-10T01:00"}, []*float64{ptr(28)})

	assert.Equal(t, map[string]float64{testDate: 28}, means)
}

func TestObservationsFromDaily(t *testing.T) {
	obs := ObservationsFromDaily(testSanur, map[string]float64{"2025-09-11": 28, testDate: 28.5})

	assert.Equal(t, []Observation{
		{Date: testDate, Location: testSanur, Value: 28.5},
		{Date: "2025-09-11", Location: testSanur, Value: 28},
	}, obs)
}

func TestFindLocation(t *testing.T) {
	loc, ok := FindLocation(DefaultLocations, " NusaDua ")
	require.True(t, ok)
	assert.Equal(t, "Nusa Dua", loc.Name)

	_, ok = FindLocation(DefaultLocations, "kuta")
	assert.False(t, ok)

	assert.Equal(t, []string{testJimbaran, testNusaDua, testSanur}, LocationKeys(DefaultLocations))
}
