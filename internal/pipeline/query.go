package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
)

// BaselineLookup is the climatology resolved for one site and date.
type BaselineLookup struct {
	Location  string          `json:"location"`
	Date      string          `json:"date"`
	DayOfYear int             `json:"day_of_year"`
	Baseline  domain.Baseline `json:"baseline"`
}

// Archive returns the current archive. Callers must not modify it.
func (p *Pipeline) Archive() domain.Archive {
	archive, _ := p.snapshot()
	return archive
}

// Import merges table rows into the archive and persists the result.
func (p *Pipeline) Import(ctx context.Context, rows []domain.Row) (domain.MergeStats, error) {
	if err := p.CheckReadiness(ctx); err != nil {
		return domain.MergeStats{}, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	stats, err := p.mergeAndSave(ctx, func(a domain.Archive) (domain.Archive, domain.MergeStats) {
		return domain.MergeRows(a, rows, p.locations)
	})
	if err != nil {
		return stats, fmt.Errorf("save archive: %w", err)
	}
	p.logger.Info("archive import merged",
		"rows", stats.Rows,
		"accepted", stats.Accepted,
		"values", stats.Values,
	)
	return stats, nil
}

// Detect runs heatwave detection for a configured site. Empty start or end
// default to 1 January of the current year and today.
func (p *Pipeline) Detect(location, start, end string) (domain.Series, domain.Detection, error) {
	loc, ok := domain.FindLocation(p.locations, location)
	if !ok {
		return domain.Series{}, domain.Detection{}, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}

	defStart, defEnd := domain.DefaultRange()
	if start == "" {
		start = defStart
	}
	if end == "" {
		end = defEnd
	}

	archive, baseline := p.snapshot()
	if baseline == nil {
		return domain.Series{}, domain.Detection{}, ErrNotReady
	}
	return domain.DetectRange(archive, baseline, loc.Key, start, end)
}

// Baseline resolves the climatology for a configured site on a date.
func (p *Pipeline) Baseline(location, date string) (BaselineLookup, error) {
	loc, ok := domain.FindLocation(p.locations, location)
	if !ok {
		return BaselineLookup{}, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}
	canonical := domain.NormalizeDate(date)
	if canonical == "" {
		return BaselineLookup{}, fmt.Errorf("%w: unreadable date %q", domain.ErrInvalidRange, date)
	}
	t, err := time.Parse(domain.DateLayout, canonical)
	if err != nil {
		return BaselineLookup{}, fmt.Errorf("%w: %v", domain.ErrInvalidRange, err)
	}

	_, baseline := p.snapshot()
	if baseline == nil {
		return BaselineLookup{}, ErrNotReady
	}
	return BaselineLookup{
		Location:  loc.Key,
		Date:      canonical,
		DayOfYear: domain.BaselineDayOfYear(t),
		Baseline:  baseline.ResolveTime(t, loc.Key),
	}, nil
}
