package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
)

// RefreshResult summarizes one refresh cycle.
type RefreshResult struct {
	Observations int               `json:"observations"`
	FailedSites  []string          `json:"failed_sites,omitempty"`
	Merge        domain.MergeStats `json:"merge"`
	Events       int               `json:"events"`
	Published    int               `json:"published"`
}

// Refresh fetches the latest daily means for every site, merges them into the
// archive, persists it, re-runs detection over the trailing window and publishes
// heatwaves that are new or have changed since they were last published.
//
// A site whose fetch fails is logged and skipped; Refresh fails only when every
// site fails, when the archive cannot be saved, or when publishing fails.
func (p *Pipeline) Refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	result, err := p.refresh(ctx)
	p.metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.metrics.RefreshRuns.WithLabelValues("error").Inc()
		p.logger.Error("refresh failed", "error", err, "failed_sites", result.FailedSites)
		return result, err
	}
	p.metrics.RefreshRuns.WithLabelValues("success").Inc()
	p.logger.Info("refresh complete",
		"observations", result.Observations,
		"failed_sites", len(result.FailedSites),
		"events", result.Events,
		"published", result.Published,
		"duration", time.Since(start),
	)
	return result, nil
}

func (p *Pipeline) refresh(ctx context.Context) (RefreshResult, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	var result RefreshResult
	if err := p.CheckReadiness(ctx); err != nil {
		return result, fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	if p.fetcher != nil {
		obs, failed := p.fetchAll(ctx)
		result.Observations = len(obs)
		result.FailedSites = failed
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if len(failed) == len(p.locations) && len(p.locations) > 0 {
			return result, errors.New("fetch failed for every site")
		}

		stats, err := p.mergeAndSave(ctx, func(a domain.Archive) (domain.Archive, domain.MergeStats) {
			return domain.MergeObservations(a, obs)
		})
		result.Merge = stats
		if err != nil {
			return result, fmt.Errorf("save archive: %w", err)
		}
	}

	notices, total := p.detectChanges()
	result.Events = total
	if len(notices) == 0 || p.publisher == nil {
		return result, nil
	}

	if err := p.publisher.Publish(ctx, notices); err != nil {
		p.metrics.PublishErrors.Inc()
		return result, fmt.Errorf("publish heatwaves: %w", err)
	}
	p.markPublished(notices)
	p.metrics.EventsPublished.Add(float64(len(notices)))
	result.Published = len(notices)
	return result, nil
}

// fetchAll fetches every site in turn. Failures are logged and reported by key.
func (p *Pipeline) fetchAll(ctx context.Context) ([]domain.Observation, []string) {
	var (
		all    []domain.Observation
		failed []string
	)
	for _, loc := range p.locations {
		if ctx.Err() != nil {
			failed = append(failed, loc.Key)
			continue
		}
		obs, err := p.fetcher.FetchDaily(ctx, loc)
		if err != nil {
			p.logger.Warn("fetch failed, skipping site", "location", loc.Key, "error", err)
			failed = append(failed, loc.Key)
			continue
		}
		p.logger.Debug("site fetched", "location", loc.Key, "days", len(obs))
		all = append(all, obs...)
	}
	return all, failed
}

// detectChanges runs detection for every site over the trailing window and
// returns notices for events not yet published in their current shape, along
// with the total number of events found.
func (p *Pipeline) detectChanges() ([]domain.HeatwaveNotice, int) {
	archive, baseline := p.snapshot()
	start, end := domain.TrailingRange(p.windowDays)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var notices []domain.HeatwaveNotice
	total := 0
	for _, loc := range p.locations {
		_, det, err := domain.DetectRange(archive, baseline, loc.Key, start, end)
		if err != nil {
			p.logger.Error("detection failed", "location", loc.Key, "error", err)
			continue
		}
		p.metrics.ActiveEvents.WithLabelValues(loc.Key).Set(float64(len(det.Events)))
		total += len(det.Events)

		for _, ev := range det.Events {
			id := domain.EventID(loc.Key, ev.Start)
			prev, seen := p.published[id]
			switch {
			case !seen:
				notices = append(notices, domain.NewHeatwaveNotice(loc, ev, domain.StatusNew))
			case prev != shapeOf(ev):
				notices = append(notices, domain.NewHeatwaveNotice(loc, ev, domain.StatusUpdated))
			}
		}
	}
	return notices, total
}

func (p *Pipeline) markPublished(notices []domain.HeatwaveNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range notices {
		p.published[n.ID] = shapeOf(n.Event)
	}
}

func shapeOf(ev domain.Event) publishedEvent {
	return publishedEvent{end: ev.End, duration: ev.Duration, category: ev.Category}
}
