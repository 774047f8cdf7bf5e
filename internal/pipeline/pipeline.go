package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
)

var (
	// ErrUnknownLocation is returned for a site key that is not configured.
	ErrUnknownLocation = errors.New("unknown location")
	// ErrNotReady is returned when the archive or baseline has not been loaded.
	ErrNotReady = errors.New("service not ready")
)

// Fetcher retrieves daily mean SST observations for one site.
type Fetcher interface {
	FetchDaily(ctx context.Context, loc domain.Location) ([]domain.Observation, error)
}

// ArchiveStore loads and persists the whole archive.
type ArchiveStore interface {
	Load(ctx context.Context) (domain.Archive, error)
	Save(ctx context.Context, archive domain.Archive) error
}

// ReadinessChecker is implemented by an ArchiveStore that can report whether
// its backing storage is reachable.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Publisher announces new or changed heatwaves.
type Publisher interface {
	Publish(ctx context.Context, notices []domain.HeatwaveNotice) error
}

// Persist retry schedule: start at 200ms, double each retry, cap at 5s.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	saveAttempts   = 3
)

// publishedEvent is the last published shape of an event, used to detect changes.
type publishedEvent struct {
	end      string
	duration int
	category domain.Category
}

// Pipeline owns the in-memory archive and baseline and runs the
// fetch-merge-persist-detect-publish cycle around them.
//
// Readers take a consistent snapshot under mu. Writers (Refresh, Import)
// are serialized by writeMu so that merges and saves reach the store in order,
// and whole refresh cycles are serialized by refreshMu.
type Pipeline struct {
	fetcher    Fetcher
	store      ArchiveStore
	publisher  Publisher
	locations  []domain.Location
	windowDays int
	logger     *slog.Logger
	metrics    *observability.Metrics

	refreshMu sync.Mutex
	writeMu   sync.Mutex
	mu        sync.RWMutex
	archive   domain.Archive
	baseline  *domain.BaselineIndex

	published map[string]publishedEvent
	loaded    atomic.Bool
}

// New creates a Pipeline. fetcher and publisher may be nil when fetching or
// publishing is disabled.
func New(
	fetcher Fetcher,
	store ArchiveStore,
	publisher Publisher,
	locations []domain.Location,
	windowDays int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	if windowDays < domain.MinEventDuration {
		windowDays = domain.MinEventDuration
	}
	return &Pipeline{
		fetcher:    fetcher,
		store:      store,
		publisher:  publisher,
		locations:  locations,
		windowDays: windowDays,
		logger:     logger,
		metrics:    metrics,
		archive:    domain.NewArchive(),
		published:  make(map[string]publishedEvent),
	}
}

// SetBaseline installs the climatology index used for detection.
func (p *Pipeline) SetBaseline(idx *domain.BaselineIndex) {
	p.mu.Lock()
	p.baseline = idx
	p.mu.Unlock()
	p.metrics.BaselineDays.Set(float64(idx.Len()))
}

// LoadArchive reads the persisted archive into memory.
func (p *Pipeline) LoadArchive(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	archive, err := p.store.Load(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.archive = archive
	p.mu.Unlock()

	p.metrics.ArchiveDates.Set(float64(len(archive)))
	p.loaded.Store(true)
	p.logger.Info("archive loaded", "dates", len(archive))
	return nil
}

// CheckReadiness returns nil once the archive is loaded, a baseline is
// installed and the store (when it implements ReadinessChecker) is reachable.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if !p.loaded.Load() {
		return errors.New("archive has not been loaded yet")
	}
	p.mu.RLock()
	ready := p.baseline != nil
	p.mu.RUnlock()
	if !ready {
		return errors.New("baseline has not been loaded yet")
	}
	if checker, ok := p.store.(ReadinessChecker); ok {
		return checker.CheckReadiness(ctx)
	}
	return nil
}

// Locations returns the configured sites.
func (p *Pipeline) Locations() []domain.Location {
	return p.locations
}

// snapshot returns the current archive and baseline. The archive must be treated
// as read-only: writers replace it rather than mutating it.
func (p *Pipeline) snapshot() (domain.Archive, *domain.BaselineIndex) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.archive, p.baseline
}

// mergeAndSave applies merge to the current archive, installs the result and
// persists it. The in-memory archive is updated even when saving fails so the
// next successful save catches the store up.
func (p *Pipeline) mergeAndSave(ctx context.Context, merge func(domain.Archive) (domain.Archive, domain.MergeStats)) (domain.MergeStats, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	current, _ := p.snapshot()
	merged, stats := merge(current)

	p.mu.Lock()
	p.archive = merged
	p.mu.Unlock()

	p.recordMerge(stats, len(merged))
	return stats, p.saveWithRetry(ctx, merged)
}

func (p *Pipeline) recordMerge(stats domain.MergeStats, dates int) {
	p.metrics.ObservationsMerged.Add(float64(stats.Values))
	p.metrics.ArchiveDates.Set(float64(dates))
	if stats.RejectedDates > 0 {
		p.metrics.RowsRejected.WithLabelValues("date").Add(float64(stats.RejectedDates))
	}
	if stats.InvalidValues > 0 {
		p.metrics.RowsRejected.WithLabelValues("value").Add(float64(stats.InvalidValues))
	}
	if stats.RejectedDates > 0 || stats.InvalidValues > 0 {
		p.logger.Warn("merge dropped input",
			"rejected_dates", stats.RejectedDates,
			"invalid_values", stats.InvalidValues,
			"rows", stats.Rows,
		)
	}
}

// saveWithRetry persists the archive, backing off between failed attempts.
func (p *Pipeline) saveWithRetry(ctx context.Context, archive domain.Archive) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = p.store.Save(ctx, archive); err == nil {
			return nil
		}
		p.metrics.PersistErrors.Inc()
		p.logger.Error("save archive failed", "error", err, "attempt", attempt)

		if attempt == saveAttempts || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return err
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
