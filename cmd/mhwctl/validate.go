package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/spf13/cobra"
)

// Plausible open-ocean SST bounds in °C.
const (
	minPlausibleSST = -2.0
	maxPlausibleSST = 40.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func validateCommand(a *app) *cobra.Command {
	var archivePath, baselinePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check archive and baseline tables for integrity",
		Long: `Run integrity checks over an archive table and a baseline table:
readable dates and values, full day-of-year coverage with a usable threshold,
and a baseline for every archived reading. Exits non-zero when any phase fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			archive, archiveStats, err := readArchiveFile(archivePath, a.cfg.Sites, false)
			if err != nil {
				return err
			}
			idx, baselineStats, err := readBaselineFile(baselinePath)
			if err != nil {
				return err
			}

			phases := []*phase{
				validateArchive(archive, archiveStats, a.cfg.Sites),
				validateBaseline(idx, baselineStats, a.cfg.Sites),
				validateAlignment(archive, idx, a.cfg.Sites),
			}
			if !report(cmd.OutOrStdout(), phases, len(archive), idx.Len()) {
				return errors.New("validation failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "data/archive.csv", "Archive table")
	cmd.Flags().StringVar(&baselinePath, "baseline", "baseline.csv", "Baseline table")
	return cmd
}

func report(w io.Writer, phases []*phase, dates, days int) bool {
	fmt.Fprintln(w, "=== SST Archive Integrity Validation ===")
	fmt.Fprintln(w)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d archive dates, %d baseline days\n", dates, days)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return true
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return false
}

// ── Phase 1: Archive Integrity ──
// Every row has a readable date and value, every site has data and readings
// are physically plausible.

func validateArchive(archive domain.Archive, stats domain.MergeStats, sites []domain.Location) *phase {
	p := &phase{name: "Phase 1: Archive Integrity"}

	if len(archive) == 0 {
		p.errorf("archive has no dates")
		return p
	}
	if stats.RejectedDates > 0 {
		p.errorf("%d rows have an unreadable date", stats.RejectedDates)
	}
	if stats.InvalidValues > 0 {
		p.errorf("%d cells have an unreadable value", stats.InvalidValues)
	}

	counts := make(map[string]int, len(sites))
	for _, date := range archive.Dates() {
		for site, v := range archive[date] {
			counts[site]++
			if v < minPlausibleSST || v > maxPlausibleSST {
				p.errorf("%s %s: %.2f °C is outside %.0f..%.0f", date, site, v, minPlausibleSST, maxPlausibleSST)
			}
		}
	}
	for _, s := range sites {
		if counts[s.Key] == 0 {
			p.errorf("site %s has no readings", s.Key)
		}
	}
	return p
}

// ── Phase 2: Baseline Coverage ──
// Days 1-365 are present once each with clim and p90 for every site and
// p90 above clim. Dates never resolve to day 366.

func validateBaseline(idx *domain.BaselineIndex, stats domain.BaselineStats, sites []domain.Location) *phase {
	p := &phase{name: "Phase 2: Baseline Coverage"}

	if stats.InvalidDay > 0 {
		p.errorf("%d rows have a missing or out-of-range day of year", stats.InvalidDay)
	}
	if stats.Duplicates > 0 {
		p.errorf("%d rows repeat an earlier day of year", stats.Duplicates)
	}
	if stats.LeapDayRow {
		p.errorf("day 366 row present: leap years are aligned to a 365-day table, so it is never used")
	}

	for day := 1; day <= 365; day++ {
		for _, s := range sites {
			b := idx.ResolveDay(day, s.Key)
			switch {
			case b.Clim == nil && b.P90 == nil:
				p.errorf("day %d %s: no baseline", day, s.Key)
			case b.P90 == nil:
				p.errorf("day %d %s: missing p90", day, s.Key)
			case b.Clim == nil:
				p.errorf("day %d %s: missing clim, categories will fall back to Heat Spike", day, s.Key)
			case *b.P90 <= *b.Clim:
				p.errorf("day %d %s: p90 %.2f is not above clim %.2f", day, s.Key, *b.P90, *b.Clim)
			}
		}
	}
	return p
}

// ── Phase 3: Archive/Baseline Alignment ──
// Every archived reading resolves to a threshold it can be compared against.

func validateAlignment(archive domain.Archive, idx *domain.BaselineIndex, sites []domain.Location) *phase {
	p := &phase{name: "Phase 3: Archive/Baseline Alignment"}

	missing := make(map[string]int)
	for _, date := range archive.Dates() {
		t, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			p.errorf("%s: non-canonical archive date", date)
			continue
		}
		for _, s := range sites {
			if _, ok := archive.Value(date, s.Key); !ok {
				continue
			}
			if idx.ResolveTime(t, s.Key).P90 == nil {
				missing[s.Key]++
			}
		}
	}
	for _, s := range sites {
		if n := missing[s.Key]; n > 0 {
			p.errorf("site %s: %d readings have no p90 threshold", s.Key, n)
		}
	}
	return p
}
