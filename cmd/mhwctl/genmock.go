package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/spf13/cobra"
)

const (
	mockDelta         = 0.7 // p90 - clim for every generated day
	mockNoise         = 0.4 // max |sst - clim| outside the embedded events
	mockEventDuration = 7
	mockSpikeDuration = 3
)

type genmockOptions struct {
	baselineOut   string
	archiveOut    string
	year          int
	eventLocation string
	eventStart    string
	seed          uint64
}

func genmockCommand(a *app) *cobra.Command {
	opts := genmockOptions{}

	cmd := &cobra.Command{
		Use:   "genmock",
		Short: "Generate a synthetic baseline and archive with a known heatwave",
		Long: `Generate a per-site baseline table for days 1-365 and a year of daily
archive readings that stay within the climatology except for one
Category II heatwave and one short spike at the chosen site. Output is
deterministic for a given seed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, ok := domain.FindLocation(a.cfg.Sites, opts.eventLocation)
			if !ok {
				return fmt.Errorf("unknown location %q", opts.eventLocation)
			}
			start := opts.eventStart
			if start == "" {
				start = fmt.Sprintf("%04d-03-01", opts.year)
			}
			eventStart, err := time.Parse(domain.DateLayout, domain.NormalizeDate(start))
			if err != nil {
				return fmt.Errorf("unreadable event start %q", opts.eventStart)
			}
			if eventStart.Year() != opts.year {
				return fmt.Errorf("event start %s is outside %d", start, opts.year)
			}

			if err := writeMockBaseline(opts.baselineOut, a.cfg.Sites); err != nil {
				return fmt.Errorf("writing baseline fixture: %w", err)
			}
			a.logger.Info("wrote baseline fixture", "path", opts.baselineOut, "days", 365)

			archive := mockArchive(a.cfg.Sites, opts.year, loc.Key, eventStart, opts.seed)
			if err := writeArchiveFile(opts.archiveOut, cmd.OutOrStdout(), archive, a.cfg.Sites); err != nil {
				return fmt.Errorf("writing archive fixture: %w", err)
			}
			a.logger.Info("wrote archive fixture", "path", opts.archiveOut, "dates", len(archive))

			end := eventStart.AddDate(0, 0, mockEventDuration-1)
			fmt.Fprintf(cmd.ErrOrStderr(), "embedded heatwave: %s %s..%s (%d days, %s)\n",
				loc.Key, eventStart.Format(domain.DateLayout), end.Format(domain.DateLayout),
				mockEventDuration, domain.CategoryStrong)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.baselineOut, "baseline-out", "data/mock/baseline.csv", "Output path for the baseline fixture")
	cmd.Flags().StringVar(&opts.archiveOut, "archive-out", "data/mock/archive.csv", "Output path for the archive fixture")
	cmd.Flags().IntVar(&opts.year, "year", 2024, "Year of archive readings")
	cmd.Flags().StringVar(&opts.eventLocation, "event-location", "sanur", "Site that gets the heatwave")
	cmd.Flags().StringVar(&opts.eventStart, "event-start", "", "First heatwave day (default: 1 March of --year)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Noise seed")
	return cmd
}

// mockClim is a smooth seasonal cycle peaking in late summer, offset per site.
func mockClim(day, site int) float64 {
	return round2(27.8 + 0.3*float64(site) + 1.1*math.Sin(2*math.Pi*float64(day-80)/365))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeMockBaseline(path string, sites []domain.Location) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Day of Year"}
	for _, s := range sites {
		header = append(header, s.Key+"_clim", s.Key+"_p90")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for day := 1; day <= 365; day++ {
		record := []string{strconv.Itoa(day)}
		for i := range sites {
			clim := mockClim(day, i)
			record = append(record,
				strconv.FormatFloat(clim, 'f', -1, 64),
				strconv.FormatFloat(round2(clim+mockDelta), 'f', -1, 64),
			)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// mockArchive returns a year of readings within clim ± mockNoise, plus a
// Category II heatwave starting at eventStart and a spike of mockSpikeDuration
// days a month later at the event site.
func mockArchive(sites []domain.Location, year int, eventSite string, eventStart time.Time, seed uint64) domain.Archive {
	rng := rand.New(rand.NewPCG(seed, uint64(year)))
	spikeStart := eventStart.AddDate(0, 0, 30)

	archive := domain.NewArchive()
	for t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); t.Year() == year; t = t.AddDate(0, 0, 1) {
		day := domain.BaselineDayOfYear(t)
		entry := make(domain.Entry, len(sites))
		for i, s := range sites {
			clim := mockClim(day, i)
			p90 := round2(clim + mockDelta)
			v := clim + (rng.Float64()*2-1)*mockNoise

			if s.Key == eventSite {
				switch {
				case inWindow(t, eventStart, mockEventDuration):
					v = p90 + 1.5*mockDelta
				case inWindow(t, spikeStart, mockSpikeDuration):
					v = p90 + 0.5
				}
			}
			entry[s.Key] = round2(v)
		}
		archive[t.Format(domain.DateLayout)] = entry
	}
	return archive
}

func inWindow(t, start time.Time, days int) bool {
	return !t.Before(start) && t.Before(start.AddDate(0, 0, days))
}
