package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/spf13/cobra"
)

type detectOptions struct {
	archive  string
	baseline string
	location string
	start    string
	end      string
	format   string
}

type detectReport struct {
	Location  string           `json:"location"`
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Observed  int              `json:"observed"`
	Detection domain.Detection `json:"detection"`
}

func detectCommand(a *app) *cobra.Command {
	opts := detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect marine heatwaves for one site",
		Long: `Detect marine heatwaves for one site over a date range. The range
defaults to 1 January of the current year through today.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q: want text or json", opts.format)
			}
			loc, ok := domain.FindLocation(a.cfg.Sites, opts.location)
			if !ok {
				return fmt.Errorf("unknown location %q", opts.location)
			}

			archive, _, err := readArchiveFile(opts.archive, a.cfg.Sites, false)
			if err != nil {
				return err
			}
			idx, _, err := readBaselineFile(opts.baseline)
			if err != nil {
				return err
			}

			start, end := domain.DefaultRange()
			if opts.start != "" {
				start = opts.start
			}
			if opts.end != "" {
				end = opts.end
			}
			series, det, err := domain.DetectRange(archive, idx, loc.Key, start, end)
			if err != nil {
				return err
			}

			report := detectReport{
				Location:  loc.Key,
				Start:     series.Dates[0],
				End:       series.Dates[len(series.Dates)-1],
				Observed:  series.Observed(),
				Detection: det,
			}
			if opts.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printEvents(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&opts.archive, "archive", "data/archive.csv", "Archive table")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "baseline.csv", "Baseline table")
	cmd.Flags().StringVarP(&opts.location, "location", "l", "", "Site key")
	cmd.Flags().StringVar(&opts.start, "start", "", "First date (default: 1 January this year)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last date (default: today)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func printEvents(w io.Writer, r detectReport) error {
	fmt.Fprintf(w, "%s %s..%s: %d observed days, %d heatwaves\n",
		r.Location, r.Start, r.End, r.Observed, len(r.Detection.Events))
	if len(r.Detection.Events) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tDAYS\tCATEGORY\tMAX\tMEAN\tCUMULATIVE\tPEAK")
	for _, ev := range r.Detection.Events {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%s (%.2f)\n",
			ev.Start, ev.End, ev.Duration, ev.Category,
			ev.MaxAnomaly, ev.MeanAnomaly, ev.CumulativeAnomaly,
			ev.PeakDate, ev.PeakSST)
	}
	return tw.Flush()
}
