package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/spf13/cobra"
)

type baselineReport struct {
	Location  string          `json:"location"`
	Date      string          `json:"date"`
	DayOfYear int             `json:"day_of_year"`
	Baseline  domain.Baseline `json:"baseline"`
}

func baselineCommand(a *app) *cobra.Command {
	var baselinePath, location string

	cmd := &cobra.Command{
		Use:   "baseline DATE",
		Short: "Resolve the climatology for a site on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, ok := domain.FindLocation(a.cfg.Sites, location)
			if !ok {
				return fmt.Errorf("unknown location %q", location)
			}
			date := domain.NormalizeDate(args[0])
			if date == "" {
				return fmt.Errorf("unreadable date %q", args[0])
			}
			t, err := time.Parse(domain.DateLayout, date)
			if err != nil {
				return err
			}

			idx, _, err := readBaselineFile(baselinePath)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(baselineReport{
				Location:  loc.Key,
				Date:      date,
				DayOfYear: domain.BaselineDayOfYear(t),
				Baseline:  idx.ResolveTime(t, loc.Key),
			})
		},
	}

	cmd.Flags().StringVar(&baselinePath, "baseline", "baseline.csv", "Baseline table")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Site key")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}
