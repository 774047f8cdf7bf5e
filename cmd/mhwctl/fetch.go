package main

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/sst-heatwave-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
	"github.com/spf13/cobra"
)

func fetchCommand(a *app) *cobra.Command {
	var (
		archivePath  string
		location     string
		pastDays     int
		forecastDays int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch recent daily mean SST from Open-Meteo into an archive",
		Long: `Fetch hourly sea surface temperature from the Open-Meteo marine API,
average it to daily means per site and merge the result into the archive
table. Sites that fail to fetch are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sites := a.cfg.Sites
			if location != "" {
				loc, ok := domain.FindLocation(sites, location)
				if !ok {
					return fmt.Errorf("unknown location %q", location)
				}
				sites = []domain.Location{loc}
			}

			archive, _, err := readArchiveFile(archivePath, a.cfg.Sites, true)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("past-days") {
				pastDays = a.cfg.OpenMeteoPastDays
			}
			if !cmd.Flags().Changed("forecast-days") {
				forecastDays = a.cfg.OpenMeteoForecastDays
			}
			if pastDays < 0 || pastDays > 92 || forecastDays < 0 || forecastDays > 16 {
				return errors.New("past-days must be 0-92 and forecast-days 0-16")
			}

			client := openmeteo.NewClient(openmeteo.Options{
				BaseURL:      a.cfg.OpenMeteoBaseURL,
				Timeout:      a.cfg.OpenMeteoTimeout,
				Timezone:     a.cfg.OpenMeteoTimezone,
				PastDays:     pastDays,
				ForecastDays: forecastDays,
			}, observability.NewMetrics(), a.logger)

			var (
				all    []domain.Observation
				failed int
			)
			for _, loc := range sites {
				obs, err := client.FetchDaily(cmd.Context(), loc)
				if err != nil {
					a.logger.Warn("fetch failed, skipping site", "location", loc.Key, "error", err)
					failed++
					continue
				}
				a.logger.Info("site fetched", "location", loc.Key, "days", len(obs))
				all = append(all, obs...)
			}
			if failed == len(sites) {
				return errors.New("fetch failed for every site")
			}

			merged, stats := domain.MergeObservations(archive, all)
			logMerge(a.logger, "open-meteo", stats)
			if err := writeArchiveFile(archivePath, cmd.OutOrStdout(), merged, a.cfg.Sites); err != nil {
				return err
			}
			a.logger.Info("archive written", "path", archivePath, "dates", len(merged))
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "data/archive.csv", "Archive table to update (created if missing)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Only fetch this site")
	cmd.Flags().IntVar(&pastDays, "past-days", 0, "Days of history to request, 0-92 (default OPENMETEO_PAST_DAYS)")
	cmd.Flags().IntVar(&forecastDays, "forecast-days", 0, "Days of forecast to request, 0-16 (default OPENMETEO_FORECAST_DAYS)")
	return cmd
}
