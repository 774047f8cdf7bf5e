// Command mhwctl works on archive and baseline tables offline: merging and
// exporting archives, running detection, resolving baselines, fetching recent
// data, validating table integrity and generating fixtures.
//
// Usage:
//
//	mhwctl merge --archive data/archive.csv extra.csv export.tsv
//	mhwctl detect --archive data/archive.csv --baseline baseline.csv --location sanur
//	mhwctl validate --archive data/archive.csv --baseline baseline.csv
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/couchcryptid/sst-heatwave-service/internal/config"
	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/couchcryptid/sst-heatwave-service/internal/observability"
	"github.com/couchcryptid/sst-heatwave-service/internal/tabular"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "mhwctl",
		Short:        "Marine heatwave archive and detection tools",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = observability.NewCLILogger(cmd.ErrOrStderr(), a.logLevel)
		return nil
	}

	rootCmd.AddCommand(
		mergeCommand(a),
		detectCommand(a),
		baselineCommand(a),
		fetchCommand(a),
		validateCommand(a),
		genmockCommand(a),
	)
	return rootCmd
}

// readArchiveFile loads an archive table. A missing file is an empty archive
// when allowMissing is set.
func readArchiveFile(path string, locations []domain.Location, allowMissing bool) (domain.Archive, domain.MergeStats, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && allowMissing {
		return domain.NewArchive(), domain.MergeStats{}, nil
	}
	if err != nil {
		return nil, domain.MergeStats{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	archive, stats, err := tabular.ReadArchive(f, domain.NewArchive(), locations)
	if err != nil {
		return nil, stats, fmt.Errorf("read archive %s: %w", path, err)
	}
	return archive, stats, nil
}

func readBaselineFile(path string) (*domain.BaselineIndex, domain.BaselineStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.BaselineStats{}, fmt.Errorf("open baseline: %w", err)
	}
	defer f.Close()
	return tabular.ReadBaseline(f)
}

// writeArchiveFile writes the archive to path through a temporary file so a
// failed write never truncates an existing archive. An empty path or "-"
// writes to w.
func writeArchiveFile(path string, w io.Writer, archive domain.Archive, locations []domain.Location) error {
	if path == "" || path == "-" {
		return tabular.WriteArchive(w, archive, locations)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".archive-*.csv")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if err := tabular.WriteArchive(tmp, archive, locations); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func logMerge(logger *slog.Logger, source string, stats domain.MergeStats) {
	logger.Info("merged",
		"source", source,
		"rows", stats.Rows,
		"accepted", stats.Accepted,
		"values", stats.Values,
	)
	if stats.RejectedDates > 0 || stats.InvalidValues > 0 {
		logger.Warn("merge dropped input",
			"source", source,
			"rejected_dates", stats.RejectedDates,
			"invalid_values", stats.InvalidValues,
		)
	}
}
