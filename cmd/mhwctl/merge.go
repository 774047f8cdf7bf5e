package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/sst-heatwave-service/internal/tabular"
	"github.com/spf13/cobra"
)

func mergeCommand(a *app) *cobra.Command {
	var archivePath, outPath string

	cmd := &cobra.Command{
		Use:   "merge [input ...]",
		Short: "Merge CSV/TSV tables into an archive",
		Long: `Merge header-row CSV or TSV tables into an archive table. Later inputs
overwrite earlier readings for the same date and site; empty or unreadable
cells never clear a stored value. The result is written to --out, or back to
--archive when --out is not set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, stats, err := readArchiveFile(archivePath, a.cfg.Sites, true)
			if err != nil {
				return err
			}
			logMerge(a.logger, archivePath, stats)

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				archive, stats, err = tabular.ReadArchive(f, archive, a.cfg.Sites)
				f.Close()
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				logMerge(a.logger, path, stats)
			}

			dest := outPath
			if dest == "" {
				dest = archivePath
			}
			if err := writeArchiveFile(dest, cmd.OutOrStdout(), archive, a.cfg.Sites); err != nil {
				return err
			}
			a.logger.Info("archive written", "path", dest, "dates", len(archive))
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "data/archive.csv", "Archive table to merge into (created if missing)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", `Output path, "-" for stdout (default: overwrite --archive)`)
	return cmd
}
