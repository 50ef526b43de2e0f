package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pkg.jsn.cam/logmate/internal/report"
	"pkg.jsn.cam/logmate/pkg/logmate"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		opts   report.Options
		quiet  bool
		chunks int
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Analyze access logs locally",
		Long: `Analyze parses each file in this process and prints its statistics.
Files ending in .gz or .zst are decompressed; s3:// paths are read from
the configured blob bucket.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			blobs, err := a.blobStore(ctx)
			if err != nil {
				return err
			}

			prog := newProgress(cmd.ErrOrStderr(), quiet)
			ctrl := a.controller(prog.notifier(), blobs)
			if chunks > 0 {
				ctrl.ChunkCount = chunks
			}

			var errs []error
			for _, path := range args {
				res, err := ctrl.Execute(ctx, logmate.JobSpec{JobID: uuid.New().String(), FilePath: path})
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				if err := report.Write(cmd.OutOrStdout(), path, res, opts); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", report.FormatTable, "output format (table, json)")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().IntVar(&chunks, "chunks", 0, "override processing.chunk_count")
	return cmd
}
