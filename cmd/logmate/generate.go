package main

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pkg.jsn.cam/logmate/internal/generator"
)

type generateOptions struct {
	out     string
	files   int
	lines   int64
	size    string
	maxSize string
	kind    string
	seed    uint64
	quiet   bool
}

func newGenerateCmd(_ *app) *cobra.Command {
	var o generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic access logs for testing",
		Example: `  logmate generate --lines 100000
  logmate generate --files 5 --size 10MB --max-size 50MB --generator noisy`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			gen, err := generator.Get(o.kind)
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(generator.List(), ", "))
			}

			minBytes, maxBytes, err := o.sizeRange()
			if err != nil {
				return err
			}
			if o.lines <= 0 && minBytes == 0 {
				return fmt.Errorf("set --lines or --size")
			}

			seed := o.seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			pick := rand.New(rand.NewPCG(seed, seed>>1))

			out := cmd.OutOrStdout()
			for i := range o.files {
				target := generator.Target{Lines: o.lines, Bytes: minBytes}
				if maxBytes > minBytes {
					target.Bytes = minBytes + pick.Int64N(maxBytes-minBytes+1)
				}
				path := filepath.Join(o.out, fmt.Sprintf("access-%03d.log", i+1))

				bar := o.bar(cmd, path, target.Bytes)
				stats, err := generator.WriteFile(ctx, path, gen, seed+uint64(i), target, func(n int64) {
					if bar != nil {
						_ = bar.Set64(n)
					}
				})
				if bar != nil {
					_ = bar.Finish()
				}
				if err != nil {
					return fmt.Errorf("generate %s: %w", path, err)
				}

				fmt.Fprintf(out, "%s: %s lines, %s\n", stats.Path, humanize.Comma(stats.Lines), humanize.Bytes(uint64(stats.Bytes)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.out, "out", "o", "testdata", "output directory")
	cmd.Flags().IntVarP(&o.files, "files", "n", 1, "number of files")
	cmd.Flags().Int64VarP(&o.lines, "lines", "l", 0, "lines per file")
	cmd.Flags().StringVar(&o.size, "size", "", "bytes per file, e.g. 10MB")
	cmd.Flags().StringVar(&o.maxSize, "max-size", "", "pick each file size between --size and this")
	cmd.Flags().StringVarP(&o.kind, "generator", "g", "combined", "line generator ("+strings.Join(generator.List(), ", ")+")")
	cmd.Flags().Uint64Var(&o.seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func (o generateOptions) sizeRange() (lo, hi int64, err error) {
	if o.size == "" {
		if o.maxSize != "" {
			return 0, 0, fmt.Errorf("--max-size needs --size")
		}
		return 0, 0, nil
	}

	n, err := humanize.ParseBytes(o.size)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --size: %w", err)
	}
	lo, hi = int64(n), int64(n)

	if o.maxSize != "" {
		m, err := humanize.ParseBytes(o.maxSize)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --max-size: %w", err)
		}
		if int64(m) < lo {
			return 0, 0, fmt.Errorf("--max-size %s is below --size %s", o.maxSize, o.size)
		}
		hi = int64(m)
	}
	return lo, hi, nil
}

func (o generateOptions) bar(cmd *cobra.Command, path string, size int64) *progressbar.ProgressBar {
	if o.quiet {
		return nil
	}
	if size <= 0 {
		size = -1 // spinner
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(filepath.Base(path)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}
