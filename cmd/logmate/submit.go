package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pkg.jsn.cam/logmate/internal/client"
	"pkg.jsn.cam/logmate/internal/report"
	"pkg.jsn.cam/logmate/pkg/logmate"
)

func newSubmitCmd(a *app) *cobra.Command {
	var (
		serverURL string
		opts      report.Options
		quiet     bool
		noWait    bool
	)

	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Upload access logs to a logmate server",
		Long: `Submit uploads each file and, unless --no-wait is given, follows its
progress over the status websocket and prints the result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if serverURL == "" {
				serverURL = localURL(a.cfg.Server.Addr)
			}
			c := client.NewClient(serverURL)
			out := cmd.OutOrStdout()

			var errs []error
			for _, path := range args {
				if noWait {
					up, err := c.Upload(ctx, path)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					color.New(color.FgGreen).Fprintf(out, "%s queued as %s (%s)\n", up.FileName, up.TaskID, humanize.Bytes(uint64(up.FileSize)))
					continue
				}

				prog := newProgress(cmd.ErrOrStderr(), quiet)
				up, res, err := c.Submit(ctx, path, prog.handle)
				prog.close()
				if err != nil {
					if ctx.Err() != nil {
						return err
					}
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
					continue
				}
				if res == nil {
					res = &logmate.Result{}
				}
				if err := report.Write(out, up.FileName, *res, opts); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "server URL (default: derived from server.addr)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", report.FormatTable, "output format (table, json)")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id and return without waiting")
	return cmd
}

// localURL turns a listen address into a URL for the same machine.
func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
