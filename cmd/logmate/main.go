// Command logmate ingests web-server access logs: it serves the upload API,
// runs workers and analyzes files locally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "logmate",
		Short: "Access log ingestion and analysis",
		Long: `logmate parses access logs in combined format and reports request
statistics while they are processed.

Commands:
  serve     HTTP upload API, job status and progress websocket
  worker    Standalone worker consuming the Redis queue
  analyze   Analyze files locally
  submit    Upload files to a running server
  generate  Write synthetic access logs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: ./logmate.yaml, $HOME/logmate.yaml, /etc/logmate/logmate.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(
		newServeCmd(a),
		newWorkerCmd(a),
		newAnalyzeCmd(a),
		newSubmitCmd(a),
		newGenerateCmd(a),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// No config needed.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "logmate %s\n", protocol.LogmateVersion)
		},
	}
}
