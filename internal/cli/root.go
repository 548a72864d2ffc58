// Package cli wires the drover command tree.
package cli

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// RootCmd is the base command when drover is called without subcommands.
var RootCmd = &cobra.Command{
	Use:     "drover",
	Short:   "Drive herds of virtual users against an HTTP service",
	Version: version,
	Long: `Drover is a scenario-driven load harness. It ramps virtual users along
a staged schedule, sends weighted request mixes against a target service,
records latency and outcome registers, and judges the run against
thresholds for a pass or fail verdict.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		quiet, _ := cmd.Flags().GetBool("quiet")
		configureLogging(verbose, quiet)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the command tree and returns the resulting error for the
// caller to map onto an exit code.
func Execute() error {
	return RootCmd.Execute()
}

func configureLogging(verbose, quiet bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	switch {
	case quiet:
		log.SetLevel(log.ErrorLevel)
	case verbose:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "only errors and the final verdict")
	RootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(targetCmd)
}
