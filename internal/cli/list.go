package cli

import (
	"github.com/spf13/cobra"

	"github.com/nkoretz/drover/internal/output"
	"github.com/nkoretz/drover/internal/runner"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the scenarios in the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noColor, _ := cmd.Flags().GetBool("no-color")

		w := cmd.OutOrStdout()
		printer := output.NewPrinter(w, output.SchemeFor(w, noColor), false)
		printer.PrintScenarios(runner.DefaultCatalog().Definitions())
		return nil
	},
}
