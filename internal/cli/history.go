package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkoretz/drover/internal/archive"
	"github.com/nkoretz/drover/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived runs",
	Long:  `Show runs previously recorded with --archive, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().String("archive", "drover.db", "SQLite archive to read")
	historyCmd.Flags().IntP("limit", "n", 20, "most recent runs to show")
	historyCmd.Flags().Bool("clear", false, "delete every archived run")
}

func showHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("archive")
	limit, _ := cmd.Flags().GetInt("limit")
	wipe, _ := cmd.Flags().GetBool("clear")
	noColor, _ := cmd.Flags().GetBool("no-color")

	store, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if wipe {
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "archive cleared")
		return nil
	}

	records, err := store.List(limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	printer := output.NewPrinter(w, output.SchemeFor(w, noColor), false)
	printer.PrintHistory(records)
	return nil
}
