package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted jobs from the local ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of jobs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	ledger, err := openLedger()
	if err != nil {
		return err
	}
	if ledger == nil {
		return domain.ValidationError("History is disabled", nil)
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	if ui.JSONMode() {
		return ui.JSON(entries)
	}
	if len(entries) == 0 {
		ui.Info("No jobs yet")
		return nil
	}

	ui.Table([]string{"JOB", "FILE", "STATUS", "SUBMITTED", "ERROR"}, historyRows(entries))
	return nil
}

// historyRows lays out ledger entries as table cells. Cells stay uncoloured
// because tabwriter counts escape bytes as column width.
func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		file := e.SourceFilename
		if file == "" {
			file = "-"
		}
		rows = append(rows, []string{
			e.JobID,
			file,
			ui.StatusLabel(e.Status),
			e.SubmittedAt.Local().Format(time.DateTime),
			e.Error,
		})
	}
	return rows
}
