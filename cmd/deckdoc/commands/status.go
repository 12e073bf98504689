package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/jobstate"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Fetch and show a job's status once",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := newClient()
	st, err := client.Job(ctx, args[0])
	if err != nil {
		return err
	}

	return ui.PrintScreen(render.Project(jobstate.View{Job: st}, client.DownloadURL))
}
