package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the extraction backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		client := newClient()
		if err := client.Health(ctx); err != nil {
			return err
		}

		if ui.JSONMode() {
			return ui.JSON(map[string]string{"base_url": client.BaseURL(), "status": "ok"})
		}
		ui.Success("Backend at %s is healthy", client.BaseURL())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
