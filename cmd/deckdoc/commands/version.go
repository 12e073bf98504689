package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ui.JSONMode() {
			return ui.JSON(map[string]string{
				"version": version,
				"go":      runtime.Version(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deckdoc %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
