package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
)

var (
	downloadOutput string
	downloadDir    string
)

var downloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Download a completed job's Markdown artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file (default: server-provided name)")
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "output directory (default: download.dir from config)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	dir := downloadDir
	if dir == "" {
		dir = cfg.Download.Dir
	}

	written, err := saveArtifact(ctx, newClient(), args[0], dir, downloadOutput)
	if err != nil {
		return err
	}

	if ui.JSONMode() {
		return ui.JSON(map[string]string{"job_id": args[0], "path": written})
	}
	ui.Success("Downloaded %s", written)
	return nil
}
