package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/submit"
)

var (
	submitNoWait   bool
	submitDownload bool
	submitMarkdown string
)

var submitCmd = &cobra.Command{
	Use:   "submit <deck.pptx>",
	Short: "Upload a deck and follow its extraction job",
	Long: `Upload one .pptx file, then poll the job until it completes or fails and
print the extracted knowledge document.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().BoolVar(&submitNoWait, "no-wait", false, "print the job id and exit without polling")
	submitCmd.Flags().BoolVarP(&submitDownload, "download", "d", false, "download the Markdown artifact when the job completes")
	submitCmd.Flags().StringVarP(&submitMarkdown, "markdown", "m", "", "write the document as Markdown to this path when the job completes")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	path := args[0]
	candidate := submit.Candidate{Name: filepath.Base(path)}
	if err := candidate.Validate(); err != nil {
		return err
	}

	candidate, closer, err := submit.OpenCandidate(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	env := newSessionEnv(ctx)
	defer env.Close()

	spin := ui.NewSpinner(fmt.Sprintf("Uploading %s", candidate.Name))
	spin.Start()
	handle, err := env.session.Submit(ctx, candidate)
	spin.Stop()
	if err != nil {
		return err
	}

	ui.Success("Job %s created for %s", handle.JobID, candidate.Name)
	if submitNoWait {
		if ui.JSONMode() {
			return ui.JSON(handle)
		}
		return nil
	}

	ui.Step("Polling every %s", cfg.Poller.Interval)
	final, err := follow(ctx, env.session)
	if err != nil {
		return err
	}

	if submitMarkdown != "" {
		if err := writeMarkdown(final, submitMarkdown); err != nil {
			return err
		}
		ui.Success("Markdown written to %s", submitMarkdown)
	}

	if submitDownload {
		written, err := saveArtifact(ctx, env.client, handle.JobID, cfg.Download.Dir, "")
		if err != nil {
			return err
		}
		ui.Success("Downloaded %s", written)
	}

	return nil
}
