package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/history"
)

var watchCmd = &cobra.Command{
	Use:   "watch [job-id]",
	Short: "Follow an existing job until it finishes",
	Long: `Poll a job that was submitted earlier. Without a job id the most recent
unfinished job from the local history is resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	env := newSessionEnv(ctx)
	defer env.Close()

	var jobID string
	if len(args) == 1 {
		jobID = args[0]
	} else {
		if env.ledger == nil {
			return domain.ValidationError("No job id given and history is disabled", nil)
		}
		entry, err := env.ledger.Latest(ctx)
		if errors.Is(err, history.ErrNotFound) {
			return domain.ValidationError("No unfinished job in history", nil)
		}
		if err != nil {
			return err
		}
		jobID = entry.JobID
		ui.Info("Resuming %s (%s)", jobID, entry.SourceFilename)
	}

	ui.Step("Following %s", jobID)
	env.session.Resume(ctx, jobID)
	_, err := follow(ctx, env.session)
	return err
}
