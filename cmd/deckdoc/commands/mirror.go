package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/render"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror <job-id>",
	Short: "Show job snapshots broadcast by another deckdoc session",
	Long: `Subscribe to the Redis channel of a job and print every snapshot published
by the session that is polling it. Requires broadcast.driver=redis (or REDIS_URL).`,
	Args: cobra.ExactArgs(1),
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Broadcast.Driver != "redis" {
		return domain.ConfigError("Broadcast is not enabled; set REDIS_URL or broadcast.driver=redis", nil)
	}

	r, err := newRedis()
	if err != nil {
		return domain.ConfigError("Cannot reach Redis", err)
	}
	defer r.Close()

	snaps, unsubscribe, err := r.Subscribe(ctx, args[0])
	if err != nil {
		return err
	}
	defer unsubscribe()

	client := newClient()
	ui.Info("Listening on %s", r.Channel(args[0]))

	for snap := range snaps {
		screen := render.Project(snap.View, client.DownloadURL)
		if err := ui.PrintScreen(screen); err != nil {
			return err
		}
		if snap.View.Terminal() {
			return nil
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted")
	}
	return nil
}
