package main

import (
	"os"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/commands"
	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
)

var (
	version = "0.1.0"
)

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		// A failed job was already shown with its screen.
		if !domain.IsType(err, domain.ErrorTypeJobFailed) {
			ui.Error("%s", domain.UserMessage(err))
		}
		os.Exit(1)
	}
}
