package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/deckdoc/cmd/deckdoc/ui"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/config"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/domain"
	"github.com/spherical-ai/spherical/libs/deckdoc/internal/observability"
)

var (
	cfgFile    string
	verbose    bool
	noColor    bool
	outputJSON bool

	cfg    *config.Config
	logger *observability.Logger

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "deckdoc",
	Short: "Turn .pptx decks into knowledge documents",
	Long: `deckdoc uploads a PowerPoint deck to the extraction backend, follows the
extraction job until it finishes and shows the resulting knowledge document:
slide text, speaker notes and OCR'd image text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return domain.ConfigError("Invalid configuration", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		format := cfg.Observability.LogFormat
		if outputJSON {
			format = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      format,
			ServiceName: "deckdoc",
		})

		ui.InitUI(noColor, outputJSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: env vars only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
