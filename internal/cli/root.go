// Package cli provides the command-line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/recite/internal/config"
	"github.com/phrazzld/recite/internal/platform/logger"
	"github.com/phrazzld/recite/internal/platform/sqlite"
)

var (
	cfg      *config.Config
	appLog   *slog.Logger
	database *sqlite.DB
	store    *sqlite.CardStore

	dbPathFlag string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "recite",
	Short: "Hands-free spaced-repetition study sessions",
	Long: `Recite - voice-driven spaced repetition

Cards are spoken aloud and graded by voice command. Scheduling follows a
forgetting-curve model with configurable learning steps per deck.

Quick Start:
  recite deck create "German"            # Create a deck
  recite note add <deck> front back      # Add a card
  recite review <deck>                   # Start a study session
  recite serve                           # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		appLog = logger.Setup(cfg.Server)

		path := cfg.Database.Path
		if dbPathFlag != "" {
			path = dbPathFlag
		}
		database, err = sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		store = sqlite.NewCardStore(database, appLog)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if database != nil {
			_ = database.Close()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&dbPathFlag, "db", "", "Database file path (default ~/.recite/cards.db)")
	rootCmd.AddCommand(versionCmd)
}

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("recite", version)
	},
}
