package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "scandock",
		Short: "Bridge a document scanner to a document-management backend",
		Long: `Scandock drives a SANE-connected document scanner, collects scanned
pages into sessions, combines them into a single document, and pushes the
result to a paperless-style backend.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&settingsPath, "settings", "scandock.yaml", "Path to the settings file")

	cmd.AddCommand(newServeCmd(&settingsPath))
	cmd.AddCommand(newScanCmd(&settingsPath))
	cmd.AddCommand(newScannersCmd(&settingsPath))
	cmd.AddCommand(newCombineCmd(&settingsPath))

	return cmd
}
