package cmd

import (
	"fmt"

	"github.com/scandock/scandock/internal/config"
	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/scan"
	"github.com/scandock/scandock/internal/scanner"
	"github.com/scandock/scandock/internal/session"
	"github.com/spf13/cobra"
)

func newScanCmd(settingsPath *string) *cobra.Command {
	var (
		sessionID string
		duplex    bool
		device    string
		source    string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one capture and add the pages to a session",
		Example: `  # Scan a single page into the default session
  scandock scan

  # Feed a stack through the ADF, both sides
  scandock scan --duplex --source "ADF Duplex"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*settingsPath)
			if err != nil {
				return err
			}

			runner := execrun.OS{}
			registry := scanner.NewRegistry(runner)
			sessions := session.NewStore(settings.OutputDir)
			executor := scan.New(registry, runner, settings.OutputDir)

			sessionDir, err := sessions.Dir(sessionID)
			if err != nil {
				return err
			}

			opts := scan.Options{
				Device:     settings.Device,
				OutputDir:  sessionDir,
				Format:     settings.Format,
				Resolution: settings.Resolution,
				Source:     settings.Source,
				Width:      settings.PageWidth,
				Height:     settings.PageHeight,
				SkipBlank:  settings.SkipBlank,
				Duplex:     settings.Duplex,
			}
			if device != "" {
				opts.Device = device
			}
			if source != "" {
				opts.Source = source
			}
			if cmd.Flags().Changed("duplex") {
				opts.Duplex = duplex
			}

			result, err := executor.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			for _, file := range result.Files {
				page, err := sessions.AddPage(sessionID, file)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d: %s (%d bytes)\n", page.Number, page.Filename, page.SizeBytes)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", session.DefaultID, "Session to add the pages to")
	cmd.Flags().BoolVar(&duplex, "duplex", false, "Capture both sides through the document feeder")
	cmd.Flags().StringVar(&device, "device", "", "Explicit device identifier (skips discovery)")
	cmd.Flags().StringVar(&source, "source", "", "Scan source, e.g. Flatbed or ADF")

	return cmd
}
