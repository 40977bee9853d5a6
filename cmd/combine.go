package cmd

import (
	"fmt"
	"os"

	"github.com/scandock/scandock/internal/combine"
	"github.com/scandock/scandock/internal/config"
	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/paperless"
	"github.com/scandock/scandock/internal/session"
	"github.com/spf13/cobra"
)

func newCombineCmd(settingsPath *string) *cobra.Command {
	var (
		sessionID string
		upload    bool
		title     string
	)

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Merge a session's pages into one document",
		Long: `Merges the ordered pages of a session into a single PDF.

With --upload the result is pushed to the configured backend, the
session is cleared, and the combined file is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*settingsPath)
			if err != nil {
				return err
			}

			runner := execrun.OS{}
			sessions := session.NewStore(settings.OutputDir)
			combiner := combine.New(runner, settings.OutputDir)

			sess, err := sessions.Get(sessionID)
			if err != nil {
				return err
			}

			out, err := combiner.Combine(cmd.Context(), sess, settings.Format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "combined %d pages into %s\n", len(sess.Pages), out)

			if !upload {
				return nil
			}

			client := paperless.NewClient(settings.Upstream.URL, settings.Upstream.Token)
			if err := client.Upload(cmd.Context(), out, title); err != nil {
				return err
			}

			deleted, err := sessions.Clear(sessionID)
			if err != nil {
				return fmt.Errorf("uploaded but failed to clear session: %w", err)
			}
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("uploaded but failed to remove combined file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded and cleared %d pages\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", session.DefaultID, "Session to combine")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the combined document to the backend")
	cmd.Flags().StringVar(&title, "title", "", "Document title for the upload")

	return cmd
}
