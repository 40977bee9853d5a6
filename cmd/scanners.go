package cmd

import (
	"fmt"

	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/scanner"
	"github.com/spf13/cobra"
)

func newScannersCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scanners",
		Short: "Inspect and repair scanner connectivity",
	}

	registry := func() *scanner.Registry {
		return scanner.NewRegistry(execrun.OS{})
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List attached scanners",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := registry().Detect(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s (%s)\n", d.Device, d.Vendor, d.Model, d.Kind)
			}
			return nil
		},
	}

	diagnose := &cobra.Command{
		Use:   "diagnose",
		Short: "Collect facts about the scanning toolchain and host",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := registry().Diagnose(cmd.Context())
			for _, p := range d.Probes {
				status := "FAIL"
				if p.OK {
					status = "ok"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-4s %s\n", p.Name, status, p.Detail)
			}
			for _, s := range d.Suggestions {
				fmt.Fprintf(cmd.OutOrStdout(), "suggestion: %s\n", s)
			}
			return nil
		},
	}

	fix := &cobra.Command{
		Use:   "fix",
		Short: "Attempt to recover a missing scanner",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := registry().AttemptFix(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			if !result.Success {
				return fmt.Errorf("remediation did not recover a scanner")
			}
			return nil
		},
	}

	cmd.AddCommand(list, diagnose, fix)
	return cmd
}
