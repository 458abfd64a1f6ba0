package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newReportCmd creates the 'report' subcommand, which prints the
// aggregate coverage stored so far.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Prints the aggregate coverage report",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			report, err := appInstance.GetStore().Report(cmd.Context())
			if err != nil {
				return fmt.Errorf("load coverage report: %w", err)
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode coverage report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
