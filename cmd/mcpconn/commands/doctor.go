package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newDoctorCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the tools MCP servers rely on are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := e.probe.ToolHealthReport()
			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else if len(report.Missing) == 0 {
				fmt.Fprintln(out, "✓ all required tools found")
			} else {
				for _, tool := range report.Missing {
					fmt.Fprintf(out, "✗ %s not found\n", tool)
				}
				fmt.Fprintln(out, "\nInstallation recommendations:")
				for _, rec := range report.Recommendations {
					fmt.Fprintf(out, "  - %s\n", rec)
				}
			}
			if len(report.Missing) > 0 {
				return errors.Newf("%d required tool(s) missing", len(report.Missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}
