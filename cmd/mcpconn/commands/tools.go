package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

func newToolsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools <server>",
		Short: "List the tools a server offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				tools, err := m.ListTools(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), tools)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDESCRIPTION")
				for _, tool := range tools {
					fmt.Fprintf(tw, "%s\t%s\n", tool.Name, tool.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newCallCmd(e *env) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call a tool and print the result as JSON",
		Example: `  mcpconn call filesystem read_file --args '{"path": "/tmp/notes.txt"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseArgs(rawArgs)
			if err != nil {
				return err
			}
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				result, err := m.CallTool(cmd.Context(), args[0], args[1], toolArgs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}
