package commands

import (
	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

func newResourcesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "resources <server>",
		Short: "List the resources a server exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				result, err := m.ListResources(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newReadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "read <server> <uri>",
		Short: "Read a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				result, err := m.ReadResource(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}
