package commands

import (
	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

func newPromptsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts <server>",
		Short: "List the prompts a server offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				result, err := m.ListPrompts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newPromptCmd(e *env) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "prompt <server> <name>",
		Short: "Render a prompt",
		Long: `Render a prompt with the given arguments. Non-string argument values are
sent as their JSON encoding.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			promptArgs, err := parseArgs(rawArgs)
			if err != nil {
				return err
			}
			return e.withServer(cmd.Context(), args[0], func(m *mcpmgr.Manager) error {
				result, err := m.GetPrompt(cmd.Context(), args[0], args[1], promptArgs)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "prompt arguments as a JSON object")
	return cmd
}
