package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

func newValidateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [name]",
		Short: "Check server configurations without connecting",
		Long: `Decode each server configuration and run stdio commands through the command
validator: allowed executables, argument length, shell metacharacters and
path arguments that do not exist. Nothing is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := e.loadServers()
			if err != nil {
				return err
			}
			names := file.Names()
			if len(args) == 1 {
				if _, err := file.Lookup(args[0]); err != nil {
					return err
				}
				names = args
			}
			validator := e.validator
			if validator == nil {
				validator = mcpmgr.NewCommandValidator(nil)
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, name := range names {
				if err := validateServer(validator, file.Servers[name]); err != nil {
					failed++
					fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "✓ %s\n", name)
			}
			if failed > 0 {
				return errors.Newf("%d of %d server(s) failed validation", failed, len(names))
			}
			return nil
		},
	}
}

func validateServer(v *mcpmgr.CommandValidator, raw mcpmgr.RawServerConfig) error {
	cfg, err := raw.Decode()
	if err != nil {
		return err
	}
	if stdio, ok := mcpmgr.AsStdio(cfg); ok {
		return v.Validate(stdio.Command, stdio.Args)
	}
	return nil
}
