package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

type serverInfoJSON struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Command   string `json:"command,omitempty"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newServersCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List the servers in the servers file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := e.loadServers()
			if err != nil {
				return err
			}
			infos := make([]serverInfoJSON, 0, len(file.Servers))
			for _, name := range file.Names() {
				infos = append(infos, describeServer(name, file.Servers[name]))
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), infos)
			}
			if len(infos) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No servers configured in %s\n", e.cfg.ServersFile)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTRANSPORT\tTARGET")
			for _, info := range infos {
				target := info.Command
				if target == "" {
					target = info.URL
				}
				if info.Error != "" {
					target = "invalid: " + info.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Transport, target)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func describeServer(name string, raw mcpmgr.RawServerConfig) serverInfoJSON {
	info := serverInfoJSON{Name: name, Transport: raw.Type}
	cfg, err := raw.Decode()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	switch c := cfg.(type) {
	case *mcpmgr.StdioServerConfig:
		info.Command = strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
	case *mcpmgr.SSEServerConfig:
		info.URL = c.BaseURL
	case *mcpmgr.HTTPServerConfig:
		info.URL = c.BaseURL
	}
	return info
}
