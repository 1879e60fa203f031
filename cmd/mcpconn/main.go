// Command mcpconn connects to MCP servers listed in a servers file and
// proxies tool, resource and prompt requests to them.
package main

import (
	"fmt"
	"os"

	"github.com/lxfight/chatless/cmd/mcpconn/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
