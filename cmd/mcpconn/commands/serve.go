package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/pkg/mcpapi"
)

func newServeCmd(e *env) *cobra.Command {
	var (
		addr       string
		connectAll bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the connection manager over a local HTTP API",
		Long: `Start an HTTP API that connects, disconnects and proxies MCP servers on
request. With --connect-all every server in the servers file is connected at
startup; failures are logged and do not stop the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = e.cfg.Listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := e.newManager()
			if connectAll {
				file, err := e.loadServers()
				if err != nil {
					return err
				}
				for _, name := range file.Names() {
					if err := m.ConnectRaw(ctx, name, file.Servers[name]); err != nil {
						e.logger.Error("startup connect failed", "server", name, "error", err)
					}
				}
			}

			api, err := mcpapi.NewServer(m, &mcpapi.Options{
				Addr:           addr,
				AllowedOrigins: e.cfg.CORS.AllowedOrigins,
				Logger:         e.logger,
			})
			if err != nil {
				return err
			}
			err = api.ListenAndServe(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return errors.CombineErrors(err, m.Shutdown(shutdownCtx))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&connectAll, "connect-all", false, "connect every configured server at startup")
	return cmd
}
