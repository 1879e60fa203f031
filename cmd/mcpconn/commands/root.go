// Package commands implements the mcpconn CLI.
package commands

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lxfight/chatless/internal/config"
	"github.com/lxfight/chatless/internal/logging"
	"github.com/lxfight/chatless/pkg/mcpmgr"
)

const version = "0.1.0"

// globalFlags holds the persistent flag values shared by every subcommand.
type globalFlags struct {
	verbosity   int
	quiet       bool
	logFormat   string
	configPath  string
	serversPath string
}

// env is the state prepared by the root command before a subcommand runs.
type env struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger

	// probe, dialer and validator replace the host environment in tests.
	probe     mcpmgr.EnvironmentProbe
	dialer    mcpmgr.Dialer
	validator *mcpmgr.CommandValidator
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{})
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpconn",
		Short: "Connect to MCP servers and call their tools, resources and prompts",
		Long: `mcpconn manages connections to Model Context Protocol servers described in a
servers file ({"mcpServers": {...}}). Servers run as local processes (stdio) or
are reached over SSE or streamable HTTP.

Each command connects the servers it needs, runs, and disconnects. Use
"mcpconn serve" to keep connections open behind a local HTTP API.`,
		Example: `  # List configured servers
  mcpconn servers

  # Check every stdio command without starting anything
  mcpconn validate

  # Call a tool
  mcpconn call filesystem list_directory --args '{"path": "/tmp"}'`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	root.SetVersionTemplate("mcpconn version {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.CountVarP(&e.flags.verbosity, "verbose", "v", "increase verbosity (-v for debug)")
	pf.BoolVarP(&e.flags.quiet, "quiet", "q", false, "only log errors")
	pf.StringVar(&e.flags.logFormat, "log-format", "", "log format: text, json (default from config)")
	pf.StringVar(&e.flags.configPath, "config", "", "config file (default ./config.yaml or $XDG_CONFIG_HOME/mcpconn/config.yaml)")
	pf.StringVar(&e.flags.serversPath, "servers", "", "servers file (default from config)")

	root.AddCommand(
		newServersCmd(e),
		newValidateCmd(e),
		newDoctorCmd(e),
		newToolsCmd(e),
		newCallCmd(e),
		newResourcesCmd(e),
		newReadCmd(e),
		newPromptsCmd(e),
		newPromptCmd(e),
		newServeCmd(e),
	)
	return root
}

func (e *env) setup(cmd *cobra.Command) error {
	if e.flags.quiet && e.flags.verbosity > 0 {
		return errors.New("cannot use --quiet and --verbose together")
	}
	cfg, err := config.Load(config.New(), e.flags.configPath)
	if err != nil {
		return err
	}
	if e.flags.serversPath != "" {
		cfg.ServersFile = e.flags.serversPath
	}
	if e.flags.logFormat != "" {
		cfg.Log.Format = e.flags.logFormat
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	switch {
	case e.flags.quiet:
		level = slog.LevelError
	case e.flags.verbosity > 0:
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.logger = logging.New(logging.Config{Level: level, Format: format, Output: cmd.ErrOrStderr()})
	slog.SetDefault(e.logger)
	if e.probe == nil {
		e.probe = mcpmgr.PathProbe{}
	}
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	return nil
}

// newManager builds a Manager from the loaded configuration.
func (e *env) newManager() *mcpmgr.Manager {
	opts := e.cfg.ManagerOptions()
	opts.Logger = e.logger
	opts.Probe = e.probe
	opts.Dialer = e.dialer
	opts.Validator = e.validator
	return mcpmgr.NewManager(&opts)
}

func (e *env) loadServers() (*config.ServersFile, error) {
	return config.LoadServers(nil, e.cfg.ServersFile)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
