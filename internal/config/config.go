// Package config loads mcpconn settings with Viper and the MCP servers file
// with yaml.v3.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

// AppName names the config directory and environment prefix.
const AppName = "mcpconn"

// Config is the application configuration.
type Config struct {
	ServersFile string     `mapstructure:"servers_file"`
	Listen      string     `mapstructure:"listen"`
	ClientName  string     `mapstructure:"client_name"`
	LogJSONRPC  bool       `mapstructure:"log_jsonrpc"`
	Log         LogConfig  `mapstructure:"log"`
	Timeouts    Timeouts   `mapstructure:"timeouts"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Timeouts bound connect attempts, package prefetches and proxied RPCs.
type Timeouts struct {
	Attempt  time.Duration `mapstructure:"attempt"`
	Prefetch time.Duration `mapstructure:"prefetch"`
	Request  time.Duration `mapstructure:"request"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ConfigDir is the per-user configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// New returns a Viper instance with defaults, search paths and environment
// binding (MCPCONN_LOG_LEVEL sets log.level). Without searchPaths it looks in
// the working directory, then ConfigDir.
func New(searchPaths ...string) *viper.Viper {
	if len(searchPaths) == 0 {
		searchPaths = []string{".", ConfigDir()}
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("servers_file", filepath.Join(ConfigDir(), "servers.json"))
	v.SetDefault("listen", "127.0.0.1:7410")
	v.SetDefault("client_name", mcpmgr.DefaultClientName)
	v.SetDefault("log_jsonrpc", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("timeouts.attempt", mcpmgr.DefaultAttemptTimeout)
	v.SetDefault("timeouts.prefetch", mcpmgr.DefaultPrefetchTimeout)
	v.SetDefault("timeouts.request", mcpmgr.DefaultRequestTimeout)
	v.SetDefault("cors.allowed_origins", []string{"tauri://localhost", "http://tauri.localhost", "http://localhost:1420"})
	return v
}

// Load reads the configuration file into v. An explicit path must exist; the
// implicit search falls back to defaults when no file is found.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
		case errors.As(err, &notFound):
			return nil, errors.Wrapf(err, "config file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values Viper cannot type-check.
func (c *Config) Validate() error {
	if c.Timeouts.Attempt <= 0 {
		return errors.Newf("timeouts.attempt must be positive, got %s", c.Timeouts.Attempt)
	}
	if c.Timeouts.Prefetch <= 0 {
		return errors.Newf("timeouts.prefetch must be positive, got %s", c.Timeouts.Prefetch)
	}
	if strings.TrimSpace(c.ServersFile) == "" {
		return errors.New("servers_file is required")
	}
	return nil
}

// ManagerOptions maps the settings onto mcpmgr options.
func (c *Config) ManagerOptions() mcpmgr.Options {
	return mcpmgr.Options{
		AttemptTimeout:  c.Timeouts.Attempt,
		PrefetchTimeout: c.Timeouts.Prefetch,
		RequestTimeout:  c.Timeouts.Request,
		ClientName:      c.ClientName,
		LogJSONRPC:      c.LogJSONRPC,
	}
}
