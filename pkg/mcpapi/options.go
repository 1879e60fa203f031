package mcpapi

import (
	"log/slog"
	"time"
)

// Options configure a Server.
type Options struct {
	// Addr controls the listen address used by ListenAndServe. Defaults to
	// "127.0.0.1:7410".
	Addr string
	// AllowedOrigins lists the browser origins permitted to call the API.
	// Requests carrying any other Origin are rejected with 403; requests
	// without an Origin header (CLI, curl) are not affected. Empty allows no
	// browser origin.
	AllowedOrigins []string
	// ShutdownTimeout bounds graceful shutdown, including closing every
	// managed connection. Defaults to 10s.
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:7410"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.AllowedOrigins = append([]string(nil), opts.AllowedOrigins...)
	return opts
}
