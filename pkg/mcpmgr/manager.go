package mcpmgr

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultClientName     = "chatless"
	DefaultClientVersion  = "1.0.0"
)

// Options configures a Manager. The zero value is usable.
type Options struct {
	Logger *slog.Logger

	// Probe is consulted before every connect. Defaults to PathProbe.
	Probe EnvironmentProbe
	// HTTPClients supplies clients for sse and http servers.
	HTTPClients HTTPClientProvider
	// Validator vets stdio commands. Defaults to one backed by the host
	// filesystem.
	Validator *CommandValidator

	AttemptTimeout  time.Duration
	PrefetchTimeout time.Duration
	// RequestTimeout bounds each proxied RPC. Negative disables it.
	RequestTimeout time.Duration

	ClientName    string
	ClientVersion string

	// LogJSONRPC traces every JSON-RPC message through RPCLogger, or through
	// Logger at debug level when RPCLogger is nil.
	LogJSONRPC bool
	RPCLogger  RPCLogger

	// Dialer and Prefetch replace the SDK client and the executor subprocess.
	Dialer   Dialer
	Prefetch PrefetchRunner
}

func (o *Options) normalized() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Probe == nil {
		out.Probe = PathProbe{}
	}
	if out.Validator == nil {
		out.Validator = NewCommandValidator(nil)
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = DefaultAttemptTimeout
	}
	if out.PrefetchTimeout <= 0 {
		out.PrefetchTimeout = DefaultPrefetchTimeout
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = DefaultRequestTimeout
	}
	if out.ClientName == "" {
		out.ClientName = DefaultClientName
	}
	if out.ClientVersion == "" {
		out.ClientVersion = DefaultClientVersion
	}
	if out.LogJSONRPC && out.RPCLogger == nil {
		out.RPCLogger = SlogRPCLogger(out.Logger)
	}
	return out
}

// Manager owns the named connections of one process. It is safe for
// concurrent use; connects to different names proceed independently.
type Manager struct {
	options  Options
	logger   *slog.Logger
	registry *Registry
	orch     *orchestrator
}

// NewManager constructs a Manager. Callers can pass nil options to fall back
// to defaults.
func NewManager(opts *Options) *Manager {
	options := opts.normalized()
	m := &Manager{
		options:  options,
		logger:   options.Logger,
		registry: NewRegistry(),
	}
	dial := options.Dialer
	if dial == nil {
		dial = m.dial
	}
	prefetch := options.Prefetch
	if prefetch == nil {
		prefetch = execPrefetch(options.Logger)
	}
	m.orch = &orchestrator{
		factory:         NewTransportFactory(options.HTTPClients, options.Logger),
		dial:            m.traced(dial),
		prefetch:        prefetch,
		attemptTimeout:  options.AttemptTimeout,
		prefetchTimeout: options.PrefetchTimeout,
		logger:          options.Logger,
	}
	return m
}

// Registry exposes the connection registry for inspection.
func (m *Manager) Registry() *Registry { return m.registry }

// IsConnected reports whether name has a live connection.
func (m *Manager) IsConnected(name string) bool { return m.registry.IsConnected(name) }

// ListServers returns the connected server names.
func (m *Manager) ListServers() []string { return m.registry.Names() }

// Summaries returns the state of every known server, including ones that are
// still connecting.
func (m *Manager) Summaries() []ServerSummary { return m.registry.Summaries() }

// ConnectRaw decodes raw and connects it under name.
func (m *Manager) ConnectRaw(ctx context.Context, name string, raw RawServerConfig) error {
	cfg, err := raw.Decode()
	if err != nil {
		return err
	}
	return m.Connect(ctx, name, cfg)
}

// Connect establishes a session to the server described by cfg and binds it
// to name. Connecting an already connected name is a no-op. A concurrent
// Connect for the same name waits for the one in flight and then re-checks.
func (m *Manager) Connect(ctx context.Context, name string, cfg ServerConfig) error {
	if name == "" {
		return configErrorf("server name required")
	}
	if cfg == nil {
		return configErrorf("missing configuration for %q", name)
	}
	var res *reservation
	for res == nil {
		r, wait, connected := m.registry.reserve(name, cfg.Transport())
		if connected {
			m.logger.Debug("server already connected", "server", name)
			return nil
		}
		if wait != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wait:
				continue
			}
		}
		res = r
	}

	conn, err := m.establish(ctx, name, cfg)
	if err != nil {
		m.registry.release(res)
		m.logger.Error("connect failed", "server", name, "transport", cfg.Transport(), "error", err)
		return err
	}
	if !m.registry.commit(res, conn) {
		m.logger.Info("connect superseded by disconnect, closing session", "server", name)
		if cerr := conn.session.Close(); cerr != nil {
			m.logger.Warn("closing discarded session", "server", name, "error", cerr)
		}
		return errors.WithDetailf(ErrConnectCancelled, "server %q", name)
	}
	m.logger.Info("server connected", "server", name, "transport", conn.Transport, "connection", conn.ID)
	go m.monitorSession(conn)
	return nil
}

func (m *Manager) establish(ctx context.Context, name string, cfg ServerConfig) (*Connection, error) {
	if !m.options.Probe.CanRunRequiredTools() {
		return nil, environmentError(m.options.Probe.ToolHealthReport())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if stdio, ok := AsStdio(cfg); ok {
		if err := m.options.Validator.Validate(stdio.Command, stdio.Args); err != nil {
			return nil, err
		}
	}
	session, err := m.orch.connect(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	return &Connection{
		ID:          uuid.New(),
		Name:        name,
		Transport:   cfg.Transport(),
		ConnectedAt: time.Now(),
		session:     session,
	}, nil
}

func (m *Manager) dial(ctx context.Context, _ string, transport mcp.Transport) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    m.options.ClientName,
		Version: m.options.ClientVersion,
	}, nil)
	return client.Connect(ctx, transport, nil)
}

func (m *Manager) traced(dial Dialer) Dialer {
	logger := m.options.RPCLogger
	if logger == nil {
		return dial
	}
	return func(ctx context.Context, name string, transport mcp.Transport) (*mcp.ClientSession, error) {
		return dial(ctx, name, &tracedTransport{server: name, inner: transport, trace: logger})
	}
}

// monitorSession drops the registry entry when a session ends on its own.
func (m *Manager) monitorSession(conn *Connection) {
	err := conn.session.Wait()
	if m.registry.removeConn(conn.Name, conn) {
		m.logger.Warn("session ended", "server", conn.Name, "connection", conn.ID, "error", err)
	}
}

// Disconnect closes the connection bound to name and removes it. Unknown
// names are a no-op. The entry is removed even when closing fails; the close
// error is returned. A connect still in flight for name is cancelled.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	conn, ok := m.registry.remove(name)
	if !ok {
		return nil
	}
	if err := m.closeConn(ctx, conn); err != nil {
		m.logger.Warn("disconnect", "server", name, "error", err)
		return err
	}
	m.logger.Info("server disconnected", "server", name)
	return nil
}

func (m *Manager) closeConn(ctx context.Context, conn *Connection) error {
	done := make(chan error, 1)
	go func() { done <- conn.session.Close() }()
	select {
	case <-ctx.Done():
		return errors.Mark(errors.Wrapf(ctx.Err(), "closing %q", conn.Name), ErrTimeout)
	case err := <-done:
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "closing %q", conn.Name), ErrTransport)
		}
		return nil
	}
}

// Shutdown closes every connection concurrently and cancels connects in
// flight. The Manager stays usable afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	conns := m.registry.drain()
	var g errgroup.Group
	for _, conn := range conns {
		g.Go(func() error { return m.closeConn(ctx, conn) })
	}
	err := g.Wait()
	m.logger.Info("manager shut down", "closed", len(conns), "error", err)
	return err
}
