package mcpmgr

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultHTTPProfile is the client profile requested for network transports.
const DefaultHTTPProfile = "browser_like"

// HTTPClientProvider supplies the shared HTTP clients used by sse and http
// transports. The manager never configures TLS or proxies itself.
type HTTPClientProvider interface {
	Client(profile string) (*http.Client, error)
}

// HTTPClientProviderFunc adapts a function to HTTPClientProvider.
type HTTPClientProviderFunc func(profile string) (*http.Client, error)

func (f HTTPClientProviderFunc) Client(profile string) (*http.Client, error) { return f(profile) }

var defaultClientProvider = HTTPClientProviderFunc(func(string) (*http.Client, error) {
	return http.DefaultClient, nil
})

// executorProfile describes how a package executor is kept quiet on the
// framed stdio channel and how it installs a package without running it.
type executorProfile struct {
	env          []EnvVar
	prefetchArgs func(pkg string) []string
}

var executorProfiles = map[string]executorProfile{
	"npx": {
		env: []EnvVar{{"NPM_CONFIG_LOGLEVEL", "silent"}, {"NO_COLOR", "1"}, {"NPX_Y", "1"}},
		prefetchArgs: func(pkg string) []string {
			return []string{"-y", "-p", pkg, "node", "-e", "process.exit(0)"}
		},
	},
	"uvx": {
		env: []EnvVar{{"UV_NO_PROGRESS", "1"}, {"NO_COLOR", "1"}},
		prefetchArgs: func(pkg string) []string {
			return []string{"--from", pkg, "python", "-c", "pass"}
		},
	},
	"bunx": {
		env: []EnvVar{{"NO_COLOR", "1"}},
		prefetchArgs: func(pkg string) []string {
			return []string{"-p", pkg, "bun", "-e", "process.exit(0)"}
		},
	},
}

// executorFor resolves the package executor behind command, which may be a
// bare name or a path such as C:\Program Files\nodejs\npx.cmd.
func executorFor(command string) (executorProfile, bool) {
	base := filepath.Base(strings.ReplaceAll(command, `\`, "/"))
	base = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	p, ok := executorProfiles[base]
	return p, ok
}

// TransportFactory builds a fresh transport for each connect attempt.
type TransportFactory struct {
	clients HTTPClientProvider
	profile string
	logger  *slog.Logger
}

// NewTransportFactory returns a factory using clients for network transports.
func NewTransportFactory(clients HTTPClientProvider, logger *slog.Logger) *TransportFactory {
	if clients == nil {
		clients = defaultClientProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransportFactory{clients: clients, profile: DefaultHTTPProfile, logger: logger}
}

// Build returns the transport described by cfg. Stdio commands must already
// have passed the CommandValidator.
func (f *TransportFactory) Build(name string, cfg ServerConfig) (mcp.Transport, error) {
	switch c := cfg.(type) {
	case *StdioServerConfig:
		return newStdioTransport(f.stdioCommand(name, c)), nil
	case *SSEServerConfig:
		client, err := f.httpClient(name, c.Headers, c.Proxy)
		if err != nil {
			return nil, err
		}
		return &mcp.SSEClientTransport{Endpoint: c.BaseURL, HTTPClient: client}, nil
	case *HTTPServerConfig:
		client, err := f.httpClient(name, c.Headers, c.Proxy)
		if err != nil {
			return nil, err
		}
		return &mcp.StreamableClientTransport{Endpoint: c.BaseURL, HTTPClient: client, MaxRetries: c.MaxRetries}, nil
	case nil:
		return nil, configErrorf("missing configuration for %q", name)
	default:
		return nil, configErrorf("unsupported config %T for %q", cfg, name)
	}
}

// stdioTransport is a CommandTransport that can kill the child it started.
// The SDK cannot abandon a handshake with a child that never answers, so a
// timed-out attempt kills the process group to unblock it.
type stdioTransport struct {
	*mcp.CommandTransport

	mu      sync.Mutex
	started bool
}

func newStdioTransport(cmd *exec.Cmd) *stdioTransport {
	return &stdioTransport{CommandTransport: &mcp.CommandTransport{Command: cmd}}
}

func (t *stdioTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.CommandTransport.Connect(ctx)
	if err == nil {
		t.mu.Lock()
		t.started = true
		t.mu.Unlock()
	}
	return conn, err
}

// kill terminates the child and its process group if it was started.
func (t *stdioTransport) kill() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	return terminateTree(t.Command)
}

func (f *TransportFactory) stdioCommand(name string, cfg *StdioServerConfig) *exec.Cmd {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = stdioEnv(cfg)
	cmd.Stderr = newLineLogger(f.logger, "server stderr", "server", name)
	configureSpawn(cmd)
	f.logger.Debug("built stdio command", "server", name, "command", cfg.Command, "args", cfg.Args, "envs", len(cfg.Env))
	return cmd
}

// stdioEnv layers the configured overrides, then the executor's quiet
// profile, on top of the inherited environment.
func stdioEnv(cfg *StdioServerConfig) []string {
	env := os.Environ()
	for _, kv := range cfg.Env {
		env = append(env, kv.Name+"="+kv.Value)
	}
	if p, ok := executorFor(cfg.Command); ok {
		for _, kv := range p.env {
			env = append(env, kv.Name+"="+kv.Value)
		}
	}
	return env
}

func (f *TransportFactory) httpClient(name string, headers http.Header, proxy ProxySettings) (*http.Client, error) {
	if proxy.Enabled || proxy.URL != "" {
		f.logger.Debug("proxy settings are not applied to transports yet", "server", name)
	}
	base, err := f.clients.Client(f.profile)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "Failed to get HTTP client"), ErrTransport)
	}
	return decorateHTTPClient(base, headers), nil
}

func decorateHTTPClient(base *http.Client, headers http.Header) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if len(headers) == 0 {
		return base
	}
	clone := *base
	clone.Transport = &headerDecorator{
		next:    defaultRoundTripper(base.Transport),
		headers: cloneHeader(headers),
	}
	return &clone
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}

func cloneHeader(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	clone := make(http.Header, len(h))
	for k, values := range h {
		clone[k] = append([]string(nil), values...)
	}
	return clone
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// lineLogger forwards a child's stderr to the structured logger one line at
// a time.
type lineLogger struct {
	logger *slog.Logger
	msg    string
	attrs  []any

	mu  sync.Mutex
	buf bytes.Buffer
}

func newLineLogger(logger *slog.Logger, msg string, attrs ...any) *lineLogger {
	return &lineLogger{logger: logger, msg: msg, attrs: attrs}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Partial line: keep it for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			return len(p), nil
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			l.logger.Log(context.Background(), slog.LevelDebug, l.msg, append(l.attrs, "line", line)...)
		}
	}
}
