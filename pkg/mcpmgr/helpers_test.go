package mcpmgr

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"

	"github.com/lxfight/chatless/internal/logging"
)

type echoArgs struct {
	Text string `json:"text"`
}

// newFakeServer returns an MCP server with one tool, one resource and one
// prompt.
func newFakeServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "fake-server", Version: "0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "echo", Description: "echoes text"}, func(_ context.Context, _ *mcp.CallToolRequest, in echoArgs) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "echo: " + in.Text}},
		}, nil, nil
	})
	server.AddResource(&mcp.Resource{URI: "file:///notes.txt", Name: "notes", MIMEType: "text/plain"}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: "text/plain", Text: "hello notes"}},
		}, nil
	})
	server.AddPrompt(&mcp.Prompt{
		Name:      "greet",
		Arguments: []*mcp.PromptArgument{{Name: "who"}, {Name: "times"}},
	}, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: "hello " + req.Params.Arguments["who"] + " x" + req.Params.Arguments["times"]},
			}},
		}, nil
	})
	return server
}

// memoryDialer ignores the built transport and connects to server over
// in-memory transports. It counts dials.
type memoryDialer struct {
	t      *testing.T
	server *mcp.Server
	calls  atomic.Int32

	mu       sync.Mutex
	sessions []*mcp.ServerSession
}

func newMemoryDialer(t *testing.T, server *mcp.Server) *memoryDialer {
	return &memoryDialer{t: t, server: server}
}

func (d *memoryDialer) Dial(ctx context.Context, _ string, _ mcp.Transport) (*mcp.ClientSession, error) {
	d.calls.Add(1)
	st, ct := mcp.NewInMemoryTransports()
	ss, err := d.server.Connect(ctx, st, nil)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.sessions = append(d.sessions, ss)
	d.mu.Unlock()
	d.t.Cleanup(func() { _ = ss.Close() })
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	return client.Connect(ctx, ct, nil)
}

func (d *memoryDialer) serverSessions() []*mcp.ServerSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*mcp.ServerSession(nil), d.sessions...)
}

type fakeProbe struct {
	ok     bool
	report HealthReport
}

func (p fakeProbe) CanRunRequiredTools() bool      { return p.ok }
func (p fakeProbe) ToolHealthReport() HealthReport { return p.report }

// newTestManager returns a manager with a passing probe, an in-memory
// filesystem and short timeouts. opts may override any of them.
func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.ForTest(t)
	}
	if opts.Probe == nil {
		opts.Probe = fakeProbe{ok: true}
	}
	if opts.Validator == nil {
		opts.Validator = NewCommandValidator(afero.NewMemMapFs())
	}
	if opts.Prefetch == nil {
		opts.Prefetch = func(context.Context, string, []string, []string) error {
			t.Errorf("unexpected prefetch")
			return nil
		}
	}
	m := NewManager(&opts)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func envContains(env []string, key, value string) bool {
	target := key + "=" + value
	for _, item := range env {
		if item == target {
			return true
		}
	}
	return false
}
