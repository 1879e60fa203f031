package mcpmgr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedManager(t *testing.T) *Manager {
	t.Helper()
	mem := newMemoryDialer(t, newFakeServer())
	m := newTestManager(t, Options{Dialer: mem.Dial})
	require.NoError(t, m.Connect(context.Background(), "fake", npxConfig))
	return m
}

func TestProxyListTools(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	tools, err := m.ListTools(context.Background(), "fake")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "echoes text", tools[0].Description)
}

func TestProxyCallTool(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	res, err := m.CallTool(context.Background(), "fake", "echo", map[string]any{"text": "hi"})
	require.NoError(t, err)

	content, ok := res["content"].([]any)
	require.True(t, ok, "content: %#v", res["content"])
	require.Len(t, content, 1)
	first := content[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.Equal(t, "echo: hi", first["text"])
}

func TestProxyCallUnknownToolIsProtocolError(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	_, err := m.CallTool(context.Background(), "fake", "missing", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err), "got %v", err)
}

func TestProxyResources(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	ctx := context.Background()

	list, err := m.ListResources(ctx, "fake")
	require.NoError(t, err)
	resources := list["resources"].([]any)
	require.Len(t, resources, 1)
	assert.Equal(t, "file:///notes.txt", resources[0].(map[string]any)["uri"])

	read, err := m.ReadResource(ctx, "fake", "file:///notes.txt")
	require.NoError(t, err)
	contents := read["contents"].([]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "hello notes", contents[0].(map[string]any)["text"])
}

func TestProxyPrompts(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	ctx := context.Background()

	list, err := m.ListPrompts(ctx, "fake")
	require.NoError(t, err)
	prompts := list["prompts"].([]any)
	require.Len(t, prompts, 1)
	assert.Equal(t, "greet", prompts[0].(map[string]any)["name"])

	got, err := m.GetPrompt(ctx, "fake", "greet", map[string]any{"who": "ada", "times": 3})
	require.NoError(t, err)
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello ada x3", msg["content"].(map[string]any)["text"])
}

func TestProxyUnknownServer(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, Options{})
	ctx := context.Background()

	calls := map[string]func() error{
		"ListTools": func() error { _, err := m.ListTools(ctx, "unknown-server"); return err },
		"CallTool": func() error {
			_, err := m.CallTool(ctx, "unknown-server", "echo", nil)
			return err
		},
		"ListResources": func() error { _, err := m.ListResources(ctx, "unknown-server"); return err },
		"ReadResource": func() error {
			_, err := m.ReadResource(ctx, "unknown-server", "file:///x")
			return err
		},
		"ListPrompts": func() error { _, err := m.ListPrompts(ctx, "unknown-server"); return err },
		"GetPrompt": func() error {
			_, err := m.GetPrompt(ctx, "unknown-server", "greet", nil)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, "Server not found", err.Error())
			assert.True(t, errors.Is(err, ErrServerNotFound))
			assert.Equal(t, KindRegistry, KindOf(err))
		})
	}
}

func TestProxyAfterDisconnect(t *testing.T) {
	t.Parallel()

	m := connectedManager(t)
	require.NoError(t, m.Disconnect(context.Background(), "fake"))
	_, err := m.ListTools(context.Background(), "fake")
	assert.True(t, errors.Is(err, ErrServerNotFound))
}

func TestStringifyArgs(t *testing.T) {
	t.Parallel()

	out, err := stringifyArgs(map[string]any{"s": "plain", "n": 3, "b": true, "o": map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s": "plain", "n": "3", "b": "true", "o": `{"k":"v"}`}, out)

	out, err = stringifyArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = stringifyArgs(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
