package mcpmgr

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRawServerConfigDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     RawServerConfig
		want    ServerConfig
		wantErr string
	}{
		{
			name: "stdio",
			raw:  RawServerConfig{Type: "stdio", Command: "npx", Args: []string{"-y", "left-pad"}, Env: EnvList{{"A", "1"}}},
			want: &StdioServerConfig{Command: "npx", Args: []string{"-y", "left-pad"}, Env: EnvList{{"A", "1"}}},
		},
		{
			name: "type is case and space insensitive",
			raw:  RawServerConfig{Type: " SSE ", BaseURL: "http://localhost:8080/sse"},
			want: &SSEServerConfig{BaseURL: "http://localhost:8080/sse"},
		},
		{
			name: "http with headers and reserved proxy",
			raw: RawServerConfig{
				Type:     "http",
				BaseURL:  "https://example.com/mcp",
				Headers:  map[string]string{"x-api-key": "k"},
				UseProxy: true,
				ProxyURL: "http://proxy:3128",
			},
			want: &HTTPServerConfig{
				BaseURL: "https://example.com/mcp",
				Headers: http.Header{"X-Api-Key": []string{"k"}},
				Proxy:   ProxySettings{Enabled: true, URL: "http://proxy:3128"},
			},
		},
		{
			name: "http with maxRetries",
			raw:  RawServerConfig{Type: "http", BaseURL: "https://example.com/mcp", MaxRetries: -1},
			want: &HTTPServerConfig{BaseURL: "https://example.com/mcp", MaxRetries: -1},
		},
		{
			name: "stdio ignores network fields",
			raw:  RawServerConfig{Type: "stdio", Command: "uvx", BaseURL: "http://ignored"},
			want: &StdioServerConfig{Command: "uvx"},
		},
		{name: "stdio without command", raw: RawServerConfig{Type: "stdio"}, wantErr: "command required for stdio"},
		{name: "sse without baseUrl", raw: RawServerConfig{Type: "sse", Command: "npx"}, wantErr: "baseUrl required for sse"},
		{name: "http without baseUrl", raw: RawServerConfig{Type: "http"}, wantErr: "baseUrl required for http"},
		{name: "unknown type", raw: RawServerConfig{Type: "websocket"}, wantErr: "unsupported transport type: websocket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.raw.Decode()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, errors.Is(err, ErrConfig))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvListJSONPreservesOrder(t *testing.T) {
	t.Parallel()

	var raw RawServerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"type":"stdio","command":"npx","env":{"Z":"1","A":"2","M":"3"}}`), &raw))
	assert.Equal(t, EnvList{{"Z", "1"}, {"A", "2"}, {"M", "3"}}, raw.Env)

	out, err := json.Marshal(raw.Env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Z":"1","A":"2","M":"3"}`, string(out))
	assert.Equal(t, `{"Z":"1","A":"2","M":"3"}`, string(out))
}

func TestEnvListJSONListForm(t *testing.T) {
	t.Parallel()

	var env EnvList
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"B","value":"x"},{"name":"A","value":"y"}]`), &env))
	assert.Equal(t, EnvList{{"B", "x"}, {"A", "y"}}, env)

	require.NoError(t, json.Unmarshal([]byte(`null`), &env))
	assert.Nil(t, env)

	assert.Error(t, json.Unmarshal([]byte(`{"A":1}`), &env))
}

func TestEnvListYAML(t *testing.T) {
	t.Parallel()

	var raw RawServerConfig
	doc := `
type: stdio
command: uvx
env:
  UV_INDEX: https://pypi.org/simple
  DEBUG: "1"
`
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	assert.Equal(t, EnvList{{"UV_INDEX", "https://pypi.org/simple"}, {"DEBUG", "1"}}, raw.Env)

	var list EnvList
	require.NoError(t, yaml.Unmarshal([]byte("- name: A\n  value: b\n"), &list))
	assert.Equal(t, EnvList{{"A", "b"}}, list)

	assert.Error(t, yaml.Unmarshal([]byte(`"scalar"`), &list))
}

func TestEnvListLookupLastWins(t *testing.T) {
	t.Parallel()

	env := EnvList{{"A", "1"}, {"B", "2"}, {"A", "3"}}
	v, ok := env.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = env.Lookup("C")
	assert.False(t, ok)
}

func TestConfigHelpers(t *testing.T) {
	t.Parallel()

	stdio := &StdioServerConfig{Command: "npx"}
	sse := &SSEServerConfig{BaseURL: "http://localhost/sse"}
	streamable := &HTTPServerConfig{BaseURL: "http://localhost/mcp"}

	assert.Equal(t, TransportStdio, TransportOf(stdio))
	assert.Equal(t, TransportSSE, TransportOf(sse))
	assert.Equal(t, TransportHTTP, TransportOf(streamable))
	assert.Equal(t, TransportKind(""), TransportOf(nil))

	_, ok := AsStdio(stdio)
	assert.True(t, ok)
	_, ok = AsStdio(sse)
	assert.False(t, ok)
	_, ok = AsSSE(sse)
	assert.True(t, ok)
	_, ok = AsHTTP(streamable)
	assert.True(t, ok)
	_, ok = AsHTTP(stdio)
	assert.False(t, ok)
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	raws := []RawServerConfig{
		{Type: "stdio", Command: "npx", Args: []string{"-y", "pkg"}, Env: EnvList{{"K", "V"}}},
		{Type: "sse", BaseURL: "http://localhost/sse", Headers: map[string]string{"Authorization": "Bearer t"}},
		{Type: "http", BaseURL: "http://localhost/mcp", MaxRetries: 3, UseProxy: true, ProxyURL: "http://p"},
	}
	for _, raw := range raws {
		cfg, err := raw.Decode()
		require.NoError(t, err)
		if diff := cmp.Diff(raw, Encode(cfg)); diff != "" {
			t.Errorf("Encode(Decode(%s)) mismatch (-want +got):\n%s", raw.Type, diff)
		}
	}
	assert.Equal(t, RawServerConfig{}, Encode(nil))
}

func TestRawServerConfigMaxRetriesWire(t *testing.T) {
	t.Parallel()

	var raw RawServerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"type":"http","baseUrl":"http://localhost/mcp","maxRetries":7}`), &raw))
	cfg, err := raw.Decode()
	require.NoError(t, err)
	httpCfg, ok := AsHTTP(cfg)
	require.True(t, ok)
	assert.Equal(t, 7, httpCfg.MaxRetries)

	transport, err := NewTransportFactory(nil, nil).Build("x", cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, transport.(*mcp.StreamableClientTransport).MaxRetries)
}
