package mcpmgr

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging. Method is
// empty for responses; ID is empty for notifications.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerID  string
	Method    string
	ID        string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled. It
// may be called concurrently for reads and writes.
type RPCLogger func(RPCLogEvent)

// EnvVar is a single environment override passed to a stdio server.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// EnvList is an ordered list of environment overrides. On the wire it is
// either an object ({"KEY": "value"}) or a list of {name, value} pairs; both
// forms keep document order.
type EnvList []EnvVar

// UnmarshalJSON decodes an object or a list while preserving key order.
func (e *EnvList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = nil
		return nil
	}
	if trimmed[0] == '[' {
		var list []EnvVar
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return errors.Wrap(err, "decoding env list")
		}
		*e = list
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(err, "decoding env object")
	}
	var out EnvList
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "decoding env key")
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "decoding env value for %q", key)
		}
		out = append(out, EnvVar{Name: key, Value: value})
	}
	*e = out
	return nil
}

// MarshalJSON always emits the object form.
func (e EnvList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping or a sequence; mapping order is preserved.
func (e *EnvList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []EnvVar
		if err := node.Decode(&list); err != nil {
			return errors.Wrap(err, "decoding env list")
		}
		*e = list
	case yaml.MappingNode:
		out := make(EnvList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, EnvVar{Name: node.Content[i].Value, Value: node.Content[i+1].Value})
		}
		*e = out
	default:
		return errors.Newf("env must be a mapping or a list, got %s", node.Tag)
	}
	return nil
}

// Lookup returns the last value set for name.
func (e EnvList) Lookup(name string) (string, bool) {
	for i := len(e) - 1; i >= 0; i-- {
		if e[i].Name == name {
			return e[i].Value, true
		}
	}
	return "", false
}

// RawServerConfig is the caller-facing wire shape of a server configuration.
// Only the fields relevant to Type are read by Decode.
type RawServerConfig struct {
	Type    string            `json:"type" yaml:"type"`
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     EnvList           `json:"env,omitempty" yaml:"env,omitempty"`
	BaseURL string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// MaxRetries bounds reconnects of the streamable HTTP stream. Zero uses
	// the SDK default; negative disables retries.
	MaxRetries int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`

	// UseProxy and ProxyURL are accepted but not yet applied to transports.
	UseProxy bool   `json:"useProxy,omitempty" yaml:"useProxy,omitempty"`
	ProxyURL string `json:"proxyUrl,omitempty" yaml:"proxyUrl,omitempty"`
}

// Decode narrows the wire shape into the transport-specific configuration.
// Missing kind-specific required fields produce an ErrConfig error.
func (r RawServerConfig) Decode() (ServerConfig, error) {
	kind := TransportKind(strings.ToLower(strings.TrimSpace(r.Type)))
	proxy := ProxySettings{Enabled: r.UseProxy, URL: r.ProxyURL}
	var cfg ServerConfig
	switch kind {
	case TransportStdio:
		cfg = &StdioServerConfig{Command: r.Command, Args: r.Args, Env: r.Env}
	case TransportSSE:
		cfg = &SSEServerConfig{BaseURL: r.BaseURL, Headers: headerFromMap(r.Headers), Proxy: proxy}
	case TransportHTTP:
		cfg = &HTTPServerConfig{BaseURL: r.BaseURL, Headers: headerFromMap(r.Headers), Proxy: proxy, MaxRetries: r.MaxRetries}
	default:
		return nil, configErrorf("unsupported transport type: %s", r.Type)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProxySettings is reserved; transports ignore it for now.
type ProxySettings struct {
	Enabled bool
	URL     string
}

// StdioServerConfig describes an MCP server launched as a child process.
type StdioServerConfig struct {
	Command string
	Args    []string
	Env     EnvList
}

func (c *StdioServerConfig) Transport() TransportKind { return TransportStdio }

func (c *StdioServerConfig) validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return configErrorf("command required for stdio")
	}
	return nil
}

// SSEServerConfig describes an MCP server reachable over server-sent events.
type SSEServerConfig struct {
	BaseURL string
	Headers http.Header
	Proxy   ProxySettings
}

func (c *SSEServerConfig) Transport() TransportKind { return TransportSSE }

func (c *SSEServerConfig) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return configErrorf("baseUrl required for sse")
	}
	return nil
}

// HTTPServerConfig describes an MCP server reachable over streamable HTTP.
type HTTPServerConfig struct {
	BaseURL    string
	Headers    http.Header
	Proxy      ProxySettings
	MaxRetries int
}

func (c *HTTPServerConfig) Transport() TransportKind { return TransportHTTP }

func (c *HTTPServerConfig) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return configErrorf("baseUrl required for http")
	}
	return nil
}

// ServerConfig is implemented by all transport-specific configurations.
type ServerConfig interface {
	Transport() TransportKind
	validate() error
}

func headerFromMap(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
