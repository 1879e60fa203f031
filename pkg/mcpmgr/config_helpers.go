package mcpmgr

// Lightweight helpers for narrowing and inspecting ServerConfig values without
// forcing consumers to use a type switch at every call site.

// TransportKind identifies the transport family used by a ServerConfig.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportSSE   TransportKind = "sse"
	TransportHTTP  TransportKind = "http"
)

// TransportOf returns the transport kind for a ServerConfig.
// Returns an empty string when the value is nil.
func TransportOf(cfg ServerConfig) TransportKind {
	if cfg == nil {
		return ""
	}
	return cfg.Transport()
}

// AsStdio narrows cfg to *StdioServerConfig, returning (nil, false) when it
// does not match.
func AsStdio(cfg ServerConfig) (*StdioServerConfig, bool) {
	c, ok := cfg.(*StdioServerConfig)
	return c, ok
}

// AsSSE narrows cfg to *SSEServerConfig.
func AsSSE(cfg ServerConfig) (*SSEServerConfig, bool) {
	c, ok := cfg.(*SSEServerConfig)
	return c, ok
}

// AsHTTP narrows cfg to *HTTPServerConfig.
func AsHTTP(cfg ServerConfig) (*HTTPServerConfig, bool) {
	c, ok := cfg.(*HTTPServerConfig)
	return c, ok
}

// Encode converts a typed configuration back to its wire shape.
func Encode(cfg ServerConfig) RawServerConfig {
	switch c := cfg.(type) {
	case *StdioServerConfig:
		return RawServerConfig{Type: string(TransportStdio), Command: c.Command, Args: c.Args, Env: c.Env}
	case *SSEServerConfig:
		return RawServerConfig{Type: string(TransportSSE), BaseURL: c.BaseURL, Headers: flattenHeader(c.Headers), UseProxy: c.Proxy.Enabled, ProxyURL: c.Proxy.URL}
	case *HTTPServerConfig:
		return RawServerConfig{Type: string(TransportHTTP), BaseURL: c.BaseURL, Headers: flattenHeader(c.Headers), MaxRetries: c.MaxRetries, UseProxy: c.Proxy.Enabled, ProxyURL: c.Proxy.URL}
	default:
		return RawServerConfig{}
	}
}
