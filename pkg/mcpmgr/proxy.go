package mcpmgr

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Value is a protocol result decoded into generic JSON form.
type Value map[string]any

func toValue(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "encoding result"), ErrProtocol)
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding result"), ErrProtocol)
	}
	return out, nil
}

func (m *Manager) session(name string) (*mcp.ClientSession, error) {
	conn, ok := m.registry.Get(name)
	if !ok {
		return nil, serverNotFound(name)
	}
	return conn.session, nil
}

func (m *Manager) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.options.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.options.RequestTimeout)
}

// ListTools returns every tool the server advertises, following pagination.
func (m *Manager) ListTools(ctx context.Context, server string) ([]*mcp.Tool, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	tools := []*mcp.Tool{}
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, rpcError(err, "tools/list")
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// CallTool invokes tool with args. A tool-level failure (IsError) is part of
// the returned value, not an error.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]any) (Value, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	params := &mcp.CallToolParams{Name: tool}
	if args != nil {
		params.Arguments = args
	}
	res, err := session.CallTool(ctx, params)
	if err != nil {
		return nil, rpcError(err, "tools/call")
	}
	return toValue(res)
}

// ListResources returns the server's resources with all pages merged.
func (m *Manager) ListResources(ctx context.Context, server string) (Value, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	all := &mcp.ListResourcesResult{Resources: []*mcp.Resource{}}
	params := &mcp.ListResourcesParams{}
	for {
		res, err := session.ListResources(ctx, params)
		if err != nil {
			return nil, rpcError(err, "resources/list")
		}
		all.Resources = append(all.Resources, res.Resources...)
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListResourcesParams{Cursor: res.NextCursor}
	}
	return toValue(all)
}

// ReadResource fetches the contents of uri.
func (m *Manager) ReadResource(ctx context.Context, server, uri string) (Value, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, rpcError(err, "resources/read")
	}
	return toValue(res)
}

// ListPrompts returns the server's prompts with all pages merged.
func (m *Manager) ListPrompts(ctx context.Context, server string) (Value, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	all := &mcp.ListPromptsResult{Prompts: []*mcp.Prompt{}}
	params := &mcp.ListPromptsParams{}
	for {
		res, err := session.ListPrompts(ctx, params)
		if err != nil {
			return nil, rpcError(err, "prompts/list")
		}
		all.Prompts = append(all.Prompts, res.Prompts...)
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListPromptsParams{Cursor: res.NextCursor}
	}
	return toValue(all)
}

// GetPrompt renders prompt name. Prompt arguments are strings on the wire;
// other values are sent JSON-encoded.
func (m *Manager) GetPrompt(ctx context.Context, server, name string, args map[string]any) (Value, error) {
	session, err := m.session(server)
	if err != nil {
		return nil, err
	}
	promptArgs, err := stringifyArgs(args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.requestContext(ctx)
	defer cancel()
	res, err := session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: promptArgs})
	if err != nil {
		return nil, rpcError(err, "prompts/get")
	}
	return toValue(res)
}

func stringifyArgs(args map[string]any) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "encoding prompt argument %q", k), ErrProtocol)
		}
		out[k] = string(data)
	}
	return out, nil
}
