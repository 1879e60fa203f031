package mcpmgr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SlogRPCLogger returns an RPCLogger that writes each message at debug level.
func SlogRPCLogger(logger *slog.Logger) RPCLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev RPCLogEvent) {
		attrs := []slog.Attr{
			slog.String("server", ev.ServerID),
			slog.String("direction", string(ev.Direction)),
		}
		if ev.Method != "" {
			attrs = append(attrs, slog.String("method", ev.Method))
		}
		if ev.ID != "" {
			attrs = append(attrs, slog.String("id", ev.ID))
		}
		attrs = append(attrs, slog.String("message", string(ev.Message)))
		logger.LogAttrs(context.Background(), slog.LevelDebug, "jsonrpc", attrs...)
	}
}

// tracedTransport reports every message crossing the connections it opens.
type tracedTransport struct {
	server string
	inner  mcp.Transport
	trace  RPCLogger
}

func (t *tracedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &tracedConnection{Connection: conn, server: t.server, trace: t.trace}, nil
}

type tracedConnection struct {
	mcp.Connection
	server string
	trace  RPCLogger
}

func (c *tracedConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.Connection.Read(ctx)
	if err == nil {
		c.trace(rpcEvent(c.server, RPCDirectionReceive, msg))
	}
	return msg, err
}

func (c *tracedConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.Connection.Write(ctx, msg); err != nil {
		return err
	}
	c.trace(rpcEvent(c.server, RPCDirectionSend, msg))
	return nil
}

// rpcEvent describes msg. An encoding failure is reported in place of the
// message body.
func rpcEvent(server string, direction RPCDirection, msg jsonrpc.Message) RPCLogEvent {
	ev := RPCLogEvent{Direction: direction, ServerID: server}
	var id jsonrpc.ID
	switch m := msg.(type) {
	case *jsonrpc.Request:
		ev.Method = m.Method
		id = m.ID
	case *jsonrpc.Response:
		id = m.ID
	}
	if id.IsValid() {
		ev.ID = fmt.Sprint(id.Raw())
	}
	encoded, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	ev.Message = encoded
	return ev
}
