package mcpmgr

import (
	"context"
	"io"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

// Error kinds. Every error returned by the manager is marked with exactly one
// of these so callers can branch with errors.Is.
var (
	ErrConfig         = errors.New("config error")
	ErrSecurity       = errors.New("security error")
	ErrEnvironment    = errors.New("environment error")
	ErrTransport      = errors.New("transport error")
	ErrTimeout        = errors.New("timeout error")
	ErrProtocol       = errors.New("protocol error")
	ErrServerNotFound = errors.New("Server not found")
)

// ErrConnectCancelled is returned by Connect when the name was disconnected
// while the connection attempt was still in flight.
var ErrConnectCancelled = errors.New("connect cancelled by disconnect")

// Kind names the category of a manager error.
type Kind string

const (
	KindConfig      Kind = "config"
	KindSecurity    Kind = "security"
	KindEnvironment Kind = "environment"
	KindTransport   Kind = "transport"
	KindTimeout     Kind = "timeout"
	KindProtocol    Kind = "protocol"
	KindRegistry    Kind = "registry"
	KindUnknown     Kind = "unknown"
)

var kindMarks = []struct {
	mark error
	kind Kind
}{
	{ErrConfig, KindConfig},
	{ErrSecurity, KindSecurity},
	{ErrEnvironment, KindEnvironment},
	{ErrTimeout, KindTimeout},
	{ErrProtocol, KindProtocol},
	{ErrTransport, KindTransport},
	{ErrServerNotFound, KindRegistry},
}

// KindOf reports the kind an error was marked with, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, km := range kindMarks {
		if errors.Is(err, km.mark) {
			return km.kind
		}
	}
	return KindUnknown
}

// kindMark returns the kind sentinel err carries, defaulting to ErrTransport.
func kindMark(err error) error {
	for _, km := range kindMarks {
		if errors.Is(err, km.mark) {
			return km.mark
		}
	}
	return ErrTransport
}

func markf(kind error, format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

func configErrorf(format string, args ...any) error {
	return markf(ErrConfig, format, args...)
}

func serverNotFound(name string) error {
	return errors.WithDetailf(ErrServerNotFound, "server %q", name)
}

// rpcError tags a failure returned by the SDK session. A broken channel is a
// transport error; everything else the server answered with is a protocol
// error.
func rpcError(err error, op string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, op)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(wrapped, ErrTimeout)
	case isBrokenChannel(err):
		return errors.Mark(wrapped, ErrTransport)
	default:
		return errors.Mark(wrapped, ErrProtocol)
	}
}

func isBrokenChannel(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "connection closed") ||
		strings.Contains(lower, "client is closing") ||
		strings.Contains(lower, "broken pipe")
}
