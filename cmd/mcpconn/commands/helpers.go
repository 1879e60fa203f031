package commands

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

const shutdownTimeout = 10 * time.Second

// withServer connects the named server from the servers file, runs fn and
// shuts the manager down.
func (e *env) withServer(ctx context.Context, name string, fn func(*mcpmgr.Manager) error) (err error) {
	servers, err := e.loadServers()
	if err != nil {
		return err
	}
	raw, err := servers.Lookup(name)
	if err != nil {
		return err
	}
	m := e.newManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := m.Shutdown(shutdownCtx); serr != nil {
			e.logger.Warn("shutdown", "error", serr)
		}
	}()
	if err := m.ConnectRaw(ctx, name, raw); err != nil {
		return errors.Wrapf(err, "connecting %s", name)
	}
	return fn(m)
}

// parseArgs decodes the --args JSON object. Empty means no arguments.
func parseArgs(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, errors.Wrap(err, "--args must be a JSON object")
	}
	return args, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
