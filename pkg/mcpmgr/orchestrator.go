package mcpmgr

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	DefaultAttemptTimeout  = 30 * time.Second
	DefaultPrefetchTimeout = 240 * time.Second
)

// Dialer opens a protocol session over a freshly built transport.
type Dialer func(ctx context.Context, name string, transport mcp.Transport) (*mcp.ClientSession, error)

// PrefetchRunner runs a package executor so that it installs its package and
// exits without starting the server. env is the complete child environment.
type PrefetchRunner func(ctx context.Context, command string, args, env []string) error

type connectState int

const (
	stateAttempting1 connectState = iota
	stateFailed1
	statePrefetching
	stateAttempting2
	stateConnected
	stateFailed
)

func (s connectState) String() string {
	switch s {
	case stateAttempting1:
		return "attempting1"
	case stateFailed1:
		return "failed1"
	case statePrefetching:
		return "prefetching"
	case stateAttempting2:
		return "attempting2"
	case stateConnected:
		return "connected"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// attemptRecord is the retry state of a single connect.
type attemptRecord struct {
	first      error
	pkg        string
	prefetched bool
}

type orchestrator struct {
	factory         *TransportFactory
	dial            Dialer
	prefetch        PrefetchRunner
	attemptTimeout  time.Duration
	prefetchTimeout time.Duration
	logger          *slog.Logger
}

// connect drives one connect from the first attempt to a session or a
// terminal failure. Package-executor stdio servers get one prefetch and one
// retry after a failed first attempt.
func (o *orchestrator) connect(ctx context.Context, name string, cfg ServerConfig) (*mcp.ClientSession, error) {
	var (
		rec     attemptRecord
		session *mcp.ClientSession
		err     error
		profile executorProfile
		stdio   *StdioServerConfig
	)
	state := stateAttempting1
	for {
		o.logger.Debug("connect state", "server", name, "state", state.String())
		switch state {
		case stateAttempting1:
			session, err = o.attempt(ctx, name, cfg, false)
			if err == nil {
				state = stateConnected
				continue
			}
			rec.first = err
			state = stateFailed1

		case stateFailed1:
			var ok bool
			if stdio, ok = AsStdio(cfg); !ok {
				return nil, rec.first
			}
			if profile, ok = executorFor(stdio.Command); !ok {
				o.logger.Warn("connect failed and command is not a package executor", "server", name, "error", rec.first)
				return nil, rec.first
			}
			if rec.pkg, ok = PackageName(stdio.Args); !ok {
				o.logger.Warn("connect failed and no package could be extracted", "server", name, "error", rec.first)
				return nil, rec.first
			}
			if ctx.Err() != nil {
				return nil, rec.first
			}
			state = statePrefetching

		case statePrefetching:
			o.logger.Info("first connect failed, prefetching package", "server", name, "package", rec.pkg, "error", rec.first)
			rec.prefetched = true
			if perr := o.runPrefetch(ctx, stdio, profile, rec.pkg); perr != nil {
				o.logger.Error("prefetch failed", "server", name, "package", rec.pkg, "error", perr)
				return nil, errors.Mark(errors.Newf("%s; prefetch: %s", rec.first.Error(), perr.Error()), kindMark(rec.first))
			}
			state = stateAttempting2

		case stateAttempting2:
			session, err = o.attempt(ctx, name, cfg, true)
			if err != nil {
				state = stateFailed
				continue
			}
			state = stateConnected

		case stateConnected:
			return session, nil

		case stateFailed:
			return nil, err
		}
	}
}

type dialResult struct {
	session *mcp.ClientSession
	err     error
}

// attempt builds a transport and dials it under the per-attempt timeout. The
// dial runs in its own goroutine so that the deadline holds even when the SDK
// blocks tearing down a handshake with a silent child.
func (o *orchestrator) attempt(ctx context.Context, name string, cfg ServerConfig, retry bool) (*mcp.ClientSession, error) {
	transport, err := o.factory.Build(name, cfg)
	if err != nil {
		return nil, err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	done := make(chan dialResult, 1)
	go func() {
		session, err := o.dial(attemptCtx, name, transport)
		done <- dialResult{session, err}
	}()

	var res dialResult
	select {
	case res = <-done:
		if res.err == nil {
			return res.session, nil
		}
		o.killChild(name, transport)
	case <-attemptCtx.Done():
		o.killChild(name, transport)
		go o.discard(name, done)
		res.err = attemptCtx.Err()
	}

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, markf(ErrTimeout, "%s", timeoutMessage(cfg.Transport(), retry))
	}
	if KindOf(res.err) != KindUnknown {
		return nil, res.err
	}
	return nil, errors.Mark(errors.Wrapf(res.err, "connect %s", cfg.Transport()), ErrTransport)
}

// killChild terminates the process behind a failed stdio attempt.
func (o *orchestrator) killChild(name string, transport mcp.Transport) {
	st, ok := transport.(*stdioTransport)
	if !ok {
		return
	}
	if err := st.kill(); err != nil {
		o.logger.Debug("killing abandoned child", "server", name, "error", err)
	}
}

// discard waits for an abandoned dial and closes a session that arrived too
// late.
func (o *orchestrator) discard(name string, done <-chan dialResult) {
	res := <-done
	if res.session == nil {
		return
	}
	if err := res.session.Close(); err != nil {
		o.logger.Debug("closing late session", "server", name, "error", err)
	}
}

func timeoutMessage(kind TransportKind, retry bool) string {
	if retry {
		return "connect timeout (" + string(kind) + ", after prefetch)"
	}
	return "connect timeout (" + string(kind) + ")"
}

func (o *orchestrator) runPrefetch(ctx context.Context, cfg *StdioServerConfig, profile executorProfile, pkg string) error {
	executor := filepath.Base(cfg.Command)
	pctx, cancel := context.WithTimeout(ctx, o.prefetchTimeout)
	defer cancel()
	err := o.prefetch(pctx, cfg.Command, profile.prefetchArgs(pkg), stdioEnv(cfg))
	if err == nil {
		return nil
	}
	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		return markf(ErrTimeout, "%s prefetch timeout", executor)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return markf(ErrEnvironment, "%s prefetch failed with code %d", executor, exitErr.ExitCode())
	}
	return errors.Mark(errors.Wrapf(err, "%s prefetch", executor), ErrEnvironment)
}

// execPrefetch is the default PrefetchRunner. The child's process tree is
// killed when ctx ends.
func execPrefetch(logger *slog.Logger) PrefetchRunner {
	return func(ctx context.Context, command string, args, env []string) error {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		out := newLineLogger(logger, "prefetch output", "command", command)
		cmd.Stdout = out
		cmd.Stderr = out
		configureSpawn(cmd)
		cmd.Cancel = func() error { return terminateTree(cmd) }
		cmd.WaitDelay = 5 * time.Second
		return cmd.Run()
	}
}
