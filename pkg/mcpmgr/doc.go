// Package mcpmgr manages named connections to Model Context Protocol (MCP)
// servers reachable over a spawned stdio child, an SSE stream, or streamable
// HTTP, and proxies tool, resource and prompt RPCs to them.
//
// # Core entry points
//
//   - Manager owns the connections of one process. Construct it with
//     NewManager, then Connect / Disconnect by name and Shutdown when done.
//   - ServerConfig (StdioServerConfig, SSEServerConfig, HTTPServerConfig)
//     declares how a server is launched or reached. RawServerConfig is the
//     JSON/YAML wire shape; Decode narrows it.
//   - CommandValidator vets stdio commands before anything is spawned: only
//     npx, uvx, bunx, explicit paths and `cmd /c` are allowed, arguments are
//     bounded and free of shell metacharacters, and path arguments must exist.
//
// Stdio servers started through a package executor are retried once after a
// prefetch that installs the package, since a cold install regularly
// outlasts the first connect attempt.
//
// Every error is marked with one of ErrConfig, ErrSecurity, ErrEnvironment,
// ErrTransport, ErrTimeout, ErrProtocol or ErrServerNotFound; use errors.Is
// or KindOf to branch on it.
package mcpmgr
