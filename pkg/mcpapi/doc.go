// Package mcpapi exposes an mcpmgr.Manager over HTTP so a desktop webview or
// any local client can connect servers and proxy MCP requests with plain JSON.
//
// Routes:
//
//	GET    /servers
//	POST   /servers/{name}/connect          body: mcpmgr.RawServerConfig
//	DELETE /servers/{name}
//	GET    /servers/{name}/tools
//	POST   /servers/{name}/tools/{tool}     body: arguments object
//	GET    /servers/{name}/resources
//	POST   /servers/{name}/resources/read   body: {"uri": "..."}
//	GET    /servers/{name}/prompts
//	POST   /servers/{name}/prompts/{prompt} body: arguments object
//
// Failures render as {"error": "..."} with a status derived from the error
// kind.
package mcpapi
