// Package serverrun boots the frontier server: it builds the process
// logger, opens the runtime, and serves the HTTP API until the context is
// cancelled.
package serverrun
