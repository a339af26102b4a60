// Package server provides the MCP server runtime for slotbot.
//
// ServerContext carries per-account Google Calendar clients, the scheduling
// planner configuration, and instrumentation handles shared by all tool
// handlers. Clients are created lazily on first use so the server can start
// before any account has authenticated.
//
// Token resolution depends on the transport:
//
//   - STDIO: FileTokenProvider reads tokens from the user cache directory
//   - Streamable HTTP: the OAuth token provider reads tokens acquired through
//     the OAuth 2.1 proxy flow
//
// OAuthHTTPServer wraps the MCP streamable HTTP endpoint with OAuth token
// validation, discovery metadata, health probes, and request metrics.
// MetricsServer exposes Prometheus metrics on a dedicated port.
package server
