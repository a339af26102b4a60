// Package oauth provides adapters for integrating the github.com/giantswarm/mcp-oauth
// library with the slotbot MCP server.
//
// The library implements the full OAuth 2.1 authorization server (proxying to Google)
// and resource server (Bearer token validation). This package wraps it with:
//
//   - Config translation from slotbot server settings to library configuration
//   - A TokenProvider bridge so Google API clients can read tokens from the
//     library's storage.TokenStore
//   - Context helpers to retrieve the authenticated user inside MCP tool handlers
//
// All direct contact with the library is confined to handler.go; the rest of the
// codebase depends only on the types defined here.
package oauth
