// Package google provides authentication and token management for the
// Google Calendar API.
//
// Three credential paths are supported:
//   - file-based per-account OAuth tokens (for STDIO transport)
//   - OAuth store-backed tokens (for HTTP transport with OAuth authentication)
//   - service-account credentials from GOOGLE_SERVICE_ACCOUNT_JSON (for
//     headless deployments that book on a shared calendar)
//
// The TokenProvider interface allows the different token sources to be
// plugged into the calendar client without it knowing which transport is in
// use.
package google
