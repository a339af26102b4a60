// Package resources provides MCP resources for exposing user and calendar
// data. Resources are read-only data sources that MCP clients can fetch,
// such as the authenticated account and the calendars it can book on.
package resources
