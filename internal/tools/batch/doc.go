// Package batch provides common utilities for batch operations in MCP tools,
// such as cancelling several calendar events in one call.
//
// This package includes helpers for:
//   - Parsing parameters that accept both single values and arrays
//   - Formatting batch results in a consistent structure
//   - Handling partial failures in batch operations
package batch
