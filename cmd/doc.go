// Package cmd implements the command-line interface for slotbot.
//
// This package provides the following commands:
//   - chat: Interactive terminal conversation with the booking assistant
//   - serve: Start the MCP server to provide booking tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The chat command is the default command when no subcommand is specified.
package cmd
