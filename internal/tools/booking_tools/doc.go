// Package booking_tools provides MCP (Model Context Protocol) tools for
// calendar availability checks and event booking.
//
// The availability tools answer whether a candidate slot is open, propose
// ranked alternative slots, and report merged busy schedules across one or
// more Google calendars. The event tools create, list, reschedule, and cancel
// calendar events; write operations are only registered when the server runs
// with --yolo.
//
// All tools support multi-account authentication: OAuth-authenticated HTTP
// clients operate on their own calendar, stdio clients select an account with
// the "account" argument.
package booking_tools
