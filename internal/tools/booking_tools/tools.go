package booking_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/google"
	"github.com/slotbot/slotbot/internal/scheduling"
	"github.com/slotbot/slotbot/internal/server"
)

// RegisterBookingTools registers all availability and event tools with the
// MCP server. Write tools (create, reschedule, cancel) are skipped in
// read-only mode.
func RegisterBookingTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterAvailabilityTools(s, sc); err != nil {
		return fmt.Errorf("failed to register availability tools: %w", err)
	}
	if err := RegisterEventTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	return nil
}

// getCalendarClient retrieves or creates a calendar client for the specified account
func getCalendarClient(ctx context.Context, account string, sc *server.ServerContext) (*calendar.Client, error) {
	client := sc.CalendarClientForAccount(account)
	if client == nil {
		// Check if token exists before trying to create client
		if !sc.HasTokenForAccount(account) {
			authURL := google.GetAuthURLForAccount(account)
			return nil, fmt.Errorf(`Google OAuth token not found for account "%s". To authorize access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant access to Google Calendar
3. Copy the authorization code and provide it to your MCP client

Note: You only need to authorize once. The tokens will be automatically refreshed.`, account, authURL)
		}

		var err error
		client, err = calendar.NewClientForAccountWithProvider(ctx, account, sc.TokenProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
		}
		sc.SetCalendarClientForAccount(account, client)
	}
	return client, nil
}

// getPlanner retrieves the booking planner for the specified account,
// creating the underlying calendar client first if needed.
func getPlanner(ctx context.Context, account string, sc *server.ServerContext) (*booking.Planner, error) {
	if _, err := getCalendarClient(ctx, account, sc); err != nil {
		return nil, err
	}
	return sc.PlannerForAccount(account)
}

// parseTimeArg parses a required RFC3339 time argument.
func parseTimeArg(args map[string]interface{}, key string) (time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %v", key, err)
	}
	return t, nil
}

// parseOptionalTimeArg parses an optional RFC3339 time argument. Returns nil
// when the argument is absent or empty.
func parseOptionalTimeArg(args map[string]interface{}, key string) (*time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %v", key, err)
	}
	return &t, nil
}

// parseDurationMinutes parses the durationMinutes argument.
func parseDurationMinutes(args map[string]interface{}) (time.Duration, error) {
	minutes, ok := args["durationMinutes"].(float64)
	if !ok || minutes <= 0 {
		return 0, fmt.Errorf("durationMinutes is required and must be positive")
	}
	return time.Duration(minutes) * time.Minute, nil
}

// parseCalendarsArg splits the optional comma-separated calendars argument.
func parseCalendarsArg(args map[string]interface{}) []string {
	raw, ok := args["calendars"].(string)
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	calendars := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			calendars = append(calendars, p)
		}
	}
	return calendars
}

// formatProposals renders ranked slot proposals for tool output.
func formatProposals(proposals []scheduling.Proposal) string {
	var b strings.Builder
	for _, p := range proposals {
		fmt.Fprintf(&b, "%d. %s to %s (%s)\n",
			p.Rank+1,
			p.Slot.Start.Format("Mon, Jan 2 at 15:04"),
			p.Slot.End.Format("15:04 MST"),
			p.Slot.Duration())
	}
	return b.String()
}
