package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/slotbot/slotbot/internal/mcp/oauth"
	"github.com/slotbot/slotbot/internal/server"
)

// RegisterUserResources registers session-specific user resources.
// These resources provide information about the current authenticated user
// and the calendars available for booking.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Register user profile resource
	profileResource := mcp.NewResource(
		"user://profile",
		"Current User Profile",
		mcp.WithResourceDescription("Information about the currently authenticated Google account"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	// Register calendar list resource
	calendarsResource := mcp.NewResource(
		"calendar://list",
		"Available Calendars",
		mcp.WithResourceDescription("Calendars the current user can query and book on"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(calendarsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCalendarList(ctx, request, sc)
	})

	return nil
}

// extractAccountFromContext extracts the user's email from OAuth context.
// Falls back to "default" for STDIO transport or if no OAuth context is
// available.
func extractAccountFromContext(ctx context.Context) string {
	if user, ok := oauth.GetUserFromContext(ctx); ok {
		return user.Email
	}
	return "default"
}

// handleUserProfile returns information about the current user's account
func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, fmt.Errorf("no Calendar client available for account: %s", account)
	}

	primary, err := client.GetPrimaryCalendar()
	if err != nil {
		return nil, fmt.Errorf("failed to get primary calendar: %w", err)
	}

	profileData := map[string]interface{}{
		"account":         account,
		"primaryCalendar": primary.ID,
		"timeZone":        primary.TimeZone,
		"description":     "Booking profile for the authenticated Google account",
	}
	if user, ok := oauth.GetUserFromContext(ctx); ok {
		profileData["email"] = user.Email
		profileData["name"] = user.Name
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleCalendarList returns the calendars visible to the current user
func handleCalendarList(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account := extractAccountFromContext(ctx)

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, fmt.Errorf("no Calendar client available for account: %s", account)
	}

	calendars, err := client.ListCalendars()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	entries := make([]map[string]interface{}, 0, len(calendars))
	for _, cal := range calendars {
		entries = append(entries, map[string]interface{}{
			"id":         cal.ID,
			"summary":    cal.Summary,
			"timeZone":   cal.TimeZone,
			"primary":    cal.Primary,
			"accessRole": cal.AccessRole,
		})
	}

	listData := map[string]interface{}{
		"account":   account,
		"calendars": entries,
	}

	jsonData, err := json.MarshalIndent(listData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calendar list: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
