package booking_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/instrumentation"
	"github.com/slotbot/slotbot/internal/server"
	"github.com/slotbot/slotbot/internal/tools/batch"
	"github.com/slotbot/slotbot/internal/tools/common"
)

// RegisterEventTools registers calendar event tools with the MCP server.
// Write tools (create, reschedule, cancel) are only registered when the
// server runs with write access enabled.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listEventsTool := mcp.NewTool("list_events",
		mcp.WithDescription("List calendar events in a time range, optionally filtered by a search query."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format)"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format)"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text search over event fields"),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithService(
		"list_events", instrumentation.ServiceCalendar, "events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createEventTool := mcp.NewTool("create_calendar_event",
		mcp.WithDescription("Book a meeting. Verifies the slot is still free across the given calendars before creating the event; on conflict, reports alternatives instead."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Event start time (RFC3339 format)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("calendars",
			mcp.Description("Comma-separated calendar IDs or attendee emails to verify against (default: 'primary')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar to create the event on (default: first entry of calendars, or 'primary')"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses to invite"),
		),
		mcp.WithBoolean("addMeetLink",
			mcp.Description("Attach a Google Meet link to the event"),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService(
		"create_calendar_event", instrumentation.ServiceCalendar, "events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	rescheduleEventTool := mcp.NewTool("reschedule_event",
		mcp.WithDescription("Move an existing event to a new time."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("ID of the event to reschedule"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("New start time (RFC3339 format)"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("New duration in minutes"),
		),
	)

	s.AddTool(rescheduleEventTool, common.InstrumentedToolHandlerWithService(
		"reschedule_event", instrumentation.ServiceCalendar, "events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRescheduleEvent(ctx, request, sc)
		}))

	cancelEventTool := mcp.NewTool("cancel_event",
		mcp.WithDescription("Cancel (delete) one or more calendar events. Accepts a single event ID or an array of IDs."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default: 'primary')"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("ID of the event to cancel, or an array of event IDs"),
		),
	)

	s.AddTool(cancelEventTool, common.InstrumentedToolHandlerWithService(
		"cancel_event", instrumentation.ServiceCalendar, "events", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCancelEvent(ctx, request, sc)
		}))

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if id, ok := args["calendarId"].(string); ok && id != "" {
		calendarID = id
	}

	timeMin, err := parseTimeArg(args, "timeMin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMax, err := parseTimeArg(args, "timeMax")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := ""
	if q, ok := args["query"].(string); ok {
		query = q
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := client.ListEvents(calendarID, timeMin, timeMax, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No events found in the given range."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d event(s):\n\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s\n  ID: %s\n  When: %s to %s\n",
			ev.Summary, ev.ID,
			ev.Start.Format("Mon, Jan 2 2006 at 15:04"), ev.End.Format("15:04 MST"))
		if len(ev.Attendees) > 0 {
			emails := make([]string, 0, len(ev.Attendees))
			for _, a := range ev.Attendees {
				emails = append(emails, a.Email)
			}
			fmt.Fprintf(&b, "  Attendees: %s\n", strings.Join(emails, ", "))
		}
		if ev.MeetLink != "" {
			fmt.Fprintf(&b, "  Meet: %s\n", ev.MeetLink)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	start, err := parseTimeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration, err := parseDurationMinutes(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := booking.BookingRequest{
		Calendars: parseCalendarsArg(args),
		Summary:   summary,
		Start:     start,
		Duration:  duration,
	}
	if desc, ok := args["description"].(string); ok {
		req.Description = desc
	}
	if id, ok := args["calendarId"].(string); ok && id != "" {
		req.TargetCalendar = id
	}
	if attendeesStr, ok := args["attendees"].(string); ok && attendeesStr != "" {
		for _, email := range strings.Split(attendeesStr, ",") {
			req.Attendees = append(req.Attendees, strings.TrimSpace(email))
		}
	}
	if addMeet, ok := args["addMeetLink"].(bool); ok {
		req.AddMeetLink = addMeet
	}

	planner, err := getPlanner(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := planner.Book(ctx, req)
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) {
			recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeConflict, len(conflict.Alternatives))
			var b strings.Builder
			fmt.Fprintf(&b, "NOT booked: the slot %s to %s conflicts with a busy period from %s to %s.\n",
				conflict.Slot.Start.Format(time.RFC3339), conflict.Slot.End.Format(time.RFC3339),
				conflict.Busy.Start.Format(time.RFC3339), conflict.Busy.End.Format(time.RFC3339))
			if len(conflict.Alternatives) > 0 {
				fmt.Fprintf(&b, "\nAlternative slots, best first:\n%s", formatProposals(conflict.Alternatives))
			}
			return mcp.NewToolResultText(b.String()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	result := fmt.Sprintf("Event created: %s\nID: %s\nWhen: %s to %s",
		event.Summary, event.ID,
		event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
	if event.MeetLink != "" {
		result += fmt.Sprintf("\nMeet: %s", event.MeetLink)
	}
	return mcp.NewToolResultText(result), nil
}

func handleRescheduleEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if id, ok := args["calendarId"].(string); ok && id != "" {
		calendarID = id
	}
	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	start, err := parseTimeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration, err := parseDurationMinutes(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	event, err := client.RescheduleEvent(calendarID, eventID, start, start.Add(duration), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reschedule event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Event rescheduled: %s\nNew time: %s to %s",
		event.Summary, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))), nil
}

func handleCancelEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	calendarID := "primary"
	if id, ok := args["calendarId"].(string); ok && id != "" {
		calendarID = id
	}
	eventIDs, err := batch.ParseStringOrArray(args["eventId"], "eventId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := getCalendarClient(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(eventIDs) == 1 {
		if err := client.DeleteEvent(calendarID, eventIDs[0]); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel event: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Event %s cancelled.", eventIDs[0])), nil
	}

	results := batch.ProcessBatch(eventIDs, func(id string) (string, error) {
		if err := client.DeleteEvent(calendarID, id); err != nil {
			return "", err
		}
		return "cancelled", nil
	})
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}
