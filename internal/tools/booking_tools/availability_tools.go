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
	"github.com/slotbot/slotbot/internal/scheduling"
	"github.com/slotbot/slotbot/internal/server"
	"github.com/slotbot/slotbot/internal/tools/common"
)

// RegisterAvailabilityTools registers the read-only availability tools with
// the MCP server.
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	checkAvailabilityTool := mcp.NewTool("check_availability",
		mcp.WithDescription("Check whether a specific time slot is free across one or more calendars. Reports the first conflict and ranked alternative slots."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Desired slot start time (RFC3339 format, e.g., '2026-03-02T10:30:00Z')"),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("calendars",
			mcp.Description("Comma-separated list of calendar IDs or attendee email addresses to check (default: 'primary')"),
		),
		mcp.WithString("windowStart",
			mcp.Description("Start of the search window for alternatives (RFC3339). Defaults to 4 hours before the slot."),
		),
		mcp.WithString("windowEnd",
			mcp.Description("End of the search window for alternatives (RFC3339). Defaults to 4 hours after the slot."),
		),
	)

	s.AddTool(checkAvailabilityTool, common.InstrumentedToolHandlerWithService(
		"check_availability", instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckAvailability(ctx, request, sc)
		}))

	proposeAlternativesTool := mcp.NewTool("propose_alternatives",
		mcp.WithDescription("Find ranked free slots for a meeting inside a time window. Slots near the desired start rank first; otherwise earliest first."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Meeting duration in minutes"),
		),
		mcp.WithString("windowStart",
			mcp.Required(),
			mcp.Description("Start of the search window (RFC3339 format)"),
		),
		mcp.WithString("windowEnd",
			mcp.Required(),
			mcp.Description("End of the search window (RFC3339 format)"),
		),
		mcp.WithString("desiredStart",
			mcp.Description("Preferred start time (RFC3339). Alternatives are ranked by proximity to it."),
		),
		mcp.WithString("preferredTimeOfDay",
			mcp.Description("Preferred daily time range in HH:MM-HH:MM format (e.g., '14:00-18:00'). Breaks ties between otherwise equal slots."),
		),
		mcp.WithString("calendars",
			mcp.Description("Comma-separated list of calendar IDs or attendee email addresses to check (default: 'primary')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of slots to return (default: 10)"),
		),
	)

	s.AddTool(proposeAlternativesTool, common.InstrumentedToolHandlerWithService(
		"propose_alternatives", instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleProposeAlternatives(ctx, request, sc)
		}))

	getBusyTimesTool := mcp.NewTool("get_busy_times",
		mcp.WithDescription("Get the merged busy schedule for one or more calendars in a time range, including configured blackouts and off-hours blocks."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start time for the range (RFC3339 format)"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End time for the range (RFC3339 format)"),
		),
		mcp.WithString("calendars",
			mcp.Description("Comma-separated list of calendar IDs or attendee email addresses (default: 'primary')"),
		),
	)

	s.AddTool(getBusyTimesTool, common.InstrumentedToolHandlerWithService(
		"get_busy_times", instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetBusyTimes(ctx, request, sc)
		}))

	return nil
}

func handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	start, err := parseTimeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration, err := parseDurationMinutes(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	windowStart, err := parseOptionalTimeArg(args, "windowStart")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	windowEnd, err := parseOptionalTimeArg(args, "windowEnd")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := booking.AvailabilityQuery{
		Calendars:    parseCalendarsArg(args),
		Duration:     duration,
		WindowStart:  start.Add(-4 * time.Hour),
		WindowEnd:    start.Add(duration).Add(4 * time.Hour),
		DesiredStart: &start,
	}
	if windowStart != nil {
		q.WindowStart = *windowStart
	}
	if windowEnd != nil {
		q.WindowEnd = *windowEnd
	}

	planner, err := getPlanner(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	avail, err := planner.CheckAvailability(ctx, q)
	if err != nil {
		var noAvail *scheduling.NoAvailabilityError
		if errors.As(err, &noAvail) {
			recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeNone, 0)
			return mcp.NewToolResultText(fmt.Sprintf(
				"The slot %s to %s is not available, and no alternative slot of %s fits in the search window.",
				start.Format(time.RFC3339), start.Add(duration).Format(time.RFC3339), duration)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check availability: %v", err)), nil
	}

	if avail.Free {
		recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeFound, len(avail.Proposals))
		return mcp.NewToolResultText(fmt.Sprintf("The slot %s to %s is FREE.",
			start.Format(time.RFC3339), start.Add(duration).Format(time.RFC3339))), nil
	}

	recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeConflict, len(avail.Proposals))

	var b strings.Builder
	fmt.Fprintf(&b, "The slot %s to %s is BUSY.\n",
		start.Format(time.RFC3339), start.Add(duration).Format(time.RFC3339))
	if avail.Conflict != nil {
		fmt.Fprintf(&b, "Conflicts with a busy period from %s to %s.\n",
			avail.Conflict.Start.Format(time.RFC3339), avail.Conflict.End.Format(time.RFC3339))
	}
	if len(avail.Proposals) > 0 {
		fmt.Fprintf(&b, "\nAlternative slots, best first:\n%s", formatProposals(avail.Proposals))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleProposeAlternatives(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	duration, err := parseDurationMinutes(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	windowStart, err := parseTimeArg(args, "windowStart")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	windowEnd, err := parseTimeArg(args, "windowEnd")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desiredStart, err := parseOptionalTimeArg(args, "desiredStart")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := booking.AvailabilityQuery{
		Calendars:    parseCalendarsArg(args),
		Duration:     duration,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		DesiredStart: desiredStart,
	}

	if rangeStr, ok := args["preferredTimeOfDay"].(string); ok && rangeStr != "" {
		preferred, err := scheduling.ParseClockRange(rangeStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid preferredTimeOfDay: %v", err)), nil
		}
		q.Preferred = &preferred
	}

	planner, err := getPlanner(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	proposals, err := planner.ProposeAlternatives(ctx, q)
	if err != nil {
		var noAvail *scheduling.NoAvailabilityError
		if errors.As(err, &noAvail) {
			recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeNone, 0)
			return mcp.NewToolResultText(fmt.Sprintf(
				"No slot of %s fits between %s and %s. Try a wider window or a shorter meeting.",
				duration, windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find slots: %v", err)), nil
	}

	maxResults := scheduling.DefaultMaxProposals
	if maxVal, ok := args["maxResults"].(float64); ok && maxVal > 0 {
		maxResults = int(maxVal)
	}
	if len(proposals) > maxResults {
		proposals = proposals[:maxResults]
	}

	recordSlotSearch(ctx, sc, instrumentation.SearchOutcomeFound, len(proposals))

	if len(proposals) == 0 {
		return mcp.NewToolResultText("No alternative slots found in the search window."), nil
	}

	result := fmt.Sprintf("Found %d available slot(s) for a %s meeting, best first:\n\n%s",
		len(proposals), duration, formatProposals(proposals))
	return mcp.NewToolResultText(result), nil
}

func handleGetBusyTimes(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	timeMin, err := parseTimeArg(args, "timeMin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMax, err := parseTimeArg(args, "timeMax")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	planner, err := getPlanner(ctx, account, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	busy, err := planner.BusySchedule(ctx, parseCalendarsArg(args), timeMin, timeMax)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load busy schedule: %v", err)), nil
	}

	if len(busy) == 0 {
		return mcp.NewToolResultText("FREE for the entire range."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Busy periods (%d):\n", len(busy))
	for i, iv := range busy {
		fmt.Fprintf(&b, "%d. %s to %s\n", i+1,
			iv.Start.Format("2006-01-02 15:04"), iv.End.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func recordSlotSearch(ctx context.Context, sc *server.ServerContext, outcome string, proposals int) {
	if m := sc.Metrics(); m != nil {
		m.RecordSlotSearch(ctx, outcome, proposals)
	}
}
