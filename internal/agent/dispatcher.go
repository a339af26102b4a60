package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/scheduling"
)

// Dispatcher executes a tool call requested by the model and returns the
// result as a string for the model to read.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args map[string]any) (string, error)
}

// PlannerDispatcher executes agent tool calls against a booking planner.
type PlannerDispatcher struct {
	planner   *booking.Planner
	calendars []string
}

// NewPlannerDispatcher creates a dispatcher over the given planner. The
// optional calendars pin which calendars every query consults; empty means
// the primary calendar.
func NewPlannerDispatcher(planner *booking.Planner, calendars ...string) *PlannerDispatcher {
	return &PlannerDispatcher{planner: planner, calendars: calendars}
}

// Dispatch runs the named tool. Unknown tool names are an error so the
// loop surfaces model hallucinations instead of silently ignoring them.
func (d *PlannerDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "check_availability":
		return d.checkAvailability(ctx, args)
	case "propose_alternatives":
		return d.proposeAlternatives(ctx, args)
	case "create_calendar_event":
		return d.createEvent(ctx, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

// toolResult is the JSON shape handed back to the model.
type toolResult struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Slots   []toolSlot `json:"slots,omitempty"`
	EventID string     `json:"eventId,omitempty"`
}

type toolSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Formatted string `json:"formatted"`
}

func (d *PlannerDispatcher) checkAvailability(ctx context.Context, args map[string]any) (string, error) {
	start, err := d.timeArg(args, "start")
	if err != nil {
		return errResult(err)
	}
	duration, err := durationArg(args)
	if err != nil {
		return errResult(err)
	}

	desired := start
	avail, err := d.planner.CheckAvailability(ctx, booking.AvailabilityQuery{
		Calendars:    d.calendars,
		Duration:     duration,
		WindowStart:  start.Add(-4 * time.Hour),
		WindowEnd:    start.Add(duration).Add(4 * time.Hour),
		DesiredStart: &desired,
	})
	if err != nil {
		var noAvail *scheduling.NoAvailabilityError
		if errors.As(err, &noAvail) {
			return marshalResult(toolResult{
				Status:  "no_availability",
				Message: fmt.Sprintf("the requested slot is busy and no alternative of %s fits nearby", duration),
			})
		}
		return errResult(err)
	}

	if avail.Free {
		return marshalResult(toolResult{
			Status:  "free",
			Message: fmt.Sprintf("the slot %s to %s is free", start.Format(time.RFC3339), start.Add(duration).Format(time.RFC3339)),
		})
	}
	return marshalResult(toolResult{
		Status:  "busy",
		Message: fmt.Sprintf("the slot conflicts with a busy period from %s to %s", avail.Conflict.Start.Format(time.RFC3339), avail.Conflict.End.Format(time.RFC3339)),
		Slots:   formatSlots(avail.Proposals, d.planner.Location()),
	})
}

func (d *PlannerDispatcher) proposeAlternatives(ctx context.Context, args map[string]any) (string, error) {
	windowStart, err := d.timeArg(args, "windowStart")
	if err != nil {
		return errResult(err)
	}
	windowEnd, err := d.timeArg(args, "windowEnd")
	if err != nil {
		return errResult(err)
	}
	duration, err := durationArg(args)
	if err != nil {
		return errResult(err)
	}

	q := booking.AvailabilityQuery{
		Calendars:   d.calendars,
		Duration:    duration,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
	if _, ok := args["desiredStart"]; ok {
		desired, err := d.timeArg(args, "desiredStart")
		if err != nil {
			return errResult(err)
		}
		q.DesiredStart = &desired
	}

	proposals, err := d.planner.ProposeAlternatives(ctx, q)
	if err != nil {
		var noAvail *scheduling.NoAvailabilityError
		if errors.As(err, &noAvail) {
			return marshalResult(toolResult{
				Status:  "no_availability",
				Message: fmt.Sprintf("no slot of %s fits between %s and %s", duration, windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339)),
			})
		}
		return errResult(err)
	}

	return marshalResult(toolResult{
		Status:  "success",
		Message: fmt.Sprintf("found %d available slots, best first", len(proposals)),
		Slots:   formatSlots(proposals, d.planner.Location()),
	})
}

func (d *PlannerDispatcher) createEvent(ctx context.Context, args map[string]any) (string, error) {
	summary, _ := args["title"].(string)
	if summary == "" {
		return errResult(fmt.Errorf("title is required"))
	}
	start, err := d.timeArg(args, "start")
	if err != nil {
		return errResult(err)
	}
	duration, err := durationArg(args)
	if err != nil {
		return errResult(err)
	}

	req := booking.BookingRequest{
		Calendars: d.calendars,
		Summary:   summary,
		Start:     start,
		Duration:  duration,
	}
	if desc, ok := args["description"].(string); ok {
		req.Description = desc
	}
	if raw, ok := args["attendees"].([]any); ok {
		for _, a := range raw {
			if email, ok := a.(string); ok && email != "" {
				req.Attendees = append(req.Attendees, email)
			}
		}
	}

	event, err := d.planner.Book(ctx, req)
	if err != nil {
		var conflict *booking.ConflictError
		if errors.As(err, &conflict) {
			return marshalResult(toolResult{
				Status:  "conflict",
				Message: fmt.Sprintf("not booked: the slot conflicts with a busy period from %s to %s", conflict.Busy.Start.Format(time.RFC3339), conflict.Busy.End.Format(time.RFC3339)),
				Slots:   formatSlots(conflict.Alternatives, d.planner.Location()),
			})
		}
		return errResult(err)
	}

	return marshalResult(toolResult{
		Status:  "success",
		Message: fmt.Sprintf("booked %q from %s to %s", event.Summary, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339)),
		EventID: event.ID,
	})
}

// timeArg parses a timestamp argument. Timestamps without a zone offset
// are interpreted in the planner's timezone, matching how users phrase
// times in conversation.
func (d *PlannerDispatcher) timeArg(args map[string]any, key string) (time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, d.planner.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %v", key, err)
	}
	return t, nil
}

func durationArg(args map[string]any) (time.Duration, error) {
	minutes, ok := args["durationMinutes"].(float64)
	if !ok {
		// Default meeting length when the model omits it.
		return time.Hour, nil
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("durationMinutes must be positive")
	}
	return time.Duration(minutes) * time.Minute, nil
}

func formatSlots(proposals []scheduling.Proposal, loc *time.Location) []toolSlot {
	slots := make([]toolSlot, 0, len(proposals))
	for _, p := range proposals {
		local := p.Slot.Start.In(loc)
		slots = append(slots, toolSlot{
			Start:     p.Slot.Start.Format(time.RFC3339),
			End:       p.Slot.End.Format(time.RFC3339),
			Formatted: fmt.Sprintf("%s to %s", local.Format("Monday, January 2 at 15:04"), p.Slot.End.In(loc).Format("15:04 MST")),
		})
	}
	return slots
}

func marshalResult(r toolResult) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// errResult reports a tool failure to the model as data rather than as a
// transport error, so the conversation can recover.
func errResult(err error) (string, error) {
	return marshalResult(toolResult{Status: "error", Message: err.Error()})
}
