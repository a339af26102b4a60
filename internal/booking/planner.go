package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/logging"
	"github.com/slotbot/slotbot/internal/scheduling"
)

// CalendarService is the slice of the calendar client the planner needs.
type CalendarService interface {
	BusyIntervals(timeMin, timeMax time.Time, calendarIDs []string, loc *time.Location) ([]scheduling.Interval, error)
	CreateEvent(calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
}

// Options configure a Planner.
type Options struct {
	// Location is the timezone all availability math happens in.
	// Defaults to UTC.
	Location *time.Location

	// BusinessHours, when set, restricts proposals to this daily window.
	// Time outside it counts as busy.
	BusinessHours *scheduling.ClockRange

	// Blackouts are recurring local blocks that never reach the remote
	// calendar, expanded into the busy set for every query.
	Blackouts []scheduling.BlackoutRule

	// SlotStep controls candidate enumeration inside free gaps. Zero
	// means one candidate per requested duration.
	SlotStep time.Duration

	// MaxProposals caps ranked proposals per query. Zero means
	// scheduling.DefaultMaxProposals.
	MaxProposals int

	// Logger receives booking activity. Nil falls back to the default
	// structured logger.
	Logger *slog.Logger
}

// Planner answers availability questions and books events for a set of
// calendars.
type Planner struct {
	cal  CalendarService
	opts Options
	log  *slog.Logger
}

// NewPlanner creates a planner over the given calendar service.
func NewPlanner(cal CalendarService, opts Options) *Planner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = logging.DefaultLogger().Logger()
	}
	return &Planner{cal: cal, opts: opts, log: log}
}

// Location returns the timezone the planner evaluates availability in.
func (p *Planner) Location() *time.Location {
	return p.opts.Location
}

// AvailabilityQuery describes an availability question.
type AvailabilityQuery struct {
	// Calendars to consult; everyone must be free. Empty means the
	// primary calendar.
	Calendars []string

	Duration    time.Duration
	WindowStart time.Time
	WindowEnd   time.Time

	// DesiredStart, when set, is the start time the user asked for.
	DesiredStart *time.Time

	// Preferred, when set, favors slots in this daily window.
	Preferred *scheduling.ClockRange
}

// Availability is the answer to an AvailabilityQuery.
type Availability struct {
	// Free reports whether the desired slot is open. Only meaningful
	// when the query carried a DesiredStart.
	Free bool

	// Conflict is the busy interval blocking the desired slot, if any.
	Conflict *scheduling.Interval

	// Proposals are ranked bookable slots, best first.
	Proposals []scheduling.Proposal
}

// ConflictError reports a booking attempt on a slot that is no longer
// free, along with ranked alternatives.
type ConflictError struct {
	Slot         scheduling.Interval
	Busy         scheduling.Interval
	Alternatives []scheduling.Proposal
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s conflicts with busy interval %s", e.Slot, e.Busy)
}

// CheckAvailability answers whether the desired slot is free and proposes
// ranked slots inside the window. When nothing in the window can hold the
// duration the error is a *scheduling.NoAvailabilityError.
func (p *Planner) CheckAvailability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	cal, window, err := p.loadCalendar(ctx, q.Calendars, q.WindowStart, q.WindowEnd)
	if err != nil {
		return nil, err
	}

	req := scheduling.Request{
		Duration:     q.Duration,
		Window:       window,
		DesiredStart: q.DesiredStart,
		Preferred:    q.Preferred,
		Step:         p.opts.SlotStep,
	}

	avail := &Availability{}
	if q.DesiredStart != nil {
		slot := scheduling.Interval{
			Start: q.DesiredStart.In(p.opts.Location),
			End:   q.DesiredStart.In(p.opts.Location).Add(q.Duration),
		}
		if busy, conflict := cal.Conflict(slot); conflict {
			avail.Conflict = &busy
		} else {
			avail.Free = slot.Within(window)
		}
	}

	proposals, err := scheduling.FindSlots(cal, req, p.opts.MaxProposals)
	if err != nil {
		return nil, err
	}
	avail.Proposals = proposals

	return avail, nil
}

// ProposeAlternatives returns ranked free slots near the desired start,
// excluding the desired slot itself. It is the recovery path after a
// conflict: "that time is taken, how about these".
func (p *Planner) ProposeAlternatives(ctx context.Context, q AvailabilityQuery) ([]scheduling.Proposal, error) {
	avail, err := p.CheckAvailability(ctx, q)
	if err != nil {
		return nil, err
	}

	if q.DesiredStart == nil || !avail.Free {
		return avail.Proposals, nil
	}
	alternatives := make([]scheduling.Proposal, 0, len(avail.Proposals))
	for _, prop := range avail.Proposals {
		if prop.Slot.Start.Equal(q.DesiredStart.In(p.opts.Location)) {
			continue
		}
		alternatives = append(alternatives, prop)
	}
	return alternatives, nil
}

// BusySchedule returns the normalized busy intervals the planner would
// consider for the window, including business-hours and blackout blocks.
func (p *Planner) BusySchedule(ctx context.Context, calendars []string, windowStart, windowEnd time.Time) ([]scheduling.Interval, error) {
	cal, _, err := p.loadCalendar(ctx, calendars, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return cal.Busy(), nil
}

// BookingRequest describes an event to create once its slot is verified.
type BookingRequest struct {
	// Calendars whose availability guards the booking. Empty means only
	// the target calendar.
	Calendars []string

	// TargetCalendar receives the event. Empty means "primary".
	TargetCalendar string

	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
	AddMeetLink bool
}

// Book re-checks the slot against fresh busy data and creates the event.
// A slot that filled up since the last availability check yields a
// *ConflictError carrying ranked alternatives.
func (p *Planner) Book(ctx context.Context, req BookingRequest) (*calendar.EventSummary, error) {
	if req.Duration <= 0 {
		return nil, &scheduling.InvalidRequestError{Reason: "duration must be positive"}
	}

	start := req.Start.In(p.opts.Location)
	slot := scheduling.Interval{Start: start, End: start.Add(req.Duration)}

	guarded := req.Calendars
	if len(guarded) == 0 {
		guarded = []string{p.targetCalendar(req)}
	}

	// Re-verify on a window around the slot so alternatives are at hand
	// if the check fails.
	windowStart := slot.Start.Add(-4 * time.Hour)
	windowEnd := slot.End.Add(4 * time.Hour)
	cal, _, err := p.loadCalendar(ctx, guarded, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	if busy, conflict := cal.Conflict(slot); conflict {
		alternatives, _ := scheduling.FindSlots(cal, scheduling.Request{
			Duration:     req.Duration,
			Window:       scheduling.Interval{Start: windowStart, End: windowEnd},
			DesiredStart: &slot.Start,
			Step:         p.opts.SlotStep,
		}, p.opts.MaxProposals)
		p.log.Warn("booking rejected, slot no longer free",
			logging.Operation("book"),
			logging.Calendar(p.targetCalendar(req)),
			logging.Slot(slot.Start, slot.End))
		return nil, &ConflictError{Slot: slot, Busy: busy, Alternatives: alternatives}
	}

	event, err := p.cal.CreateEvent(p.targetCalendar(req), calendar.EventInput{
		Summary:                  req.Summary,
		Description:              req.Description,
		Start:                    slot.Start,
		End:                      slot.End,
		TimeZone:                 p.opts.Location.String(),
		Attendees:                req.Attendees,
		UseDefaultConferenceData: req.AddMeetLink,
	})
	if err != nil {
		p.log.Error("event creation failed",
			logging.Operation("book"),
			logging.Calendar(p.targetCalendar(req)),
			logging.Err(err))
		return nil, err
	}
	p.log.Info("event booked",
		logging.Operation("book"),
		logging.Calendar(p.targetCalendar(req)),
		logging.EventID(event.ID),
		logging.Slot(slot.Start, slot.End))
	return event, nil
}

func (p *Planner) targetCalendar(req BookingRequest) string {
	if req.TargetCalendar != "" {
		return req.TargetCalendar
	}
	return "primary"
}

// loadCalendar assembles the normalized busy set for the window: remote
// busy intervals, expanded blackouts, and off-hours blocks.
func (p *Planner) loadCalendar(ctx context.Context, calendars []string, windowStart, windowEnd time.Time) (scheduling.Calendar, scheduling.Interval, error) {
	if err := ctx.Err(); err != nil {
		return scheduling.Calendar{}, scheduling.Interval{}, err
	}

	window, err := scheduling.NewInterval(windowStart.In(p.opts.Location), windowEnd.In(p.opts.Location))
	if err != nil {
		return scheduling.Calendar{}, scheduling.Interval{}, &scheduling.InvalidRequestError{
			Reason: "window start must precede window end",
		}
	}

	if len(calendars) == 0 {
		calendars = []string{"primary"}
	}

	busy, err := p.cal.BusyIntervals(window.Start, window.End, calendars, p.opts.Location)
	if err != nil {
		return scheduling.Calendar{}, scheduling.Interval{}, fmt.Errorf("fetching busy intervals: %w", err)
	}

	blackouts, err := scheduling.ExpandBlackouts(p.opts.Blackouts, window)
	if err != nil {
		return scheduling.Calendar{}, scheduling.Interval{}, fmt.Errorf("expanding blackouts: %w", err)
	}
	busy = append(busy, blackouts...)
	busy = append(busy, p.offHours(window)...)

	cal, err := scheduling.Normalize(busy)
	if err != nil {
		return scheduling.Calendar{}, scheduling.Interval{}, fmt.Errorf("normalizing busy intervals: %w", err)
	}
	return cal, window, nil
}

// offHours returns busy intervals covering time outside business hours
// for every day the window touches.
func (p *Planner) offHours(window scheduling.Interval) []scheduling.Interval {
	if p.opts.BusinessHours == nil {
		return nil
	}
	hours := *p.opts.BusinessHours

	var blocks []scheduling.Interval
	day := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(),
		0, 0, 0, 0, p.opts.Location)
	for day.Before(window.End) {
		opens := day.Add(hours.From)
		closes := day.Add(hours.To)
		next := day.AddDate(0, 0, 1)

		if night := (scheduling.Interval{Start: day, End: opens}); night.Start.Before(night.End) && night.Overlaps(window) {
			blocks = append(blocks, night)
		}
		if evening := (scheduling.Interval{Start: closes, End: next}); evening.Start.Before(evening.End) && evening.Overlaps(window) {
			blocks = append(blocks, evening)
		}
		day = next
	}
	return blocks
}
