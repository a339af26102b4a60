package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/scheduling"
)

type createdEvent struct {
	calendarID string
	input      calendar.EventInput
}

type fakeCalendar struct {
	busy    map[string][]scheduling.Interval
	busyErr error
	created []createdEvent
}

func (f *fakeCalendar) BusyIntervals(timeMin, timeMax time.Time, calendarIDs []string, loc *time.Location) ([]scheduling.Interval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	var out []scheduling.Interval
	for _, id := range calendarIDs {
		out = append(out, f.busy[id]...)
	}
	return out, nil
}

func (f *fakeCalendar) CreateEvent(calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	f.created = append(f.created, createdEvent{calendarID: calendarID, input: input})
	return &calendar.EventSummary{
		ID:      "evt-1",
		Summary: input.Summary,
		Start:   input.Start,
		End:     input.End,
	}, nil
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func span(startHour, startMin, endHour, endMin int) scheduling.Interval {
	return scheduling.Interval{Start: at(startHour, startMin), End: at(endHour, endMin)}
}

func TestCheckAvailabilityDesiredFree(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(9, 0, 10, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	desired := at(10, 0)
	avail, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:     time.Hour,
		WindowStart:  at(9, 0),
		WindowEnd:    at(13, 0),
		DesiredStart: &desired,
	})
	require.NoError(t, err)

	assert.True(t, avail.Free)
	assert.Nil(t, avail.Conflict)
	require.NotEmpty(t, avail.Proposals)
	assert.Equal(t, 0, avail.Proposals[0].Rank)
	assert.True(t, avail.Proposals[0].Slot.Start.Equal(desired))
}

func TestCheckAvailabilityDesiredBusy(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(10, 0, 11, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	desired := at(10, 30)
	avail, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:     30 * time.Minute,
		WindowStart:  at(9, 0),
		WindowEnd:    at(12, 0),
		DesiredStart: &desired,
	})
	require.NoError(t, err)

	assert.False(t, avail.Free)
	require.NotNil(t, avail.Conflict)
	assert.Equal(t, span(10, 0, 11, 0), *avail.Conflict)
	require.NotEmpty(t, avail.Proposals)
	assert.Equal(t, span(11, 0, 11, 30), avail.Proposals[0].Slot)
}

func TestCheckAvailabilityMergesCalendars(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"alice@example.com": {span(9, 0, 10, 0)},
		"bob@example.com":   {span(10, 0, 11, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	avail, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Calendars:   []string{"alice@example.com", "bob@example.com"},
		Duration:    time.Hour,
		WindowStart: at(9, 0),
		WindowEnd:   at(12, 0),
	})
	require.NoError(t, err)

	// Only 11:00-12:00 is free for both.
	require.Len(t, avail.Proposals, 1)
	assert.Equal(t, span(11, 0, 12, 0), avail.Proposals[0].Slot)
}

func TestCheckAvailabilityRespectsBusinessHours(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(9, 0, 17, 0)},
	}}
	hours := scheduling.ClockRange{From: 9 * time.Hour, To: 18 * time.Hour}
	planner := NewPlanner(fake, Options{BusinessHours: &hours})

	avail, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:    time.Hour,
		WindowStart: at(8, 0),
		WindowEnd:   at(20, 0),
	})
	require.NoError(t, err)

	// 08:00 and everything after 18:00 are off-hours; only 17:00 fits.
	require.Len(t, avail.Proposals, 1)
	assert.Equal(t, span(17, 0, 18, 0), avail.Proposals[0].Slot)
}

func TestCheckAvailabilityAppliesBlackouts(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{}}
	planner := NewPlanner(fake, Options{
		Blackouts: []scheduling.BlackoutRule{
			{Name: "lunch", Rule: "FREQ=DAILY", Start: at(12, 0), Duration: time.Hour},
		},
	})

	desired := at(12, 15)
	avail, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:     30 * time.Minute,
		WindowStart:  at(9, 0),
		WindowEnd:    at(14, 0),
		DesiredStart: &desired,
	})
	require.NoError(t, err)

	assert.False(t, avail.Free)
	require.NotNil(t, avail.Conflict)
	assert.Equal(t, span(12, 0, 13, 0), *avail.Conflict)
}

func TestCheckAvailabilityNoAvailability(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(9, 0, 13, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	_, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:    time.Hour,
		WindowStart: at(9, 0),
		WindowEnd:   at(13, 0),
	})
	var noAvail *scheduling.NoAvailabilityError
	require.ErrorAs(t, err, &noAvail)
}

func TestCheckAvailabilityInvalidWindow(t *testing.T) {
	planner := NewPlanner(&fakeCalendar{}, Options{})

	_, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:    time.Hour,
		WindowStart: at(13, 0),
		WindowEnd:   at(9, 0),
	})
	var invalid *scheduling.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestProposeAlternativesExcludesDesired(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{}}
	planner := NewPlanner(fake, Options{})

	desired := at(10, 0)
	alternatives, err := planner.ProposeAlternatives(context.Background(), AvailabilityQuery{
		Duration:     time.Hour,
		WindowStart:  at(9, 0),
		WindowEnd:    at(14, 0),
		DesiredStart: &desired,
	})
	require.NoError(t, err)

	require.NotEmpty(t, alternatives)
	for _, alt := range alternatives {
		assert.False(t, alt.Slot.Start.Equal(desired), "desired slot offered as alternative")
	}
}

func TestBusySchedule(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(11, 0, 12, 0), span(9, 0, 10, 30), span(10, 0, 11, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	busy, err := planner.BusySchedule(context.Background(), nil, at(8, 0), at(14, 0))
	require.NoError(t, err)

	// Overlapping and touching intervals arrive merged.
	assert.Equal(t, []scheduling.Interval{span(9, 0, 12, 0)}, busy)
}

func TestBookCreatesEvent(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{}}
	planner := NewPlanner(fake, Options{})

	summary, err := planner.Book(context.Background(), BookingRequest{
		Summary:   "Design review",
		Start:     at(10, 0),
		Duration:  time.Hour,
		Attendees: []string{"alice@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Design review", summary.Summary)
	require.Len(t, fake.created, 1)
	created := fake.created[0]
	assert.Equal(t, "primary", created.calendarID)
	assert.True(t, created.input.Start.Equal(at(10, 0)))
	assert.True(t, created.input.End.Equal(at(11, 0)))
	assert.Equal(t, []string{"alice@example.com"}, created.input.Attendees)
}

func TestBookConflict(t *testing.T) {
	fake := &fakeCalendar{busy: map[string][]scheduling.Interval{
		"primary": {span(10, 0, 11, 0)},
	}}
	planner := NewPlanner(fake, Options{})

	_, err := planner.Book(context.Background(), BookingRequest{
		Summary:  "Doomed meeting",
		Start:    at(10, 30),
		Duration: 30 * time.Minute,
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, span(10, 0, 11, 0), conflict.Busy)
	assert.NotEmpty(t, conflict.Alternatives)
	assert.Empty(t, fake.created, "no event may be created on conflict")
}

func TestBookInvalidDuration(t *testing.T) {
	planner := NewPlanner(&fakeCalendar{}, Options{})

	_, err := planner.Book(context.Background(), BookingRequest{Start: at(10, 0)})
	var invalid *scheduling.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
}

func TestPlannerPropagatesCalendarErrors(t *testing.T) {
	fake := &fakeCalendar{busyErr: errors.New("freebusy unavailable")}
	planner := NewPlanner(fake, Options{})

	_, err := planner.CheckAvailability(context.Background(), AvailabilityQuery{
		Duration:    time.Hour,
		WindowStart: at(9, 0),
		WindowEnd:   at(13, 0),
	})
	require.ErrorContains(t, err, "freebusy unavailable")
}
