package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/scheduling"
)

type fakeCalendar struct {
	busy    []scheduling.Interval
	created []calendar.EventInput
}

func (f *fakeCalendar) BusyIntervals(timeMin, timeMax time.Time, calendarIDs []string, loc *time.Location) ([]scheduling.Interval, error) {
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	f.created = append(f.created, input)
	return &calendar.EventSummary{
		ID:      "evt-42",
		Summary: input.Summary,
		Start:   input.Start,
		End:     input.End,
	}, nil
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func decodeResult(t *testing.T, raw string) toolResult {
	t.Helper()
	var r toolResult
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

func TestDispatchCheckAvailabilityFree(t *testing.T) {
	fake := &fakeCalendar{busy: []scheduling.Interval{
		{Start: at(9, 0), End: at(10, 0)},
	}}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "check_availability", map[string]any{
		"start":           "2026-03-02T11:00:00Z",
		"durationMinutes": float64(60),
	})
	require.NoError(t, err)

	result := decodeResult(t, raw)
	assert.Equal(t, "free", result.Status)
}

func TestDispatchCheckAvailabilityBusy(t *testing.T) {
	fake := &fakeCalendar{busy: []scheduling.Interval{
		{Start: at(10, 0), End: at(11, 0)},
	}}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "check_availability", map[string]any{
		"start":           "2026-03-02T10:30:00Z",
		"durationMinutes": float64(30),
	})
	require.NoError(t, err)

	result := decodeResult(t, raw)
	assert.Equal(t, "busy", result.Status)
	assert.Contains(t, result.Message, "2026-03-02T10:00:00Z")
	assert.NotEmpty(t, result.Slots)
}

func TestDispatchProposeAlternatives(t *testing.T) {
	fake := &fakeCalendar{busy: []scheduling.Interval{
		{Start: at(9, 0), End: at(12, 0)},
	}}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "propose_alternatives", map[string]any{
		"windowStart":     "2026-03-02T09:00:00Z",
		"windowEnd":       "2026-03-02T14:00:00Z",
		"durationMinutes": float64(60),
	})
	require.NoError(t, err)

	result := decodeResult(t, raw)
	assert.Equal(t, "success", result.Status)
	require.NotEmpty(t, result.Slots)
	assert.Equal(t, "2026-03-02T12:00:00Z", result.Slots[0].Start)
}

func TestDispatchProposeAlternativesNoAvailability(t *testing.T) {
	fake := &fakeCalendar{busy: []scheduling.Interval{
		{Start: at(9, 0), End: at(17, 0)},
	}}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "propose_alternatives", map[string]any{
		"windowStart":     "2026-03-02T09:00:00Z",
		"windowEnd":       "2026-03-02T17:00:00Z",
		"durationMinutes": float64(60),
	})
	require.NoError(t, err)

	assert.Equal(t, "no_availability", decodeResult(t, raw).Status)
}

func TestDispatchCreateEvent(t *testing.T) {
	fake := &fakeCalendar{}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "create_calendar_event", map[string]any{
		"title":           "Team sync",
		"start":           "2026-03-02T10:00:00Z",
		"durationMinutes": float64(30),
		"attendees":       []any{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	result := decodeResult(t, raw)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "evt-42", result.EventID)

	require.Len(t, fake.created, 1)
	assert.Equal(t, "Team sync", fake.created[0].Summary)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, fake.created[0].Attendees)
}

func TestDispatchCreateEventConflict(t *testing.T) {
	fake := &fakeCalendar{busy: []scheduling.Interval{
		{Start: at(10, 0), End: at(11, 0)},
	}}
	d := NewPlannerDispatcher(booking.NewPlanner(fake, booking.Options{}))

	raw, err := d.Dispatch(context.Background(), "create_calendar_event", map[string]any{
		"title":           "Team sync",
		"start":           "2026-03-02T10:00:00Z",
		"durationMinutes": float64(30),
	})
	require.NoError(t, err)

	result := decodeResult(t, raw)
	assert.Equal(t, "conflict", result.Status)
	assert.Empty(t, fake.created)
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewPlannerDispatcher(booking.NewPlanner(&fakeCalendar{}, booking.Options{}))

	_, err := d.Dispatch(context.Background(), "delete_everything", nil)
	assert.Error(t, err)
}

func TestDispatchDefaultDuration(t *testing.T) {
	got, err := durationArg(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, got)

	_, err = durationArg(map[string]any{"durationMinutes": float64(-5)})
	assert.Error(t, err)
}

func TestTimeArgNaiveTimestampUsesPlannerLocation(t *testing.T) {
	loc := time.FixedZone("IST", int((5*time.Hour + 30*time.Minute).Seconds()))
	d := NewPlannerDispatcher(booking.NewPlanner(&fakeCalendar{}, booking.Options{Location: loc}))

	got, err := d.timeArg(map[string]any{"start": "2026-03-02T14:00:00"}, "start")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 2, 14, 0, 0, 0, loc), got)

	_, err = d.timeArg(map[string]any{}, "start")
	assert.Error(t, err)
}
