package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns an interval after validating that start precedes end.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, &InvalidIntervalError{Start: start, End: end}
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that merely touch at an endpoint do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Within reports whether iv lies entirely inside outer.
func (iv Interval) Within(outer Interval) bool {
	return !iv.Start.Before(outer.Start) && !iv.End.After(outer.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// Calendar is a normalized busy set: sorted by start, pairwise disjoint.
// Obtain one through Normalize; the zero value is an empty calendar.
type Calendar struct {
	busy []Interval
}

// Busy returns a copy of the normalized busy intervals in start order.
func (c Calendar) Busy() []Interval {
	out := make([]Interval, len(c.busy))
	copy(out, c.busy)
	return out
}

// ClockRange is a daily time-of-day window expressed as offsets from local
// midnight, e.g. 09:00-18:00. It is evaluated in the queried interval's
// location.
type ClockRange struct {
	From time.Duration
	To   time.Duration
}

// Contains reports whether the interval falls wholly inside the clock range
// on the interval's own day. Intervals crossing midnight are never contained.
func (r ClockRange) Contains(iv Interval) bool {
	midnight := time.Date(iv.Start.Year(), iv.Start.Month(), iv.Start.Day(),
		0, 0, 0, 0, iv.Start.Location())
	start := iv.Start.Sub(midnight)
	end := iv.End.Sub(midnight)
	return start >= r.From && end <= r.To
}

// ParseClockRange parses a "HH:MM-HH:MM" window such as "09:00-18:00".
func ParseClockRange(s string) (ClockRange, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return ClockRange{}, fmt.Errorf("clock range %q: want HH:MM-HH:MM", s)
	}
	f, err := parseClock(from)
	if err != nil {
		return ClockRange{}, fmt.Errorf("clock range %q: %w", s, err)
	}
	t, err := parseClock(to)
	if err != nil {
		return ClockRange{}, fmt.Errorf("clock range %q: %w", s, err)
	}
	if f >= t {
		return ClockRange{}, fmt.Errorf("clock range %q: start must precede end", s)
	}
	return ClockRange{From: f, To: t}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Request describes what a booking needs from the calendar.
type Request struct {
	// Duration of the slot to book. Must be positive.
	Duration time.Duration

	// Window bounds the search: slots start no earlier than Window.Start
	// and end no later than Window.End.
	Window Interval

	// DesiredStart, when set, is the caller's preferred start time. A free
	// slot at exactly this time ranks first; otherwise alternatives are
	// ranked by proximity to it.
	DesiredStart *time.Time

	// Preferred, when set, favors slots wholly inside this daily window as
	// a tie-break.
	Preferred *ClockRange

	// Step controls candidate enumeration inside free gaps. Zero means one
	// candidate per Duration.
	Step time.Duration
}

// Validate checks the request independent of any calendar.
func (r Request) Validate() error {
	if r.Duration <= 0 {
		return &InvalidRequestError{Reason: "duration must be positive"}
	}
	if !r.Window.Start.Before(r.Window.End) {
		return &InvalidRequestError{Reason: "window start must precede window end"}
	}
	return nil
}

// Proposal is a bookable slot. Rank is the position in the ranked result,
// starting at 0 for the best match.
type Proposal struct {
	Slot Interval
	Rank int
}
