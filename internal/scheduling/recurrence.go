package scheduling

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// BlackoutRule is a recurring block defined by an iCalendar recurrence rule,
// such as a daily lunch hold or a weekly team meeting that never reaches the
// remote calendar. Start fixes the first occurrence and its time of day;
// every occurrence lasts Duration.
type BlackoutRule struct {
	Name     string
	Rule     string // RRULE content, e.g. "FREQ=WEEKLY;BYDAY=MO,WE"
	Start    time.Time
	Duration time.Duration
}

// Expand returns the rule's occurrences that overlap the window, as busy
// intervals ready for Normalize.
func (r BlackoutRule) Expand(window Interval) ([]Interval, error) {
	if r.Duration <= 0 {
		return nil, &InvalidIntervalError{Start: r.Start, End: r.Start.Add(r.Duration)}
	}
	rr, err := rrule.StrToRRule(r.Rule)
	if err != nil {
		return nil, fmt.Errorf("parsing blackout rule %q: %w", r.Name, err)
	}
	rr.DTStart(r.Start)

	// An occurrence starting before the window can still reach into it.
	var out []Interval
	for _, occ := range rr.Between(window.Start.Add(-r.Duration), window.End, true) {
		iv := Interval{Start: occ, End: occ.Add(r.Duration)}
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out, nil
}

// ExpandBlackouts expands every rule over the window and returns the
// combined busy intervals.
func ExpandBlackouts(rules []BlackoutRule, window Interval) ([]Interval, error) {
	var out []Interval
	for _, r := range rules {
		occ, err := r.Expand(window)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	return out, nil
}
