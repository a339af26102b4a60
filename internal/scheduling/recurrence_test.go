package scheduling

import (
	"testing"
	"time"
)

func TestBlackoutRuleExpand(t *testing.T) {
	lunch := BlackoutRule{
		Name:     "lunch",
		Rule:     "FREQ=DAILY",
		Start:    time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
		Duration: time.Hour,
	}
	window := Interval{
		Start: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	}

	got, err := lunch.Expand(window)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expand() returned %d occurrences, want 3", len(got))
	}
	for i, iv := range got {
		wantStart := time.Date(2026, time.March, 2+i, 12, 0, 0, 0, time.UTC)
		if !iv.Start.Equal(wantStart) || iv.Duration() != time.Hour {
			t.Errorf("occurrence %d = %v, want start %v duration 1h", i, iv, wantStart)
		}
	}
}

func TestBlackoutRuleExpandWeekly(t *testing.T) {
	// March 2, 2026 is a Monday.
	standup := BlackoutRule{
		Name:     "standup",
		Rule:     "FREQ=WEEKLY;BYDAY=MO,WE",
		Start:    time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		Duration: 15 * time.Minute,
	}
	window := Interval{
		Start: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
	}

	got, err := standup.Expand(window)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expand() returned %d occurrences, want 2 (Mon, Wed)", len(got))
	}
	if got[0].Start.Weekday() != time.Monday || got[1].Start.Weekday() != time.Wednesday {
		t.Errorf("weekdays = %v, %v, want Monday, Wednesday", got[0].Start.Weekday(), got[1].Start.Weekday())
	}
}

func TestBlackoutRuleExpandOutsideWindow(t *testing.T) {
	rule := BlackoutRule{
		Name:     "one-off",
		Rule:     "FREQ=DAILY;COUNT=1",
		Start:    time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		Duration: time.Hour,
	}
	window := Interval{
		Start: time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
	}

	got, err := rule.Expand(window)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expand() = %v, want no occurrences", got)
	}
}

func TestBlackoutRuleInvalid(t *testing.T) {
	bad := BlackoutRule{Name: "bad", Rule: "FREQ=NEVER", Start: time.Now(), Duration: time.Hour}
	window := Interval{Start: time.Now(), End: time.Now().Add(24 * time.Hour)}
	if _, err := bad.Expand(window); err == nil {
		t.Error("Expand() with malformed rule expected error")
	}

	zero := BlackoutRule{Name: "zero", Rule: "FREQ=DAILY", Start: time.Now()}
	if _, err := zero.Expand(window); err == nil {
		t.Error("Expand() with zero duration expected error")
	}
}

func TestExpandBlackoutsCombines(t *testing.T) {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	rules := []BlackoutRule{
		{Name: "lunch", Rule: "FREQ=DAILY", Start: day.Add(12 * time.Hour), Duration: time.Hour},
		{Name: "review", Rule: "FREQ=DAILY", Start: day.Add(16 * time.Hour), Duration: 30 * time.Minute},
	}
	window := Interval{Start: day, End: day.Add(24 * time.Hour)}

	got, err := ExpandBlackouts(rules, window)
	if err != nil {
		t.Fatalf("ExpandBlackouts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ExpandBlackouts() returned %d intervals, want 2", len(got))
	}

	cal, err := Normalize(got)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cal.IsFree(Interval{Start: day.Add(12*time.Hour + 30*time.Minute), End: day.Add(13 * time.Hour)}) {
		t.Error("lunch blackout not busy")
	}
}
