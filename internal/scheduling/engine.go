package scheduling

import (
	"sort"
	"time"
)

// DefaultMaxProposals caps FindSlots results when the caller passes no limit.
const DefaultMaxProposals = 10

// Normalize turns raw busy intervals into a Calendar: sorted by start, with
// overlapping and touching intervals coalesced. The input is not mutated.
// Any invalid interval rejects the whole input. Normalizing an already
// normalized busy set returns it unchanged.
func Normalize(busy []Interval) (Calendar, error) {
	for _, iv := range busy {
		if !iv.Start.Before(iv.End) {
			return Calendar{}, &InvalidIntervalError{Start: iv.Start, End: iv.End}
		}
	}

	sorted := make([]Interval, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].End.Before(sorted[j].End)
	})

	merged := sorted[:0]
	for _, iv := range sorted {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return Calendar{busy: merged}, nil
}

// IsFree reports whether the candidate interval overlaps no busy interval.
func (c Calendar) IsFree(candidate Interval) bool {
	_, conflict := c.Conflict(candidate)
	return !conflict
}

// Conflict returns the first busy interval, in start order, that overlaps
// the candidate.
func (c Calendar) Conflict(candidate Interval) (Interval, bool) {
	for _, b := range c.busy {
		if !b.Start.Before(candidate.End) {
			break
		}
		if b.Overlaps(candidate) {
			return b, true
		}
	}
	return Interval{}, false
}

// Gaps returns the free intervals inside the window, in start order: the
// complement of the busy set clipped to the window.
func (c Calendar) Gaps(window Interval) []Interval {
	var gaps []Interval
	cursor := window.Start
	for _, b := range c.busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			end := b.Start
			if end.After(window.End) {
				end = window.End
			}
			gaps = append(gaps, Interval{Start: cursor, End: end})
		}
		cursor = b.End
		if !cursor.Before(window.End) {
			return gaps
		}
	}
	if cursor.Before(window.End) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}

// FindSlots proposes up to maxResults bookable slots for the request,
// best-ranked first. A free slot at exactly the desired start always ranks
// 0. Remaining candidates are enumerated inside free gaps and ranked by
// proximity to the desired start when one is given, otherwise earliest
// first; slots wholly inside the preferred clock range win ties.
//
// maxResults <= 0 means DefaultMaxProposals. When no gap can hold the
// duration and the desired start is not free, the error is a
// *NoAvailabilityError.
func FindSlots(c Calendar, req Request, maxResults int) ([]Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxProposals
	}
	step := req.Step
	if step <= 0 {
		step = req.Duration
	}

	var candidates []Interval
	for _, gap := range c.Gaps(req.Window) {
		if gap.Duration() < req.Duration {
			continue
		}
		for start := gap.Start; !start.Add(req.Duration).After(gap.End); start = start.Add(step) {
			candidates = append(candidates, Interval{Start: start, End: start.Add(req.Duration)})
		}
	}

	var desired *Interval
	if req.DesiredStart != nil {
		slot := Interval{Start: *req.DesiredStart, End: req.DesiredStart.Add(req.Duration)}
		if slot.Within(req.Window) && c.IsFree(slot) {
			desired = &slot
		}
	}

	if len(candidates) == 0 && desired == nil {
		return nil, &NoAvailabilityError{Window: req.Window, Duration: req.Duration}
	}

	sort.SliceStable(candidates, slotLess(req, candidates))

	proposals := make([]Proposal, 0, maxResults)
	if desired != nil {
		proposals = append(proposals, Proposal{Slot: *desired, Rank: 0})
	}
	for _, cand := range candidates {
		if len(proposals) == maxResults {
			break
		}
		if desired != nil && cand.Start.Equal(desired.Start) {
			continue
		}
		proposals = append(proposals, Proposal{Slot: cand, Rank: len(proposals)})
	}
	return proposals, nil
}

// slotLess orders candidates: proximity to the desired start when set,
// preferred-range containment, then start time.
func slotLess(req Request, candidates []Interval) func(i, j int) bool {
	distance := func(iv Interval) time.Duration {
		d := iv.Start.Sub(*req.DesiredStart)
		if d < 0 {
			d = -d
		}
		return d
	}
	preferred := func(iv Interval) int {
		if req.Preferred != nil && req.Preferred.Contains(iv) {
			return 0
		}
		return 1
	}
	return func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if req.DesiredStart != nil {
			da, db := distance(a), distance(b)
			if da != db {
				return da < db
			}
		}
		if pa, pb := preferred(a), preferred(b); pa != pb {
			return pa < pb
		}
		return a.Start.Before(b.Start)
	}
}
