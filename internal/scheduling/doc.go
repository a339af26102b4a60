// Package scheduling implements availability reconciliation over busy
// calendar intervals.
//
// The package is pure: no I/O, no clocks, no shared state. Callers fetch
// busy intervals elsewhere, normalize them into a Calendar, and query it:
//
//   - Normalize sorts and coalesces raw busy intervals into a canonical,
//     non-overlapping busy set
//   - Calendar.IsFree and Calendar.Conflict answer point queries for a
//     candidate interval
//   - FindSlots proposes ranked free slots for a booking request
//   - BlackoutRule expands recurring blocks (RRULE) into busy intervals
//
// All intervals are half-open [start, end): an interval ending at 10:00
// never conflicts with one starting at 10:00. Identical inputs always
// produce identical outputs, so results can be recomputed instead of
// cached.
package scheduling
