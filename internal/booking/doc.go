// Package booking turns calendar data into booking decisions.
//
// The Planner fetches busy intervals for the calendars involved in a
// booking, folds in locally configured constraints (business hours,
// recurring blackouts), and runs the scheduling engine over the result:
// availability checks, ranked slot proposals, and guarded event creation
// that re-verifies the slot right before writing.
//
// The Planner talks to the calendar through a narrow interface so tests
// can substitute a fixture instead of the Google API.
package booking
