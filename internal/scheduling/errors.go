package scheduling

import (
	"fmt"
	"time"
)

// InvalidIntervalError reports an interval whose start does not precede its
// end. Normalize rejects the whole input when any interval is invalid.
type InvalidIntervalError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: start %s must precede end %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// InvalidRequestError reports a booking request that can never be satisfied
// regardless of calendar contents.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid slot request: %s", e.Reason)
}

// NoAvailabilityError reports that no free gap inside the search window can
// hold the requested duration. It is recoverable: callers typically widen
// the window or relax the request and retry.
type NoAvailabilityError struct {
	Window   Interval
	Duration time.Duration
}

func (e *NoAvailabilityError) Error() string {
	return fmt.Sprintf("no free slot of %s between %s and %s", e.Duration,
		e.Window.Start.Format(time.RFC3339), e.Window.End.Format(time.RFC3339))
}
