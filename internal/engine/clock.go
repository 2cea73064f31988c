package engine

import "time"

// Clock provides the current time for records and retry backoff
type Clock func() time.Time

// Now returns the current wall time from Engine's configured clock
func (e *Engine) Now() time.Time {
	return e.clock()
}
