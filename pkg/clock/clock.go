// Package clock provides the process-wide monotonic time origin shared by
// every other fabric component. All inter-component timestamps are derived
// from a single Clock so that plugins loaded as independent compilation
// units can compare times without coordinating wall-clock offsets.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TimePoint is a duration since the clock's start instant.
type TimePoint = time.Duration

// Duration is an alias kept distinct in name only for readability at call
// sites that compute differences between two TimePoints.
type Duration = time.Duration

// Clock is the single relative monotonic time source for a runtime. The
// zero value is not started; call Start exactly once before any Now call.
type Clock struct {
	started atomic.Bool
	origin  time.Time
}

// New returns an unstarted Clock.
func New() *Clock {
	return &Clock{}
}

// Start captures a monotonic instant as the origin for all future Now
// calls. The contract is "called exactly once, by the runtime driver, after
// all plugins are constructed, before ready is signalled." Calling it more
// than once is harmless but only the first call's instant is kept.
func (c *Clock) Start() {
	if c.started.CompareAndSwap(false, true) {
		c.origin = time.Now()
	}
}

// IsStarted reports whether Start has been called.
func (c *Clock) IsStarted() bool {
	return c.started.Load()
}

// Now returns the time elapsed since Start. Calling Now before Start is a
// programming error and panics, mirroring the source's terminate-on-misuse
// contract.
func (c *Clock) Now() TimePoint {
	if !c.started.Load() {
		panic(fmt.Errorf("clock: Now called before Start"))
	}
	return time.Since(c.origin)
}

// StartTime is always the zero TimePoint; it exists so callers can express
// "the moment the clock was started" symbolically rather than as a literal.
func (c *Clock) StartTime() TimePoint {
	return 0
}

// AbsoluteNS converts a TimePoint produced by this clock back into
// nanoseconds since the Unix epoch, for correlating with externally
// recorded wall-clock timestamps (e.g. sensor datasets).
func (c *Clock) AbsoluteNS(relative TimePoint) int64 {
	return c.origin.UnixNano() + relative.Nanoseconds()
}
