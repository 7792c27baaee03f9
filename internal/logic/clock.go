package logic

import "time"

// Clock supplies the monotonic ticks used by the core. Both ticks wrap;
// callers compare them with unsigned subtraction only.
type Clock interface {
	Millis() uint32
	Micros() uint32
}

// MonotonicClock counts from its creation using the runtime's monotonic clock.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock starts a clock at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func (c *MonotonicClock) Micros() uint32 {
	return uint32(time.Since(c.start).Microseconds())
}

// MicrosFromDuration truncates a monotonic duration (such as a kernel event
// timestamp) to a wrapping microsecond tick.
func MicrosFromDuration(d time.Duration) uint32 {
	return uint32(d.Microseconds())
}
