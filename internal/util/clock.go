package util

import "time"

// Clock abstracts wall and monotonic time so the engine and its tests can
// inject a fake. The zero value is unusable; use NewSystemClock.
type Clock interface {
	Now() time.Time
	NowUs() int64
}

type systemClock struct{ start time.Time }

// NewSystemClock returns a Clock backed by the real wall clock, with NowUs
// measured as microseconds elapsed since the clock was constructed.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() time.Time { return time.Now() }

func (c *systemClock) NowUs() int64 {
	return time.Since(c.start).Microseconds()
}
