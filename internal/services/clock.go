package services

import "time"

// RoundClock bounds a round to a fixed wall-clock duration. It is set once
// at round start and never paused; remaining time is recomputed from the
// start timestamp on every poll, so a suspended client cannot stretch the
// round.
type RoundClock struct {
	Start    time.Time
	Duration time.Duration
}

// Remaining returns the time left at now, clamped at zero for display.
func (c RoundClock) Remaining(now time.Time) time.Duration {
	left := c.Duration - now.Sub(c.Start)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the round is over at now.
func (c RoundClock) Expired(now time.Time) bool {
	return now.Sub(c.Start) >= c.Duration
}
