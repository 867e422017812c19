package ai

import (
	"context"
	"time"
)

// Attempts is the per-operation retry policy. It counts attempts at one
// logical operation; which API key each attempt uses is the client's
// business, not this policy's.
type Attempts struct {
	Max   int
	Delay time.Duration

	// Sleep replaces time.Sleep (tests)
	Sleep func(time.Duration)
}

// Do calls fn until it reports success or Max attempts are used. The
// delay is applied between attempts, never after the last one. attempt
// is 1-based.
func (a Attempts) Do(ctx context.Context, fn func(attempt int) bool) bool {
	max := a.Max
	if max < 1 {
		max = 1
	}
	sleep := a.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 1; attempt <= max; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if fn(attempt) {
			return true
		}
		if attempt < max && a.Delay > 0 {
			sleep(a.Delay)
		}
	}
	return false
}
