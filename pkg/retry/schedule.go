package retry

import (
	"math/rand/v2"
	"time"
)

// DefaultReconnectDelays is the reconnect ladder used by the stream client.
var DefaultReconnectDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
}

// DefaultMaxJitter bounds the random delay added to every scheduled attempt.
const DefaultMaxJitter = 500 * time.Millisecond

// Schedule is a table-driven backoff. Attempt n waits Delays[n] clamped to the
// last entry, plus up to MaxJitter of random jitter.
type Schedule struct {
	Delays    []time.Duration
	MaxJitter time.Duration

	// Jitter returns a value in [0, n). Nil uses math/rand/v2.
	Jitter func(n int64) int64
}

// DefaultSchedule returns the 1s..30s reconnect ladder with 500ms jitter.
func DefaultSchedule() Schedule {
	delays := make([]time.Duration, len(DefaultReconnectDelays))
	copy(delays, DefaultReconnectDelays)
	return Schedule{Delays: delays, MaxJitter: DefaultMaxJitter}
}

// Base returns the un-jittered delay for a zero-based attempt index.
func (s Schedule) Base(attempt int) time.Duration {
	if len(s.Delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s.Delays) {
		attempt = len(s.Delays) - 1
	}
	return s.Delays[attempt]
}

// Delay returns the jittered delay for a zero-based attempt index.
func (s Schedule) Delay(attempt int) time.Duration {
	d := s.Base(attempt)
	if s.MaxJitter <= 0 {
		return d
	}
	jitter := s.Jitter
	if jitter == nil {
		jitter = rand.Int64N
	}
	return d + time.Duration(jitter(int64(s.MaxJitter)))
}

// Clamp bounds an attempt counter to the last table index so it never grows unbounded.
func (s Schedule) Clamp(attempt int) int {
	if attempt < 0 {
		return 0
	}
	if last := len(s.Delays) - 1; attempt > last {
		if last < 0 {
			return 0
		}
		return last
	}
	return attempt
}
