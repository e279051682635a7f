// Package backoff implements the reconnect schedule shared by the
// push-feed connectors: exponential delays for a bounded number of
// attempts, then an unbounded fixed-delay retry cycle.
package backoff

import "time"

// Policy describes a reconnect schedule.
type Policy struct {
	// Base is the first exponential delay; attempt n waits Base·2^(n-1).
	Base time.Duration
	// MaxAttempts bounds the exponential phase.
	MaxAttempts int
	// Extended is the fixed delay used once MaxAttempts is exceeded.
	Extended time.Duration
}

// DefaultPolicy matches the push-feed reconnect behavior: 5s, 10s,
// 20s, 40s, 80s, then every 30s indefinitely.
func DefaultPolicy() Policy {
	return Policy{
		Base:        5 * time.Second,
		MaxAttempts: 5,
		Extended:    30 * time.Second,
	}
}

// Schedule tracks reconnect attempts for one connection. Not safe for
// concurrent use; each connector owns one.
type Schedule struct {
	Policy

	attempts int
	extended bool
}

// NewSchedule creates a schedule for the given policy.
func NewSchedule(p Policy) *Schedule {
	return &Schedule{Policy: p}
}

// Next returns the delay before the next reconnect attempt. After
// MaxAttempts exponential delays it switches permanently (until Reset)
// to the Extended delay, resetting the attempt counter as it enters
// the fixed-delay cycle.
func (s *Schedule) Next() time.Duration {
	if s.extended {
		return s.Extended
	}

	s.attempts++
	if s.attempts > s.MaxAttempts {
		s.extended = true
		s.attempts = 0
		return s.Extended
	}

	return s.Base << (s.attempts - 1)
}

// Reset returns the schedule to the start of the exponential phase.
// Called after a successful connect.
func (s *Schedule) Reset() {
	s.attempts = 0
	s.extended = false
}
