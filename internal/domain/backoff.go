package domain

import "time"

// Backoff defaults
const (
	DefaultBaseInterval = 10 * time.Second
	DefaultCapInterval  = 60 * time.Second

	// MaxBackoffExponent bounds the doubling: delays stop growing after 2^3 * base
	MaxBackoffExponent = 3
)

// Backoff tracks reconnect pacing across attempts
type Backoff struct {
	ConsecutiveFailures  uint
	LastAttempt          time.Time
	BaseInterval         time.Duration
	CapInterval          time.Duration
	ManuallyDisconnected bool
}

// NewBackoff returns a Backoff with the given intervals, falling back to defaults for zero values
func NewBackoff(base, capInterval time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultBaseInterval
	}
	if capInterval <= 0 {
		capInterval = DefaultCapInterval
	}
	return &Backoff{BaseInterval: base, CapInterval: capInterval}
}

// Delay returns min(base * 2^min(failures, 3), cap)
func (b *Backoff) Delay() time.Duration {
	exp := b.ConsecutiveFailures
	if exp > MaxBackoffExponent {
		exp = MaxBackoffExponent
	}
	d := b.BaseInterval << exp
	if d > b.CapInterval {
		d = b.CapInterval
	}
	return d
}

// Due reports whether a retry may start at now. It is false while manually disconnected.
func (b *Backoff) Due(now time.Time) bool {
	if b.ManuallyDisconnected {
		return false
	}
	return now.Sub(b.LastAttempt) > b.Delay()
}

// Attempt records the start of a connection attempt
func (b *Backoff) Attempt(now time.Time) {
	b.LastAttempt = now
}

// Fail records a failed or terminated attempt. Failures are not counted while
// manually disconnected.
func (b *Backoff) Fail() {
	if b.ManuallyDisconnected {
		return
	}
	b.ConsecutiveFailures++
}

// Succeed resets the failure count after a successful open
func (b *Backoff) Succeed() {
	b.ConsecutiveFailures = 0
}

// Reset clears failures and the manual flag, as an explicit user connect does
func (b *Backoff) Reset() {
	b.ConsecutiveFailures = 0
	b.LastAttempt = time.Time{}
	b.ManuallyDisconnected = false
}
