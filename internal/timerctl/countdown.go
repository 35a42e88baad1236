package timerctl

import (
	"sync"
	"time"
)

// Countdown is an in-process Timer. It is safe for concurrent use, so a
// status handler can read it while the client loop drives it.
type Countdown struct {
	mu         sync.Mutex
	now        func() time.Time
	duration   time.Duration
	remaining  time.Duration
	startedAt  time.Time
	running    bool
	endMessage string
}

// NewCountdown creates a stopped countdown of duration. now defaults to time.Now.
func NewCountdown(duration time.Duration, now func() time.Time) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{now: now, duration: duration, remaining: duration}
}

// Start runs the countdown, resuming from where it was stopped
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.remaining <= 0 {
		return
	}
	c.running = true
	c.startedAt = c.now()
}

// Stop pauses the countdown
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.remainingLocked()
	c.running = false
}

// SetDuration sets the value the next Reset returns to
func (c *Countdown) SetDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = d
}

// Reset stops the countdown at its full duration
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.remaining = c.duration
}

// SetEndMessage implements EndMessageSetter
func (c *Countdown) SetEndMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endMessage = msg
}

// CountdownState is a point-in-time view of a Countdown
type CountdownState struct {
	Running    bool          `json:"isRunning"`
	Paused     bool          `json:"isPaused"`
	Remaining  time.Duration `json:"-"`
	Seconds    int64         `json:"remainingSeconds"`
	Finished   bool          `json:"finished"`
	EndMessage string        `json:"endMessage,omitempty"`
}

// State returns the current view
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.remainingLocked()
	running := c.running && remaining > 0
	return CountdownState{
		Running:    running,
		Paused:     !running && remaining > 0 && remaining < c.duration,
		Remaining:  remaining,
		Seconds:    int64((remaining + time.Second - 1) / time.Second),
		Finished:   remaining <= 0,
		EndMessage: c.endMessage,
	}
}

func (c *Countdown) remainingLocked() time.Duration {
	if !c.running {
		return c.remaining
	}
	left := c.remaining - c.now().Sub(c.startedAt)
	if left < 0 {
		return 0
	}
	return left
}
