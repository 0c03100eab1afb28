package timer

import (
	"sync"
	"time"
)

// Countdown is a restartable one-shot timer with explicit start, reset and
// stop operations. Every Start or Reset arms the full window again; Stop
// cancels a pending fire. The callback runs on the timer goroutine, so it
// must hand results off (e.g. into a message channel) rather than touch
// UI state directly.
type Countdown struct {
	mu         sync.Mutex
	duration   time.Duration
	fn         func()
	timer      *time.Timer
	generation int
	running    bool
}

// NewCountdown creates a countdown that invokes fn when the window elapses.
// The countdown starts stopped.
func NewCountdown(duration time.Duration, fn func()) *Countdown {
	return &Countdown{
		duration: duration,
		fn:       fn,
	}
}

// Start arms the countdown for the full window, restarting it if already
// running.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	gen := c.generation

	if c.timer != nil {
		c.timer.Stop()
	}

	c.running = true
	c.timer = time.AfterFunc(c.duration, func() {
		// A fire that lost the race against Stop/Start is stale
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.running = false
		c.mu.Unlock()

		c.fn()
	})
}

// Reset restarts the full window. Identical to Start; named for call sites
// where the countdown is known to be running.
func (c *Countdown) Reset() {
	c.Start()
}

// Stop cancels a pending fire. Safe to call when not running.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
}

// Running reports whether a fire is pending
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
