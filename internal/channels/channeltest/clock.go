// Package channeltest provides deterministic fakes for testing realtime
// channels: a manual clock, a recording dialer and scriptable transports.
package channeltest

import (
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/newton/internal/channels"
)

// Clock is a manual channels.Clock. Timers fire only through Advance or
// Timer.Fire.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*Timer
}

// NewClock returns a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Timer is a timer scheduled on a Clock.
type Timer struct {
	clock   *Clock
	seq     int
	Delay   time.Duration
	due     time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) channels.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &Timer{clock: c, seq: c.seq, Delay: d, due: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer. It reports whether the timer was still pending.
func (t *Timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Fire runs the timer now if it is still pending.
func (t *Timer) Fire() bool {
	t.clock.mu.Lock()
	if t.stopped || t.fired {
		t.clock.mu.Unlock()
		return false
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.fn()
	return true
}

// Pending returns timers that have neither fired nor been stopped, in
// creation order.
func (c *Clock) Pending() []*Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// PendingWithDelay returns pending timers scheduled with delay d.
func (c *Clock) PendingWithDelay(d time.Duration) []*Timer {
	var out []*Timer
	for _, t := range c.Pending() {
		if t.Delay == d {
			out = append(out, t)
		}
	}
	return out
}

// Delays returns the delay of every timer ever scheduled, in order.
func (c *Clock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.Delay
	}
	return out
}

// Advance moves the clock forward by d, firing due timers in deadline order.
// Timers scheduled by fired callbacks also fire if they fall due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*Timer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.due.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].due.Equal(due[j].due) {
				return due[i].seq < due[j].seq
			}
			return due[i].due.Before(due[j].due)
		})
		next := due[0]
		c.now = next.due
		c.mu.Unlock()
		next.Fire()
	}
}
