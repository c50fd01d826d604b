// Package timing provides the clocks that pace playback.
package timing

import (
	"sync"
	"time"
)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() time.Time
}

// A Sleeper blocks the calling goroutine for a duration.
type Sleeper interface {
	Sleep(d time.Duration)
}

// A Clock tells time and sleeps.
type Clock interface {
	TimeTeller
	Sleeper
}

// WallClock is the real clock.
type WallClock struct{}

// NewWallClock creates a WallClock.
func NewWallClock() WallClock {
	return WallClock{}
}

// Now returns the current wall-clock time.
func (WallClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for at least d.
func (WallClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	time.Sleep(d)
}

// A ManualClock never blocks. Sleeping advances its time instantly, so it can
// stand in for the wall clock where only the sequence of delays matters.
type ManualClock struct {
	lock   sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewManualClock creates a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the simulated time.
func (c *ManualClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.now
}

// Sleep advances the simulated time by d.
func (c *ManualClock) Sleep(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *ManualClock) Sleeps() []time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()

	dup := make([]time.Duration, len(c.sleeps))
	copy(dup, c.sleeps)

	return dup
}

// Elapsed returns the total simulated time slept since the clock was created.
func (c *ManualClock) Elapsed() time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()

	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}

	return total
}
