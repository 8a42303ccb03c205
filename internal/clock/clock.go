// Package clock supplies the logical time used for auction end-time checks.
// Logical time is expressed in unix seconds.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current logical time
type Clock interface {
	Now() int64
}

// SystemClock reads the host wall clock
type SystemClock struct{}

// Now returns the current unix time in seconds
func (SystemClock) Now() int64 {
	return time.Now().UTC().Unix()
}

// ManualClock is a settable clock for tests and benchmarks
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a clock fixed at now
func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now. Moving backwards is ignored so time stays non-decreasing.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}

// Advance moves the clock forward by d seconds
func (c *ManualClock) Advance(d int64) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
