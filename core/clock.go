package core

import (
	"os"
	"time"
)

// Clock measures wall-clock elapsed time for one compile session or job,
// used for coarse timing instrumentation around the scheduler.
type Clock struct {
	startTime float64
	elapsed   float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Update refreshes elapsed time. Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.startTime != 0 {
		c.elapsed = float64(time.Now().UnixNano()) - c.startTime
	}
}

// Start resets and starts the clock.
func (c *Clock) Start() {
	c.startTime = float64(time.Now().UnixNano())
	c.elapsed = 0
}

// Stop halts the clock without resetting elapsed time.
func (c *Clock) Stop() {
	c.startTime = 0
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// FileUpToDate reports whether path exists, has non-zero size, and its
// modification time is at or after since. Used by the texture pipeline's
// IsUpToDate check (SPEC_FULL.md §4.4) — deliberately mtime-based rather
// than metadata-timestamp based, since the latter causes spurious rebuilds
// on platforms (iOS) that don't preserve file timestamps through their
// asset bundling step.
func FileUpToDate(path string, since time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Size() == 0 {
		return false
	}
	return !info.ModTime().Before(since)
}
