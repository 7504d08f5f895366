package asyncrt

import (
	"math"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// TimerMode controls whether timers use virtual or real time.
type TimerMode uint8

const (
	TimerModeReal TimerMode = iota
	TimerModeVirtual
)

// String returns the string representation of TimerMode.
func (m TimerMode) String() string {
	if m == TimerModeVirtual {
		return "virtual"
	}
	return "real"
}

// Clock supplies time for the timer queue.
type Clock interface {
	NowMs() uint64
	// AdvanceTo jumps a virtual clock to deadlineMs and reports true.
	// Real clocks report false and the executor parks instead.
	AdvanceTo(deadlineMs uint64) bool
}

// VirtualClock only moves when the executor runs out of ready work or a test
// advances it, which makes timer interleavings reproducible.
type VirtualClock struct {
	now atomic.Uint64
}

func (c *VirtualClock) NowMs() uint64 {
	if c == nil {
		return 0
	}
	return c.now.Load()
}

func (c *VirtualClock) AdvanceTo(deadlineMs uint64) bool {
	if c == nil {
		return false
	}
	for {
		cur := c.now.Load()
		if deadlineMs <= cur || c.now.CompareAndSwap(cur, deadlineMs) {
			return true
		}
	}
}

// Advance moves the clock forward by deltaMs.
func (c *VirtualClock) Advance(deltaMs uint64) {
	if c == nil {
		return
	}
	c.now.Add(deltaMs)
}

// RealClock reads monotonic time relative to its creation.
// NowFunc overrides the source when set.
type RealClock struct {
	NowFunc func() uint64
	start   time.Time
}

// NewRealClock returns a clock anchored at the current instant.
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

func (c *RealClock) NowMs() uint64 {
	if c == nil {
		return 0
	}
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	ms, err := safecast.Conv[uint64](time.Since(c.start).Milliseconds())
	if err != nil {
		return 0
	}
	return ms
}

func (c *RealClock) AdvanceTo(uint64) bool { return false }

// msToDuration converts a millisecond delta, saturating instead of overflowing.
func msToDuration(deltaMs uint64) time.Duration {
	maxMs := uint64(math.MaxInt64 / int64(time.Millisecond))
	if deltaMs > maxMs {
		deltaMs = maxMs
	}
	delay, err := safecast.Conv[int64](deltaMs)
	if err != nil {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay) * time.Millisecond
}
