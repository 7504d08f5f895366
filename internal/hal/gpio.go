package hal

import (
	"sync/atomic"

	"ember/internal/asyncrt"
)

// Level is a logic level on a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// String returns the string representation of Level.
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Input is an edge-detecting input pin. The outside world drives it with
// Drive, normally from an interrupt handler; a task awaits edges.
type Input struct {
	level  atomic.Bool
	edges  atomic.Uint64
	waiter asyncrt.WakerRegistration
}

// NewInput returns a pin resting at initial.
func NewInput(initial Level) *Input {
	p := &Input{}
	p.level.Store(bool(initial))
	return p
}

// Drive sets the pin level and wakes the waiter on a change.
func (p *Input) Drive(l Level) {
	if p.level.Swap(bool(l)) == bool(l) {
		return
	}
	p.edges.Add(1)
	p.waiter.Wake()
}

// Level returns the current level.
func (p *Input) Level() Level { return Level(p.level.Load()) }

// IsHigh reports whether the pin reads high.
func (p *Input) IsHigh() bool { return p.level.Load() }

// IsLow reports whether the pin reads low.
func (p *Input) IsLow() bool { return !p.level.Load() }

// Edges returns the number of level changes seen so far.
func (p *Input) Edges() uint64 { return p.edges.Load() }

// WaitForAnyEdge returns a future that completes on the first level change
// after its first poll.
func (p *Input) WaitForAnyEdge() *EdgeWait {
	return &EdgeWait{pin: p}
}

// WaitForLevel completes once the pin reads l, immediately if it already does.
func (p *Input) WaitForLevel(l Level) *LevelWait {
	return &LevelWait{pin: p, want: l}
}

// EdgeWait is the future returned by WaitForAnyEdge.
type EdgeWait struct {
	pin   *Input
	mark  uint64
	armed bool
}

func (w *EdgeWait) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if !w.armed {
		w.mark = w.pin.edges.Load()
		w.armed = true
	}
	if w.pin.edges.Load() != w.mark {
		return asyncrt.PollReady
	}
	w.pin.waiter.Register(cx.Waker())
	if w.pin.edges.Load() != w.mark {
		return asyncrt.PollReady
	}
	return asyncrt.PollPending
}

// Cancel drops the pin registration.
func (w *EdgeWait) Cancel() { w.pin.waiter.Unregister() }

// LevelWait is the future returned by WaitForLevel.
type LevelWait struct {
	pin  *Input
	want Level
}

func (w *LevelWait) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if w.pin.Level() == w.want {
		return asyncrt.PollReady
	}
	w.pin.waiter.Register(cx.Waker())
	if w.pin.Level() == w.want {
		return asyncrt.PollReady
	}
	return asyncrt.PollPending
}

// Cancel drops the pin registration.
func (w *LevelWait) Cancel() { w.pin.waiter.Unregister() }

// Output is a push-pull output pin.
type Output struct {
	level   atomic.Bool
	toggles atomic.Uint64
}

// NewOutput returns a pin driven to initial.
func NewOutput(initial Level) *Output {
	p := &Output{}
	p.level.Store(bool(initial))
	return p
}

// Set drives the pin, counting changes.
func (p *Output) Set(l Level) {
	if p.level.Swap(bool(l)) != bool(l) {
		p.toggles.Add(1)
	}
}

func (p *Output) SetHigh() { p.Set(High) }
func (p *Output) SetLow()  { p.Set(Low) }

// Toggle inverts the pin.
func (p *Output) Toggle() { p.Set(!p.Level()) }

// Level returns the driven level.
func (p *Output) Level() Level { return Level(p.level.Load()) }

// Toggles returns how many times the level changed.
func (p *Output) Toggles() uint64 { return p.toggles.Load() }
