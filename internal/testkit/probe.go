package testkit

import (
	"sync"
	"sync/atomic"

	"ember/internal/asyncrt"
)

// Probe is a scripted future that records how it is driven. It completes on
// poll number ReadyAt (1-based); zero never completes.
type Probe struct {
	Name    string
	ReadyAt int64
	// OnPoll runs inside each poll before the outcome is decided.
	OnPoll func(n int64, cx *asyncrt.Context)

	polls atomic.Int64
	mu    sync.Mutex
	waker asyncrt.Waker
	order *Recorder
}

// NewProbe returns a probe that completes on poll readyAt.
func NewProbe(name string, readyAt int64) *Probe {
	return &Probe{Name: name, ReadyAt: readyAt}
}

// Record makes the probe append its name to r on every poll.
func (p *Probe) Record(r *Recorder) *Probe {
	p.order = r
	return p
}

func (p *Probe) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	n := p.polls.Add(1)
	p.mu.Lock()
	p.waker = cx.Waker().Clone()
	p.mu.Unlock()
	if p.order != nil {
		p.order.Add(p.Name)
	}
	if p.OnPoll != nil {
		p.OnPoll(n, cx)
	}
	if p.ReadyAt > 0 && n >= p.ReadyAt {
		return asyncrt.PollReady
	}
	return asyncrt.PollPending
}

// Polls returns how many times the probe was polled.
func (p *Probe) Polls() int64 { return p.polls.Load() }

// Waker returns the waker seen on the latest poll.
func (p *Probe) Waker() asyncrt.Waker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waker
}

// Recorder collects poll order across probes.
type Recorder struct {
	mu    sync.Mutex
	names []string
}

// Add appends one entry.
func (r *Recorder) Add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

// Names returns a copy of the recorded order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// Flag is a boolean condition flipped from any goroutine. Tasks await it
// with Wait.
type Flag struct {
	set    atomic.Bool
	waiter asyncrt.WakerRegistration
}

// Set flips the flag and wakes the waiter, as an interrupt handler would.
func (f *Flag) Set() {
	f.set.Store(true)
	f.waiter.Wake()
}

// IsSet reports the flag value.
func (f *Flag) IsSet() bool { return f.set.Load() }

// Wait returns a future that completes once the flag is set.
func (f *Flag) Wait() *FlagWait {
	return &FlagWait{flag: f}
}

// FlagWait is the future returned by Flag.Wait.
type FlagWait struct {
	flag  *Flag
	polls int
}

func (w *FlagWait) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	w.polls++
	if w.flag.set.Load() {
		return asyncrt.PollReady
	}
	w.flag.waiter.Register(cx.Waker())
	if w.flag.set.Load() {
		return asyncrt.PollReady
	}
	return asyncrt.PollPending
}

// Polls returns how many times the wait was polled. Executor goroutine only.
func (w *FlagWait) Polls() int { return w.polls }
