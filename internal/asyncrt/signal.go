package asyncrt

import "sync/atomic"

// Signal carries the latest uint64 value from any goroutine to one waiting
// task. Raising twice before the task runs keeps only the second value.
//
// seq is even while value is stable and odd while a Raise is writing it.
// A Raise that finds another write in flight merges into it.
type Signal struct {
	value  atomic.Uint64
	seq    atomic.Uint64
	seen   uint64
	waiter WakerRegistration
}

// Raise stores v and wakes the waiter. Lock-free and allocation-free.
func (s *Signal) Raise(v uint64) {
	for {
		seq := s.seq.Load()
		if seq&1 == 1 {
			break
		}
		if s.seq.CompareAndSwap(seq, seq+1) {
			s.value.Store(v)
			s.seq.Store(seq + 2)
			break
		}
	}
	s.waiter.Wake()
}

// Take returns the latest value when one was raised since the last Take.
// Only the consuming task may call it. A write still in flight reports
// nothing; its Raise wakes the waiter once it lands.
func (s *Signal) Take() (uint64, bool) {
	for {
		seq := s.seq.Load()
		if seq&1 == 1 || seq == s.seen {
			return 0, false
		}
		v := s.value.Load()
		if s.seq.Load() != seq {
			continue
		}
		s.seen = seq
		return v, true
	}
}

// Pending reports whether a completed value is waiting to be taken.
func (s *Signal) Pending() bool {
	return s.seq.Load()-s.seen >= 2
}

// Wait returns a future that completes with the next raised value.
func (s *Signal) Wait() *SignalWait {
	return &SignalWait{sig: s}
}

// SignalWait resolves to the value of the next Raise.
type SignalWait struct {
	sig   *Signal
	Value uint64
}

func (w *SignalWait) Poll(cx *Context) PollOutcome {
	if v, ok := w.sig.Take(); ok {
		w.Value = v
		return PollReady
	}
	w.sig.waiter.Register(cx.Waker())
	// re-check: a Raise between Take and Register found no waiter
	if v, ok := w.sig.Take(); ok {
		w.Value = v
		return PollReady
	}
	return PollPending
}

// Cancel drops the registration.
func (w *SignalWait) Cancel() {
	w.sig.waiter.Unregister()
}
