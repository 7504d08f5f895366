package asyncrt

import "sync/atomic"

// WakerRegistration holds at most one waiter for a driver-side condition.
//
// Executor wakers are stored as a bare task pointer. A foreign waker is
// cloned into a separate slot, which costs one allocation per registration.
// Wake may be called from any goroutine concurrently with Register.
type WakerRegistration struct {
	task    atomic.Pointer[TaskHeader]
	foreign atomic.Pointer[Waker]
}

// Register installs w as the waiter. A different waiter that was already
// registered is woken so it can re-register on its next poll.
func (r *WakerRegistration) Register(w Waker) {
	if w.IsZero() {
		return
	}
	if IsTaskWaker(w) {
		t := TaskFromWaker(w)
		if prev := r.task.Swap(t); prev != nil && prev != t {
			wakeIfLive(prev)
		}
		if f := r.foreign.Swap(nil); f != nil {
			f.Wake()
		}
		return
	}
	if cur := r.foreign.Load(); cur != nil && cur.WillWakeSame(w) {
		return
	}
	c := w.Clone()
	if prev := r.foreign.Swap(&c); prev != nil {
		prev.Wake()
	}
	if t := r.task.Swap(nil); t != nil {
		wakeIfLive(t)
	}
}

// Wake takes the registered waiter, if any, and wakes it.
func (r *WakerRegistration) Wake() bool {
	woke := false
	if t := r.task.Swap(nil); t != nil {
		wakeIfLive(t)
		woke = true
	}
	if f := r.foreign.Swap(nil); f != nil {
		f.Wake()
		woke = true
	}
	return woke
}

// Unregister drops the waiter without waking it.
func (r *WakerRegistration) Unregister() {
	r.task.Store(nil)
	if f := r.foreign.Swap(nil); f != nil {
		f.Drop()
	}
}

// Registered reports whether a waiter is installed.
func (r *WakerRegistration) Registered() bool {
	return r.task.Load() != nil || r.foreign.Load() != nil
}
