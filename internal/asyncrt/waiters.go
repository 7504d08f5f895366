package asyncrt

import "sync/atomic"

// WaiterSet holds up to a fixed number of executor tasks waiting on the same
// condition, one pointer per slot. Only executor wakers can be stored.
type WaiterSet struct {
	slots []atomic.Pointer[TaskHeader]
}

// NewWaiterSet allocates a set with n slots.
func NewWaiterSet(n int) *WaiterSet {
	if n < 1 {
		n = 1
	}
	return &WaiterSet{slots: make([]atomic.Pointer[TaskHeader], n)}
}

// Register adds the task behind w. When every slot is taken the current
// waiters are woken and evicted so they re-register on their next poll.
//
// Panics with *ProvenanceError for a foreign waker.
func (s *WaiterSet) Register(w Waker) {
	t := TaskFromWaker(w)
	for {
		free := -1
		for i := range s.slots {
			cur := s.slots[i].Load()
			if cur == t {
				return
			}
			if cur == nil && free < 0 {
				free = i
			}
		}
		if free >= 0 {
			if s.slots[free].CompareAndSwap(nil, t) {
				return
			}
			continue
		}
		s.WakeAll()
	}
}

// WakeAll drains the set and wakes every waiter. It returns how many woke.
func (s *WaiterSet) WakeAll() int {
	n := 0
	for i := range s.slots {
		if t := s.slots[i].Swap(nil); t != nil {
			wakeIfLive(t)
			n++
		}
	}
	return n
}

// Remove drops the task behind w without waking it.
func (s *WaiterSet) Remove(w Waker) {
	if !IsTaskWaker(w) {
		return
	}
	t := TaskFromWaker(w)
	for i := range s.slots {
		s.slots[i].CompareAndSwap(t, nil)
	}
}

// Len returns the number of registered waiters.
func (s *WaiterSet) Len() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].Load() != nil {
			n++
		}
	}
	return n
}
