package asyncrt

import "sync/atomic"

const cacheLinePad = 64

type chanCell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// Channel is a bounded multi-producer, single-consumer queue. Any goroutine
// may TrySend; tasks use Send and Recv futures. Capacity is rounded up to a
// power of two and every cell is allocated by NewChannel.
//
// Slots follow the sequence-number scheme: a cell whose sequence equals the
// tail is free, one whose sequence equals head+1 holds a value.
type Channel[T any] struct {
	head  atomic.Uint64
	_     [cacheLinePad]byte
	tail  atomic.Uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []chanCell[T]

	closed  atomic.Bool
	recv    WakerRegistration
	senders *WaiterSet
}

// NewChannel allocates a channel. senderSlots bounds how many tasks may wait
// for space at once; extra waiters are rotated through the slots.
func NewChannel[T any](capacity, senderSlots int) *Channel[T] {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	ch := &Channel[T]{
		mask:    uint64(size - 1),
		cells:   make([]chanCell[T], size),
		senders: NewWaiterSet(senderSlots),
	}
	for i := range ch.cells {
		ch.cells[i].sequence.Store(uint64(i))
	}
	return ch
}

// Cap returns the rounded capacity.
func (ch *Channel[T]) Cap() int { return len(ch.cells) }

// Len returns an approximate number of buffered values.
func (ch *Channel[T]) Len() int {
	return int(ch.tail.Load() - ch.head.Load())
}

// TrySend enqueues v without waiting. It returns ErrChannelClosed or
// ErrChannelFull when v was not accepted.
func (ch *Channel[T]) TrySend(v T) error {
	if ch.closed.Load() {
		return ErrChannelClosed
	}
	for {
		tail := ch.tail.Load()
		c := &ch.cells[tail&ch.mask]
		dif := int64(c.sequence.Load()) - int64(tail)
		switch {
		case dif == 0:
			if ch.tail.CompareAndSwap(tail, tail+1) {
				c.data = v
				c.sequence.Store(tail + 1)
				ch.recv.Wake()
				return nil
			}
		case dif < 0:
			return ErrChannelFull
		}
	}
}

// TryRecv dequeues one value. Only the consuming task may call it.
func (ch *Channel[T]) TryRecv() (T, bool) {
	var zero T
	for {
		head := ch.head.Load()
		c := &ch.cells[head&ch.mask]
		dif := int64(c.sequence.Load()) - int64(head+1)
		switch {
		case dif == 0:
			if ch.head.CompareAndSwap(head, head+1) {
				v := c.data
				c.data = zero
				c.sequence.Store(head + ch.mask + 1)
				ch.senders.WakeAll()
				return v, true
			}
		case dif < 0:
			return zero, false
		}
	}
}

// Close stops further sends. Buffered values can still be received.
func (ch *Channel[T]) Close() {
	if ch.closed.Swap(true) {
		return
	}
	ch.recv.Wake()
	ch.senders.WakeAll()
}

// Closed reports whether Close was called.
func (ch *Channel[T]) Closed() bool { return ch.closed.Load() }

// Recv returns a future resolving to the next value.
func (ch *Channel[T]) Recv() *ChannelRecv[T] {
	return &ChannelRecv[T]{ch: ch}
}

// Send returns a future that waits for space and enqueues v.
func (ch *Channel[T]) Send(v T) *ChannelSend[T] {
	return &ChannelSend[T]{ch: ch, value: v}
}

// ChannelRecv resolves with Value, or with Closed set once the channel is
// closed and drained.
type ChannelRecv[T any] struct {
	ch     *Channel[T]
	Value  T
	Closed bool
}

func (r *ChannelRecv[T]) poll() bool {
	if v, ok := r.ch.TryRecv(); ok {
		r.Value = v
		return true
	}
	if r.ch.closed.Load() {
		// a send may have landed between TryRecv and the closed check
		if v, ok := r.ch.TryRecv(); ok {
			r.Value = v
			return true
		}
		r.Closed = true
		return true
	}
	return false
}

func (r *ChannelRecv[T]) Poll(cx *Context) PollOutcome {
	if r.poll() {
		return PollReady
	}
	r.ch.recv.Register(cx.Waker())
	if r.poll() {
		return PollReady
	}
	return PollPending
}

// Cancel drops the receive registration.
func (r *ChannelRecv[T]) Cancel() { r.ch.recv.Unregister() }

// ChannelSend resolves once the value is queued, or with Err set to
// ErrChannelClosed.
type ChannelSend[T any] struct {
	ch    *Channel[T]
	value T
	waker Waker
	Err   error
}

func (s *ChannelSend[T]) poll() bool {
	switch err := s.ch.TrySend(s.value); err {
	case nil:
		return true
	case ErrChannelClosed:
		s.Err = err
		return true
	default:
		return false
	}
}

func (s *ChannelSend[T]) Poll(cx *Context) PollOutcome {
	if s.poll() {
		return PollReady
	}
	s.waker = cx.Waker()
	s.ch.senders.Register(s.waker)
	if s.poll() {
		s.ch.senders.Remove(s.waker)
		return PollReady
	}
	return PollPending
}

// Cancel drops the pending send registration.
func (s *ChannelSend[T]) Cancel() {
	if !s.waker.IsZero() {
		s.ch.senders.Remove(s.waker)
	}
}
