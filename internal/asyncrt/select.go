package asyncrt

// Canceler is implemented by futures that hold a registration which must be
// dropped when the future is abandoned before completing.
type Canceler interface {
	Cancel()
}

// SelectBranch identifies the winner of Select2.
type SelectBranch uint8

const (
	// SelectNone means no branch has completed yet.
	SelectNone SelectBranch = iota
	SelectFirst
	SelectSecond
)

// String returns the string representation of SelectBranch.
func (b SelectBranch) String() string {
	switch b {
	case SelectFirst:
		return "first"
	case SelectSecond:
		return "second"
	default:
		return "none"
	}
}

// Select2 completes when either future completes. The first future is polled
// first, so it wins when both are ready in the same poll. The loser is
// cancelled if it implements Canceler.
type Select2[A, B Future] struct {
	First  A
	Second B
	Winner SelectBranch
}

// Select returns a Select2 over a and b.
func Select[A, B Future](a A, b B) *Select2[A, B] {
	return &Select2[A, B]{First: a, Second: b}
}

func (s *Select2[A, B]) Poll(cx *Context) PollOutcome {
	if s.Winner != SelectNone {
		return PollReady
	}
	if s.First.Poll(cx) == PollReady {
		s.Winner = SelectFirst
		cancelFuture(s.Second)
		return PollReady
	}
	if s.Second.Poll(cx) == PollReady {
		s.Winner = SelectSecond
		cancelFuture(s.First)
		return PollReady
	}
	return PollPending
}

func cancelFuture(f Future) {
	if c, ok := f.(Canceler); ok {
		c.Cancel()
	}
}
