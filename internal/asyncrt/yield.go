package asyncrt

// Yield returns a future that suspends once and wakes itself, letting every
// other queued task run before the caller continues.
func Yield() *YieldNow {
	return &YieldNow{}
}

// YieldNow is the future returned by Yield.
type YieldNow struct {
	yielded bool
}

func (y *YieldNow) Poll(cx *Context) PollOutcome {
	if y.yielded {
		return PollReady
	}
	y.yielded = true
	cx.Waker().WakeByRef()
	return PollPending
}
