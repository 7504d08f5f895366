package asyncrt

// Context is the per-poll bundle handed to a task. The executor reuses one
// Context for every poll, so futures must copy the waker out if they need it
// after Poll returns.
type Context struct {
	waker Waker
}

// NewContext builds a context around an arbitrary waker. The executor never
// needs it; it exists for hosts that drive futures by hand.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker of the task being polled.
func (cx *Context) Waker() Waker {
	if cx == nil {
		return Waker{}
	}
	return cx.waker
}

// executorOf resolves the executor behind the current poll, panicking on a
// foreign waker.
func (cx *Context) executorOf() *Executor {
	return TaskFromWaker(cx.Waker()).exec
}
