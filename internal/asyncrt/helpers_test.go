package asyncrt

import "testing"

// scriptFuture completes on poll readyAt (0 never completes).
type scriptFuture struct {
	polls   int
	readyAt int
	onPoll  func(n int, cx *Context)
}

func (f *scriptFuture) Poll(cx *Context) PollOutcome {
	f.polls++
	if f.onPoll != nil {
		f.onPoll(f.polls, cx)
	}
	if f.readyAt > 0 && f.polls >= f.readyAt {
		return PollReady
	}
	return PollPending
}

func newTestExecutor(cfg Config) (*Executor, *VirtualClock) {
	clk := &VirtualClock{}
	return New(cfg, WithClock(clk)), clk
}

func spawnScript(t *testing.T, e *Executor, pool *TaskPool[*scriptFuture], f *scriptFuture) TaskRef {
	t.Helper()
	ref, err := pool.Spawn(e.Spawner(), f)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return ref
}

func expectPanic[T any](t *testing.T, fn func()) T {
	t.Helper()
	var got T
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected panic of type %T", got)
			}
			v, ok := r.(T)
			if !ok {
				t.Fatalf("panic value %T (%v), want %T", r, r, got)
			}
			got = v
		}()
		fn()
	}()
	return got
}
