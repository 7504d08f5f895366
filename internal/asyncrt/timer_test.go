package asyncrt

import (
	"context"
	"testing"
	"time"
)

func TestSleepFiresAtDeadline(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	pool := NewTaskPool[*Timer]("sleep", 1)
	ref, err := pool.Spawn(e.Spawner(), Sleep(100))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	e.RunUntilIdle()
	if e.PendingTimers() != 1 {
		t.Fatalf("pending timers = %d, want 1", e.PendingTimers())
	}
	clk.Advance(99)
	e.RunUntilIdle()
	if ref.Done() {
		t.Fatalf("timer fired early at %d", clk.NowMs())
	}
	clk.Advance(1)
	e.RunUntilIdle()
	if !ref.Done() {
		t.Fatalf("timer did not fire at %d", clk.NowMs())
	}
	if got := e.Stats().TimerFires; got != 1 {
		t.Fatalf("timer fires = %d, want 1", got)
	}
}

func TestBlockAdvancesVirtualClock(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	pool := NewTaskPool[*Timer]("sleep", 2)
	a, _ := pool.Spawn(e.Spawner(), Sleep(250))
	b, _ := pool.Spawn(e.Spawner(), At(40))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Block(ctx, func() bool { return a.Done() && b.Done() }); err != nil {
		t.Fatalf("block: %v", err)
	}
	if got := clk.NowMs(); got != 250 {
		t.Fatalf("clock = %d, want 250", got)
	}
	if got := e.Stats().Parks; got != 0 {
		t.Fatalf("virtual clock run parked %d times", got)
	}
}

func TestTickerSkipsMissedPeriods(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	tk := NewTicker(10)
	ticks := 0
	pool := NewTaskPool[FutureFunc]("tick", 1)
	_, err := pool.Spawn(e.Spawner(), FutureFunc(func(cx *Context) PollOutcome {
		for tk.Poll(cx) == PollReady {
			ticks++
		}
		return PollPending
	}))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	e.RunUntilIdle()
	clk.Advance(35)
	e.RunUntilIdle()
	if ticks != 1 {
		t.Fatalf("ticks = %d, want 1", ticks)
	}
	if got := tk.timer.Deadline(); got != 40 {
		t.Fatalf("next deadline = %d, want 40", got)
	}
	clk.Advance(5)
	e.RunUntilIdle()
	if ticks != 2 {
		t.Fatalf("ticks = %d, want 2", ticks)
	}
}

func TestTickerCompletesTaskAfterThreeTicks(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	tk := NewTicker(10)
	ticks := 0
	pool := NewTaskPool[FutureFunc]("tick", 1)
	ref, _ := pool.Spawn(e.Spawner(), FutureFunc(func(cx *Context) PollOutcome {
		for tk.Poll(cx) == PollReady {
			ticks++
			if ticks == 3 {
				tk.Cancel()
				return PollReady
			}
		}
		return PollPending
	}))

	if err := e.Block(context.Background(), ref.Done); err != nil {
		t.Fatalf("block: %v", err)
	}
	if got := clk.NowMs(); got != 30 {
		t.Fatalf("clock = %d, want 30", got)
	}
}

func TestMsToDurationSaturates(t *testing.T) {
	if got := msToDuration(3); got != 3*time.Millisecond {
		t.Fatalf("msToDuration(3) = %v", got)
	}
	if got := msToDuration(^uint64(0)); got <= 0 {
		t.Fatalf("msToDuration(max) overflowed to %v", got)
	}
}

func TestParkKeepsVirtualTimeWhileWorkIsQueued(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	timers := NewTaskPool[*Timer]("sleep", 1)
	if _, err := timers.Spawn(e.Spawner(), Sleep(100)); err != nil {
		t.Fatalf("spawn timer: %v", err)
	}
	e.RunUntilIdle()

	// work pushed by a host goroutine after the last claim
	pool := NewTaskPool[*scriptFuture]("late", 1)
	ref, err := pool.Spawn(e.Spawner(), &scriptFuture{readyAt: 1})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	e.park()
	if got := clk.NowMs(); got != 0 {
		t.Fatalf("clock advanced to %d with work queued", got)
	}
	e.Poll()
	if !ref.Done() {
		t.Fatal("queued task not polled")
	}
	e.park()
	if got := clk.NowMs(); got != 100 {
		t.Fatalf("clock = %d after idle park, want 100", got)
	}
}
