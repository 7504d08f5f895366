package hal

import (
	"context"
	"testing"
	"time"

	"ember/internal/asyncrt"
)

func TestInputEdgeWakesTask(t *testing.T) {
	e := asyncrt.New(asyncrt.Config{Name: "gpio"})
	button := NewInput(High)
	led := NewOutput(Low)
	ctrl := NewController(1)
	ctrl.Line(0).Attach(func(int) { button.Drive(!button.Level()) })

	edges := 0
	var wait *EdgeWait
	pool := asyncrt.NewTaskPool[asyncrt.FutureFunc]("blinky", 1)
	ref, err := pool.Spawn(e.Spawner(), asyncrt.FutureFunc(func(cx *asyncrt.Context) asyncrt.PollOutcome {
		for {
			if wait == nil {
				wait = button.WaitForAnyEdge()
			}
			if wait.Poll(cx) == asyncrt.PollPending {
				return asyncrt.PollPending
			}
			wait = nil
			edges++
			if button.IsLow() {
				led.SetHigh()
			} else {
				led.SetLow()
			}
			if edges == 4 {
				return asyncrt.PollReady
			}
		}
	}))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	e.Poll()

	go func() {
		for i := 0; i < 4; i++ {
			for !button.waiter.Registered() {
				time.Sleep(100 * time.Microsecond)
			}
			ctrl.Line(0).Trigger()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Block(ctx, ref.Done); err != nil {
		t.Fatalf("block: %v", err)
	}
	if button.Edges() != 4 || led.Toggles() != 4 {
		t.Fatalf("edges=%d toggles=%d, want 4 and 4", button.Edges(), led.Toggles())
	}
	if ctrl.Line(0).Fired() != 4 {
		t.Fatalf("irq fired %d", ctrl.Line(0).Fired())
	}
}

func TestWaitForLevelReadyImmediately(t *testing.T) {
	pin := NewInput(Low)
	cx := asyncrt.NewContext(asyncrt.Waker{})
	if pin.WaitForLevel(Low).Poll(cx) != asyncrt.PollReady {
		t.Fatalf("level wait pending on matching level")
	}
}

func TestOutputCountsChanges(t *testing.T) {
	out := NewOutput(Low)
	out.SetLow()
	out.SetHigh()
	out.Toggle()
	out.Toggle()
	if out.Toggles() != 3 || out.Level() != High {
		t.Fatalf("toggles=%d level=%s", out.Toggles(), out.Level())
	}
}
