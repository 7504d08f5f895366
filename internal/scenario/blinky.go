package scenario

import (
	"context"
	"runtime"
	"time"

	"ember/internal/asyncrt"
	"ember/internal/hal"
)

func init() {
	register(Scenario{
		Name:    "blinky",
		Summary: "button interrupt drives an LED; a status LED blinks until the presses are done",
		Main:    blinkyMain,
	})
}

// blinkyMain wires a button on irq0 to an input pin. The LED follows the
// button level on every edge. A second LED blinks every period until the
// button task signals it has seen all presses.
func blinkyMain(env *Env) (asyncrt.Future, error) {
	p := env.Params
	button := hal.NewInput(hal.Low)
	led := hal.NewOutput(hal.Low)
	status := hal.NewOutput(hal.Low)

	line := env.IRQ.Line(0)
	line.Attach(func(int) {
		button.Drive(!button.Level())
	})
	env.Go(func(ctx context.Context) error {
		return pressButton(ctx, line, 2*p.Presses, p.PressInterval.Duration)
	})

	btn := &buttonTask{pin: button, led: led, want: uint64(2 * p.Presses)}
	blink := &statusTask{
		led: status,
		sel: asyncrt.Select(asyncrt.NewTicker(p.PeriodMs), btn.done.Wait()),
	}
	return &blinkyTask{
		env:  env,
		join: asyncrt.Join(btn, blink),
		btn:  btn,
		led:  led,
		stat: blink,
		line: line,
	}, nil
}

// pressButton toggles the line level count times, one toggle per interval.
func pressButton(ctx context.Context, line *hal.Line, count int, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for i := 0; i < count; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else {
			if err := ctx.Err(); err != nil {
				return err
			}
			runtime.Gosched()
		}
		line.Trigger()
	}
	return nil
}

type blinkyTask struct {
	env  *Env
	join *asyncrt.JoinSet
	btn  *buttonTask
	led  *hal.Output
	stat *statusTask
	line *hal.Line
}

func (t *blinkyTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if t.join.Poll(cx) == asyncrt.PollPending {
		return asyncrt.PollPending
	}
	t.env.Set("edges", t.btn.seen)
	t.env.Set("led_toggles", t.led.Toggles())
	t.env.Set("status_blinks", t.stat.blinks)
	t.env.Set("irq_fired", t.line.Fired())
	return asyncrt.PollReady
}

// buttonTask mirrors the button onto the LED until want edges were seen.
// Edges are counted from the pin, so edges that coalesce between polls are
// not lost.
type buttonTask struct {
	pin  *hal.Input
	led  *hal.Output
	want uint64
	seen uint64
	wait *hal.EdgeWait
	done asyncrt.Signal
}

func (b *buttonTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	for {
		b.seen = b.pin.Edges()
		if b.seen >= b.want {
			b.led.Set(b.pin.Level())
			b.done.Raise(b.seen)
			return asyncrt.PollReady
		}
		if b.wait == nil {
			b.wait = b.pin.WaitForAnyEdge()
		}
		if b.wait.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		b.wait = nil
		b.led.Set(b.pin.Level())
	}
}

type statusTask struct {
	led    *hal.Output
	sel    *asyncrt.Select2[*asyncrt.Ticker, *asyncrt.SignalWait]
	blinks uint64
}

func (s *statusTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	for {
		if s.sel.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		if s.sel.Winner == asyncrt.SelectSecond {
			s.led.SetLow()
			return asyncrt.PollReady
		}
		s.led.Toggle()
		s.blinks++
		s.sel.Winner = asyncrt.SelectNone
	}
}
