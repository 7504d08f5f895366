package hal

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Handler runs in simulated interrupt context: on whatever goroutine
// triggered the line, concurrently with the executor loop.
type Handler func(line int)

// Line is one simulated interrupt request line.
type Line struct {
	index   int
	name    string
	handler atomic.Pointer[Handler]
	masked  atomic.Bool
	fired   atomic.Uint64
	dropped atomic.Uint64
}

// Name returns the line label.
func (l *Line) Name() string { return l.name }

// Attach installs h, replacing any previous handler.
func (l *Line) Attach(h Handler) {
	if h == nil {
		l.handler.Store(nil)
		return
	}
	l.handler.Store(&h)
}

// Mask stops the handler from running; triggers are counted as dropped.
func (l *Line) Mask() { l.masked.Store(true) }

// Unmask re-enables the line.
func (l *Line) Unmask() { l.masked.Store(false) }

// Trigger raises the line on the calling goroutine.
func (l *Line) Trigger() bool {
	h := l.handler.Load()
	if h == nil || l.masked.Load() {
		l.dropped.Add(1)
		return false
	}
	l.fired.Add(1)
	(*h)(l.index)
	return true
}

// Fired returns how many triggers reached the handler.
func (l *Line) Fired() uint64 { return l.fired.Load() }

// Dropped returns how many triggers were masked or unhandled.
func (l *Line) Dropped() uint64 { return l.dropped.Load() }

// Controller owns a fixed set of lines, allocated once.
type Controller struct {
	lines []Line
}

// NewController allocates n lines named irq0..irqN-1.
func NewController(n int) *Controller {
	c := &Controller{lines: make([]Line, n)}
	for i := range c.lines {
		c.lines[i].index = i
		c.lines[i].name = fmt.Sprintf("irq%d", i)
	}
	return c
}

// Len returns the number of lines.
func (c *Controller) Len() int { return len(c.lines) }

// Line returns line i. It panics on an out-of-range index like a bad vector.
func (c *Controller) Line(i int) *Line {
	return &c.lines[i]
}

// Storm triggers each listed line perLine times, one goroutine per line, and
// waits for all of them. It stops early when ctx is cancelled.
func (c *Controller) Storm(ctx context.Context, lines []int, perLine int) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, idx := range lines {
		if idx < 0 || idx >= len(c.lines) {
			return fmt.Errorf("irq line %d out of range [0,%d)", idx, len(c.lines))
		}
		line := &c.lines[idx]
		g.Go(func() error {
			for i := 0; i < perLine; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				line.Trigger()
			}
			return nil
		})
	}
	return g.Wait()
}
