package asyncrt

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"ember/internal/trace"
)

// Executor runs tasks on a single goroutine. Any goroutine may wake or spawn
// tasks; only the goroutine inside Poll/Run/Block consumes the run queue.
type Executor struct {
	cfg    Config
	queue  RunQueue
	parker Parker
	clock  Clock
	tracer trace.Tracer
	timers timerQueue
	cx     Context
	rng    *rand.Rand
	batch  []*TaskHeader
	nextID atomic.Uint64
	active atomic.Bool
	stats  counters
	runID  uint64
}

// Config configures executor scheduling behavior.
type Config struct {
	// Name labels trace events.
	Name string
	// Fuzz shuffles each claimed batch with a deterministic seed.
	Fuzz bool
	Seed uint64
	// TimerCapacity pre-sizes the timer heap.
	TimerCapacity int
}

// Option customises an Executor at construction.
type Option func(*Executor)

// WithParker installs the low-power wait collaborator.
func WithParker(p Parker) Option {
	return func(e *Executor) {
		if p != nil {
			e.parker = p
		}
	}
}

// WithClock installs the time source used by timers.
func WithClock(c Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithTracer installs a tracer. The wake path never traces.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New constructs an executor. Without options it parks on a ChanParker and
// reads a RealClock.
func New(cfg Config, opts ...Option) *Executor {
	if cfg.Name == "" {
		cfg.Name = "executor"
	}
	if cfg.TimerCapacity <= 0 {
		cfg.TimerCapacity = 64
	}
	e := &Executor{
		cfg:    cfg,
		parker: NewChanParker(),
		clock:  NewRealClock(),
		tracer: trace.Nop,
	}
	e.timers.heap = make(timerHeap, 0, cfg.TimerCapacity)
	for _, opt := range opts {
		opt(e)
	}
	if cfg.Fuzz {
		seed := cfg.Seed
		if seed == 0 {
			seed = 1
		}
		e.rng = rand.New(rand.NewSource(int64(seed))) //nolint:gosec // deterministic scheduler seed
	}
	return e
}

// Spawner returns a spawner bound to this executor.
func (e *Executor) Spawner() Spawner {
	return Spawner{exec: e}
}

// Clock returns the executor time source.
func (e *Executor) Clock() Clock {
	return e.clock
}

// Tracer returns the executor tracer.
func (e *Executor) Tracer() trace.Tracer {
	return e.tracer
}

// enqueueWoken links a task that a wake just moved to TaskQueued and kicks
// the parker. Called from arbitrary goroutines.
func (e *Executor) enqueueWoken(t *TaskHeader) {
	e.queue.push(t)
	e.stats.wakes.Add(1)
	e.parker.Unpark()
}

// Poll runs one pass: fire due timers, claim the run queue, and poll every
// claimed task once. It returns the number of tasks polled.
func (e *Executor) Poll() int {
	if n := e.timers.fire(e.clock.NowMs()); n > 0 {
		e.stats.timerFires.Add(uint64(n))
	}
	batch := e.queue.Claim()
	size := batch.Len()
	if size == 0 {
		return 0
	}
	e.stats.claims.Add(1)
	e.stats.observeBatch(size)

	var span *trace.Span
	if e.tracer.Level().ShouldEmit(trace.ScopeClaim) {
		span = trace.Begin(e.tracer, trace.ScopeClaim, "claim", e.runID)
	}
	if e.rng != nil {
		e.pollShuffled(&batch)
	} else {
		for t := batch.Pop(); t != nil; t = batch.Pop() {
			e.pollTask(t)
		}
	}
	if span != nil {
		span.WithExtra("tasks", strconv.Itoa(size)).End("")
	}
	return size
}

func (e *Executor) pollShuffled(batch *Batch) {
	e.batch = e.batch[:0]
	for t := batch.Pop(); t != nil; t = batch.Pop() {
		e.batch = append(e.batch, t)
	}
	e.rng.Shuffle(len(e.batch), func(i, j int) {
		e.batch[i], e.batch[j] = e.batch[j], e.batch[i]
	})
	for i, t := range e.batch {
		e.batch[i] = nil
		e.pollTask(t)
	}
}

func (e *Executor) pollTask(t *TaskHeader) {
	t.markRunning()

	var span *trace.Span
	if e.tracer.Level().ShouldEmit(trace.ScopeTask) {
		span = trace.Begin(e.tracer, trace.ScopeTask, "poll", e.runID)
		span.WithExtra("task", strconv.FormatUint(uint64(t.ID()), 10))
	}

	e.cx.waker = taskWaker(t)
	out := t.poll(t, &e.cx)
	e.cx.waker = Waker{}
	e.stats.polls.Add(1)

	if out == PollReady {
		t.settleReady()
		e.stats.completions.Add(1)
		e.stats.live.Add(-1)
		if t.release != nil {
			t.release(t)
		}
	} else if t.settlePending() {
		e.queue.push(t)
		e.stats.requeues.Add(1)
	}

	if span != nil {
		span.End(out.String())
	}
}

// Run drives the executor until ctx is cancelled, parking whenever a pass
// finds no ready task. Embedded hosts pass a context that is never cancelled.
func (e *Executor) Run(ctx context.Context) error {
	return e.Block(ctx, nil)
}

// Block drives the executor until done reports true after a pass or ctx is
// cancelled. A nil done never finishes.
func (e *Executor) Block(ctx context.Context, done func() bool) error {
	if !e.active.CompareAndSwap(false, true) {
		return ErrExecutorRunning
	}
	defer e.active.Store(false)

	stop := context.AfterFunc(ctx, e.parker.Unpark)
	defer stop()

	span := trace.Begin(e.tracer, trace.ScopeRuntime, "run:"+e.cfg.Name, 0)
	e.runID = span.ID()
	defer func() { e.runID = 0 }()

	for {
		if err := ctx.Err(); err != nil {
			span.End(err.Error())
			return err
		}
		polled := e.Poll()
		if done != nil && done() {
			span.End("done")
			return nil
		}
		if polled > 0 {
			continue
		}
		e.park()
	}
}

// RunUntilIdle polls until a pass finds nothing ready and no timer is due.
// It never parks and returns the number of polls performed. Calling it while
// Run or Block drives the executor panics with ErrExecutorRunning.
func (e *Executor) RunUntilIdle() int {
	if !e.active.CompareAndSwap(false, true) {
		panic(ErrExecutorRunning)
	}
	defer e.active.Store(false)

	total := 0
	for {
		n := e.Poll()
		total += n
		if n > 0 {
			continue
		}
		if deadline, ok := e.timers.next(); ok && deadline <= e.clock.NowMs() {
			continue
		}
		if !e.queue.Empty() {
			continue
		}
		return total
	}
}

// park waits for a wake or the earliest timer deadline. A virtual clock is
// advanced to the deadline instead of sleeping, but never while work that
// arrived after the last claim is still queued.
func (e *Executor) park() {
	if !e.queue.Empty() {
		return
	}
	timeout := time.Duration(-1)
	if deadline, ok := e.timers.next(); ok {
		now := e.clock.NowMs()
		if deadline <= now {
			return
		}
		if e.clock.AdvanceTo(deadline) {
			return
		}
		timeout = msToDuration(deadline - now)
	}
	e.stats.parks.Add(1)
	if e.tracer.Level().ShouldEmit(trace.ScopeLoop) {
		trace.Point(e.tracer, trace.ScopeLoop, "park", e.runID, timeout.String())
	}
	e.parker.Park(timeout)
}

// PendingTimers returns the number of scheduled timer entries. Only
// meaningful on the executor goroutine.
func (e *Executor) PendingTimers() int {
	return e.timers.len()
}

// counters is updated with atomics so Stats can be sampled from any goroutine.
type counters struct {
	spawns      atomic.Uint64
	polls       atomic.Uint64
	claims      atomic.Uint64
	parks       atomic.Uint64
	wakes       atomic.Uint64
	requeues    atomic.Uint64
	completions atomic.Uint64
	timerFires  atomic.Uint64
	maxBatch    atomic.Uint64
	live        atomic.Int64
}

func (c *counters) observeBatch(size int) {
	n := uint64(size)
	for {
		cur := c.maxBatch.Load()
		if n <= cur || c.maxBatch.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Stats is a point-in-time copy of executor counters.
type Stats struct {
	Spawns      uint64
	Polls       uint64
	Claims      uint64
	Parks       uint64
	Wakes       uint64
	Requeues    uint64
	Completions uint64
	TimerFires  uint64
	MaxBatch    uint64
	Live        int64
}

// Stats samples the counters. Safe from any goroutine.
func (e *Executor) Stats() Stats {
	return Stats{
		Spawns:      e.stats.spawns.Load(),
		Polls:       e.stats.polls.Load(),
		Claims:      e.stats.claims.Load(),
		Parks:       e.stats.parks.Load(),
		Wakes:       e.stats.wakes.Load(),
		Requeues:    e.stats.requeues.Load(),
		Completions: e.stats.completions.Load(),
		TimerFires:  e.stats.timerFires.Load(),
		MaxBatch:    e.stats.maxBatch.Load(),
		Live:        e.stats.live.Load(),
	}
}
