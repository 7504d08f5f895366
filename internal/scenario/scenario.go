// Package scenario holds runnable workloads for the executor. Each scenario
// builds its tasks from asyncrt primitives and the simulated board in hal;
// Boot wires an executor from config and drives one scenario to completion.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ember/internal/asyncrt"
	"ember/internal/config"
	"ember/internal/hal"
	"ember/internal/trace"
)

// IRQLines is the number of interrupt lines on the simulated board.
const IRQLines = 8

// MainFunc builds the initial task of a scenario. It runs before the
// executor starts, on the booting goroutine.
type MainFunc func(env *Env) (asyncrt.Future, error)

// Scenario is a named workload.
type Scenario struct {
	Name    string
	Summary string
	Main    MainFunc
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := registry[s.Name]; dup {
		panic("scenario: duplicate registration of " + s.Name)
	}
	registry[s.Name] = s
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, Names())
	}
	return s, nil
}

// Names lists registered scenarios in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Env is handed to a scenario's main function and its tasks.
type Env struct {
	Exec     *asyncrt.Executor
	Spawner  asyncrt.Spawner
	Params   config.ScenarioConfig
	PoolSize int
	IRQ      *hal.Controller

	hostCtx context.Context
	host    *errgroup.Group

	mu      sync.Mutex
	metrics map[string]uint64
	failure error
}

// Go starts a host goroutine, which plays the part of interrupt sources and
// peripherals. Its context is cancelled once the main task completes.
func (env *Env) Go(fn func(ctx context.Context) error) {
	env.host.Go(func() error { return fn(env.hostCtx) })
}

// Set records a scenario metric.
func (env *Env) Set(key string, v uint64) {
	env.mu.Lock()
	env.metrics[key] = v
	env.mu.Unlock()
}

// Add increments a scenario metric.
func (env *Env) Add(key string, delta uint64) {
	env.mu.Lock()
	env.metrics[key] += delta
	env.mu.Unlock()
}

// Fail records the first scenario failure. The main task still has to
// complete for the run to end.
func (env *Env) Fail(err error) {
	env.mu.Lock()
	if env.failure == nil {
		env.failure = err
	}
	env.mu.Unlock()
}

// NowMs reads the executor clock.
func (env *Env) NowMs() uint64 { return env.Exec.Clock().NowMs() }

// Result describes a finished boot.
type Result struct {
	Scenario string
	Stats    asyncrt.Stats
	ClockMs  uint64
	Wall     time.Duration
	Metrics  map[string]uint64
}

// BootOption customises Boot.
type BootOption func(*bootOptions)

type bootOptions struct {
	onStart func(*asyncrt.Executor)
	tracer  trace.Tracer
}

// OnStart runs fn after the executor is built and the main task spawned,
// before the loop starts. Used to attach samplers.
func OnStart(fn func(*asyncrt.Executor)) BootOption {
	return func(o *bootOptions) { o.onStart = fn }
}

// WithTracer overrides the tracer taken from the boot context.
func WithTracer(t trace.Tracer) BootOption {
	return func(o *bootOptions) { o.tracer = t }
}

// Boot builds an executor from cfg, spawns the scenario's main task in
// static storage, and runs the loop until that task completes or ctx ends.
func Boot(ctx context.Context, cfg config.Config, sc Scenario, opts ...BootOption) (*Result, error) {
	var o bootOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = trace.FromContext(ctx)
	}

	kind, err := hal.ParseParkerKind(cfg.Executor.Parker)
	if err != nil {
		return nil, err
	}
	parker, closer, err := hal.NewParker(kind)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	virtual, err := cfg.TimerVirtual()
	if err != nil {
		return nil, err
	}
	var clock asyncrt.Clock = asyncrt.NewRealClock()
	if virtual {
		clock = &asyncrt.VirtualClock{}
	}

	exec := asyncrt.New(asyncrt.Config{
		Name:          sc.Name,
		Fuzz:          cfg.Executor.Fuzz,
		Seed:          cfg.Executor.Seed,
		TimerCapacity: 2*cfg.Scenario.Tasks + 8,
	}, asyncrt.WithParker(parker), asyncrt.WithClock(clock), asyncrt.WithTracer(o.tracer))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	host, hostCtx := errgroup.WithContext(runCtx)

	env := &Env{
		Exec:     exec,
		Spawner:  exec.Spawner(),
		Params:   cfg.Scenario,
		PoolSize: cfg.Executor.PoolSize,
		IRQ:      hal.NewController(IRQLines),
		hostCtx:  hostCtx,
		host:     host,
		metrics:  make(map[string]uint64),
	}

	main, err := sc.Main(env)
	if err != nil {
		cancel()
		_ = host.Wait()
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	var storage asyncrt.TaskStorage[asyncrt.Future]
	ref, err := storage.Spawn(env.Spawner, main)
	if err != nil {
		cancel()
		_ = host.Wait()
		return nil, err
	}
	trace.Point(o.tracer, trace.ScopeRuntime, "boot", 0, sc.Name+" task "+strconv.FormatUint(uint64(ref.ID()), 10))
	if o.onStart != nil {
		o.onStart(exec)
	}

	start := time.Now()
	runErr := exec.Block(hostCtx, ref.Done)
	wall := time.Since(start)
	cancel()
	hostErr := host.Wait()

	res := &Result{
		Scenario: sc.Name,
		Stats:    exec.Stats(),
		ClockMs:  clock.NowMs(),
		Wall:     wall,
	}
	env.mu.Lock()
	res.Metrics = maps.Clone(env.metrics)
	failure := env.failure
	env.mu.Unlock()

	if hostErr != nil && !errors.Is(hostErr, context.Canceled) {
		return res, fmt.Errorf("scenario %s: host: %w", sc.Name, hostErr)
	}
	if runErr != nil {
		return res, fmt.Errorf("scenario %s: %w", sc.Name, runErr)
	}
	if failure != nil {
		return res, fmt.Errorf("scenario %s: %w", sc.Name, failure)
	}
	return res, nil
}

// latch completes once Done has been called the configured number of times.
// Done may run on any goroutine.
type latch struct {
	left   atomic.Int64
	waiter asyncrt.WakerRegistration
}

func newLatch(n int) *latch {
	l := &latch{}
	l.left.Store(int64(n))
	return l
}

func (l *latch) Done() {
	if l.left.Add(-1) == 0 {
		l.waiter.Wake()
	}
}

func (l *latch) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if l.left.Load() <= 0 {
		return asyncrt.PollReady
	}
	l.waiter.Register(cx.Waker())
	if l.left.Load() <= 0 {
		return asyncrt.PollReady
	}
	return asyncrt.PollPending
}
