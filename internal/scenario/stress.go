package scenario

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ember/internal/asyncrt"
)

// stressDone is the final value raised on every sink signal.
const stressDone = ^uint64(0)

func init() {
	register(Scenario{
		Name:    "stress",
		Summary: "producer goroutines and an interrupt storm hammer signal-waiting tasks",
		Main:    stressMain,
	})
}

// stressMain spawns one sink task per configured task, each waiting on its
// own Signal. Producer goroutines raise the signals round-robin while every
// interrupt line storms the sink it is attached to. Once all sources stop,
// each sink receives stressDone and completes; a lost wakeup shows up as a
// run that never ends.
func stressMain(env *Env) (asyncrt.Future, error) {
	n := env.Params.Tasks
	m := &stressMainTask{
		env:   env,
		pool:  asyncrt.NewTaskPool[*signalSink]("sinks", env.PoolSize),
		sinks: make([]*signalSink, n),
		done:  newLatch(n),
	}
	for i := range m.sinks {
		s := &signalSink{done: m.done}
		s.wait = s.sig.Wait()
		m.sinks[i] = s
	}
	return m, nil
}

type stressMainTask struct {
	env     *Env
	pool    *asyncrt.TaskPool[*signalSink]
	sinks   []*signalSink
	done    *latch
	spawned bool
}

func (m *stressMainTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if !m.spawned {
		m.spawned = true
		for _, s := range m.sinks {
			if _, err := m.pool.Spawn(m.env.Spawner, s); err != nil {
				m.env.Fail(err)
				return asyncrt.PollReady
			}
		}
		m.env.Go(m.drive)
	}
	if m.done.Poll(cx) == asyncrt.PollPending {
		return asyncrt.PollPending
	}
	var resumes uint64
	for _, s := range m.sinks {
		resumes += s.resumes
	}
	m.env.Set("resumes", resumes)
	return asyncrt.PollReady
}

// drive runs the interrupt sources on host goroutines, then raises the final
// value on every sink.
func (m *stressMainTask) drive(ctx context.Context) error {
	p := m.env.Params
	lines := min(m.env.IRQ.Len(), len(m.sinks))
	idx := make([]int, lines)
	for i := range idx {
		idx[i] = i
		sink := m.sinks[i]
		m.env.IRQ.Line(i).Attach(func(line int) {
			sink.sig.Raise(uint64(line) + 1)
		})
	}
	perProducer := max(p.Wakes/p.Producers, 1)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Producers; w++ {
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				m.sinks[(w+i)%len(m.sinks)].sig.Raise(uint64(i) + 1)
			}
			return nil
		})
	}
	g.Go(func() error {
		return m.env.IRQ.Storm(gctx, idx, perProducer)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var fired uint64
	for i := range idx {
		fired += m.env.IRQ.Line(i).Fired()
	}
	m.env.Set("irq_fired", fired)
	m.env.Set("raises", uint64(p.Producers*perProducer)+fired)
	for _, s := range m.sinks {
		s.sig.Raise(stressDone)
	}
	return nil
}

// signalSink resumes on every raise it observes and completes on stressDone.
type signalSink struct {
	sig     asyncrt.Signal
	wait    *asyncrt.SignalWait
	resumes uint64
	done    *latch
}

func (s *signalSink) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	for {
		if s.wait.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		s.resumes++
		if s.wait.Value == stressDone {
			s.done.Done()
			return asyncrt.PollReady
		}
	}
}
