package scenario

import (
	"fmt"

	"fortio.org/safecast"

	"ember/internal/asyncrt"
)

func init() {
	register(Scenario{
		Name:    "ticker",
		Summary: "tasks tick at staggered periods until the scenario duration elapses",
		Main:    tickerMain,
	})
}

// tickerMain spawns one ticking task per configured task; task i ticks every
// (i+1)*period_ms and stops at the duration deadline.
func tickerMain(env *Env) (asyncrt.Future, error) {
	durationMs, err := safecast.Conv[uint64](env.Params.Duration.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	n := env.Params.Tasks
	m := &tickerMainTask{
		env:   env,
		pool:  asyncrt.NewTaskPool[*tickTask]("tickers", env.PoolSize),
		tasks: make([]*tickTask, n),
		done:  newLatch(n),
	}
	for i := range m.tasks {
		period := env.Params.PeriodMs * uint64(i+1)
		m.tasks[i] = &tickTask{
			periodMs: period,
			sel:      asyncrt.Select(asyncrt.NewTicker(period), asyncrt.At(durationMs)),
			done:     m.done,
		}
	}
	return m, nil
}

type tickerMainTask struct {
	env     *Env
	pool    *asyncrt.TaskPool[*tickTask]
	tasks   []*tickTask
	done    *latch
	spawned bool
}

func (m *tickerMainTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if !m.spawned {
		m.spawned = true
		for _, t := range m.tasks {
			if _, err := m.pool.Spawn(m.env.Spawner, t); err != nil {
				m.env.Fail(err)
				return asyncrt.PollReady
			}
		}
	}
	if m.done.Poll(cx) == asyncrt.PollPending {
		return asyncrt.PollPending
	}
	var ticks uint64
	for i, t := range m.tasks {
		ticks += t.ticks
		m.env.Set(fmt.Sprintf("ticks_%d", i), t.ticks)
	}
	m.env.Set("ticks", ticks)
	return asyncrt.PollReady
}

// tickTask counts ticks until its deadline timer wins the select. The ticker
// is polled first, so a tick landing on the deadline still counts.
type tickTask struct {
	periodMs uint64
	sel      *asyncrt.Select2[*asyncrt.Ticker, *asyncrt.Timer]
	ticks    uint64
	done     *latch
}

func (t *tickTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	for {
		if t.sel.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		if t.sel.Winner == asyncrt.SelectSecond {
			t.done.Done()
			return asyncrt.PollReady
		}
		t.ticks++
		t.sel.Winner = asyncrt.SelectNone
	}
}
