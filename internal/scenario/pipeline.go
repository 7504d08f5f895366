package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"ember/internal/asyncrt"
)

func init() {
	register(Scenario{
		Name:    "pipeline",
		Summary: "producer tasks and an interrupt-side producer feed one consumer over a bounded channel",
		Main:    pipelineMain,
	})
}

const pipelineCapacity = 16

// pipelineMain runs Producers sender tasks plus one host goroutine that
// pushes with TrySend, all into one channel drained by the main task. Every
// value in 1..N is sent exactly once, so the received sum is checked
// against N(N+1)/2.
func pipelineMain(env *Env) (asyncrt.Future, error) {
	p := env.Params
	sources := p.Producers + 1
	per := max(p.Wakes/sources, 1)
	ch := asyncrt.NewChannel[uint64](pipelineCapacity, p.Producers)

	m := &pipelineMainTask{
		env:   env,
		ch:    ch,
		pool:  asyncrt.NewTaskPool[*producerTask]("producers", env.PoolSize),
		total: uint64(sources * per),
	}
	m.open.Store(int64(sources))
	m.recv = ch.Recv()
	for i := 0; i < p.Producers; i++ {
		m.producers = append(m.producers, &producerTask{
			ch:    ch,
			next:  uint64(i*per) + 1,
			last:  uint64((i + 1) * per),
			close: m.closeOne,
		})
	}
	isrFirst := uint64(p.Producers*per) + 1
	m.isr = func(ctx context.Context) error {
		defer m.closeOne()
		for v := isrFirst; v <= m.total; {
			switch err := ch.TrySend(v); {
			case err == nil:
				v++
			case errors.Is(err, asyncrt.ErrChannelFull):
				if err := ctx.Err(); err != nil {
					return err
				}
				m.env.Add("isr_full", 1)
				runtime.Gosched()
			default:
				return err
			}
		}
		return nil
	}
	return m, nil
}

type pipelineMainTask struct {
	env       *Env
	ch        *asyncrt.Channel[uint64]
	pool      *asyncrt.TaskPool[*producerTask]
	producers []*producerTask
	isr       func(ctx context.Context) error
	recv      *asyncrt.ChannelRecv[uint64]
	open      atomic.Int64
	total     uint64
	received  uint64
	sum       uint64
	spawned   bool
}

// closeOne marks one source finished; the last one closes the channel.
func (m *pipelineMainTask) closeOne() {
	if m.open.Add(-1) == 0 {
		m.ch.Close()
	}
}

func (m *pipelineMainTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	if !m.spawned {
		m.spawned = true
		for _, pt := range m.producers {
			if _, err := m.pool.Spawn(m.env.Spawner, pt); err != nil {
				m.env.Fail(err)
				return asyncrt.PollReady
			}
		}
		m.env.Go(m.isr)
	}
	for {
		if m.recv.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		if m.recv.Closed {
			break
		}
		m.received++
		m.sum += m.recv.Value
	}
	m.env.Set("received", m.received)
	m.env.Set("sum", m.sum)
	if want := m.total * (m.total + 1) / 2; m.received != m.total || m.sum != want {
		m.env.Fail(fmt.Errorf("pipeline received %d values summing to %d, want %d summing to %d",
			m.received, m.sum, m.total, want))
	}
	return asyncrt.PollReady
}

// producerTask sends next..last in order, waiting for space when the
// channel is full.
type producerTask struct {
	ch    *asyncrt.Channel[uint64]
	next  uint64
	last  uint64
	send  *asyncrt.ChannelSend[uint64]
	close func()
}

func (p *producerTask) Poll(cx *asyncrt.Context) asyncrt.PollOutcome {
	for p.next <= p.last {
		if p.send == nil {
			p.send = p.ch.Send(p.next)
		}
		if p.send.Poll(cx) == asyncrt.PollPending {
			return asyncrt.PollPending
		}
		if p.send.Err != nil {
			break
		}
		p.send = nil
		p.next++
	}
	p.close()
	return asyncrt.PollReady
}
