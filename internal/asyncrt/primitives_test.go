package asyncrt

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestSelectCancelsLosingTimer(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	var sig Signal
	sel := Select(Sleep(50), sig.Wait())
	pool := NewTaskPool[*Select2[*Timer, *SignalWait]]("select", 1)
	ref, err := pool.Spawn(e.Spawner(), sel)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	e.RunUntilIdle()
	sig.Raise(7)
	e.RunUntilIdle()
	if !ref.Done() {
		t.Fatalf("select not done after signal")
	}
	if sel.Winner != SelectSecond || sel.Second.Value != 7 {
		t.Fatalf("winner = %s value = %d", sel.Winner, sel.Second.Value)
	}

	clk.Advance(100)
	e.RunUntilIdle()
	if got := e.Stats().TimerFires; got != 0 {
		t.Fatalf("cancelled timer fired %d times", got)
	}
}

func TestJoinWaitsForAll(t *testing.T) {
	e, clk := newTestExecutor(Config{})
	j := Join(Sleep(10), Sleep(20), Yield())
	pool := NewTaskPool[*JoinSet]("join", 1)
	ref, _ := pool.Spawn(e.Spawner(), j)

	if err := e.Block(context.Background(), ref.Done); err != nil {
		t.Fatalf("block: %v", err)
	}
	if got := clk.NowMs(); got != 20 {
		t.Fatalf("clock = %d, want 20", got)
	}
	if j.Remaining() != 0 {
		t.Fatalf("remaining = %d", j.Remaining())
	}
}

func TestYieldRepollsOnce(t *testing.T) {
	e, _ := newTestExecutor(Config{})
	y := Yield()
	polls := 0
	pool := NewTaskPool[FutureFunc]("yield", 1)
	pool.Spawn(e.Spawner(), FutureFunc(func(cx *Context) PollOutcome {
		polls++
		return y.Poll(cx)
	}))

	e.RunUntilIdle()
	if polls != 2 {
		t.Fatalf("polls = %d, want 2", polls)
	}
	if got := e.Stats().Requeues; got != 1 {
		t.Fatalf("requeues = %d, want 1", got)
	}
}

func TestSignalKeepsLatestValue(t *testing.T) {
	var sig Signal
	sig.Raise(1)
	sig.Raise(2)
	v, ok := sig.Take()
	if !ok || v != 2 {
		t.Fatalf("take = %d,%v want 2,true", v, ok)
	}
	if _, ok := sig.Take(); ok {
		t.Fatalf("second take returned a value")
	}
}

func TestSignalFromAnotherGoroutine(t *testing.T) {
	e := New(Config{})
	var sig Signal
	wait := sig.Wait()
	pool := NewTaskPool[*SignalWait]("signal", 1)
	ref, _ := pool.Spawn(e.Spawner(), wait)

	go func() {
		time.Sleep(2 * time.Millisecond)
		sig.Raise(42)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Block(ctx, ref.Done); err != nil {
		t.Fatalf("block: %v", err)
	}
	if wait.Value != 42 {
		t.Fatalf("value = %d, want 42", wait.Value)
	}
}

func TestSignalHidesValueMidWrite(t *testing.T) {
	var sig Signal
	// a Raise that has claimed the write but not finished it
	sig.seq.Add(1)
	sig.value.Store(9)
	if _, ok := sig.Take(); ok {
		t.Fatal("take returned a value that is still being written")
	}
	if sig.Pending() {
		t.Fatal("pending reported a value that is still being written")
	}
	sig.Raise(5)
	sig.seq.Add(1)

	v, ok := sig.Take()
	if !ok || v != 9 {
		t.Fatalf("take = %d,%v want 9,true", v, ok)
	}
	if _, ok := sig.Take(); ok {
		t.Fatal("one raise was delivered twice")
	}
}

func TestSignalConcurrentRaisesDeliverOnce(t *testing.T) {
	const (
		raisers   = 4
		perRaiser = 20000
	)
	var sig Signal
	var wg sync.WaitGroup
	for g := 0; g < raisers; g++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(1); i <= perRaiser; i++ {
				sig.Raise(base + i)
			}
		}(uint64(g) * perRaiser)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	taken := make(map[uint64]bool)
	check := func() {
		if v, ok := sig.Take(); ok {
			if taken[v] {
				t.Fatalf("value %d taken twice", v)
			}
			taken[v] = true
		}
	}
	for {
		select {
		case <-finished:
			check()
			if len(taken) == 0 {
				t.Fatal("no value was taken")
			}
			return
		default:
			check()
		}
	}
}

func TestChannelBounds(t *testing.T) {
	ch := NewChannel[int](2, 1)
	if ch.Cap() != 2 {
		t.Fatalf("cap = %d", ch.Cap())
	}
	if err := ch.TrySend(1); err != nil {
		t.Fatalf("send 1: %v", err)
	}
	if err := ch.TrySend(2); err != nil {
		t.Fatalf("send 2: %v", err)
	}
	if err := ch.TrySend(3); !errors.Is(err, ErrChannelFull) {
		t.Fatalf("send 3 = %v, want ErrChannelFull", err)
	}
	ch.Close()
	if err := ch.TrySend(4); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("send after close = %v, want ErrChannelClosed", err)
	}
	for want := 1; want <= 2; want++ {
		if v, ok := ch.TryRecv(); !ok || v != want {
			t.Fatalf("recv = %d,%v want %d", v, ok, want)
		}
	}
	if _, ok := ch.TryRecv(); ok {
		t.Fatalf("recv from drained channel succeeded")
	}
}

type sumConsumer struct {
	ch    *Channel[int]
	recv  *ChannelRecv[int]
	sum   int
	count int
}

func (c *sumConsumer) Poll(cx *Context) PollOutcome {
	for {
		if c.recv == nil {
			c.recv = c.ch.Recv()
		}
		if c.recv.Poll(cx) == PollPending {
			return PollPending
		}
		if c.recv.Closed {
			return PollReady
		}
		c.sum += c.recv.Value
		c.count++
		c.recv = nil
	}
}

type seqSender struct {
	ch   *Channel[int]
	next int
	last int
	cur  *ChannelSend[int]
}

func (s *seqSender) Poll(cx *Context) PollOutcome {
	for s.next <= s.last {
		if s.cur == nil {
			s.cur = s.ch.Send(s.next)
		}
		if s.cur.Poll(cx) == PollPending {
			return PollPending
		}
		s.cur = nil
		s.next++
	}
	s.ch.Close()
	return PollReady
}

func TestChannelSendWaitsForSpace(t *testing.T) {
	e, _ := newTestExecutor(Config{})
	ch := NewChannel[int](2, 1)
	cons := &sumConsumer{ch: ch}
	consumers := NewTaskPool[*sumConsumer]("consumer", 1)
	senders := NewTaskPool[*seqSender]("sender", 1)
	sRef, _ := senders.Spawn(e.Spawner(), &seqSender{ch: ch, next: 1, last: 10})
	cRef, _ := consumers.Spawn(e.Spawner(), cons)

	e.RunUntilIdle()
	if !sRef.Done() || !cRef.Done() {
		t.Fatalf("sender done=%v consumer done=%v", sRef.Done(), cRef.Done())
	}
	if cons.sum != 55 || cons.count != 10 {
		t.Fatalf("sum=%d count=%d, want 55 and 10", cons.sum, cons.count)
	}
}

func TestChannelManyProducers(t *testing.T) {
	const producers = 4
	const perProducer = 500

	e := New(Config{})
	ch := NewChannel[int](16, 1)
	cons := &sumConsumer{ch: ch}
	pool := NewTaskPool[*sumConsumer]("consumer", 1)
	ref, _ := pool.Spawn(e.Spawner(), cons)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= perProducer; i++ {
				for ch.TrySend(i) != nil {
					runtime.Gosched()
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		ch.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Block(ctx, ref.Done); err != nil {
		t.Fatalf("block: %v", err)
	}
	wantSum := producers * perProducer * (perProducer + 1) / 2
	if cons.count != producers*perProducer || cons.sum != wantSum {
		t.Fatalf("count=%d sum=%d, want %d and %d", cons.count, cons.sum, producers*perProducer, wantSum)
	}
}
