package asyncrt

import "container/heap"

// timerEntry is a single scheduled wakeup.
type timerEntry struct {
	deadlineMs uint64
	seq        uint64
	waker      Waker
	owner      *Timer
	gen        uint32
}

type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadlineMs == h[j].deadlineMs {
		return h[i].seq < h[j].seq
	}
	return h[i].deadlineMs < h[j].deadlineMs
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	entry, ok := x.(timerEntry)
	if !ok {
		return
	}
	*h = append(*h, entry)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return timerEntry{}
	}
	item := old[n-1]
	old[n-1] = timerEntry{}
	*h = old[:n-1]
	return item
}

// timerQueue is owned by the executor goroutine: entries are added from
// inside polls and fired from Executor.Poll.
type timerQueue struct {
	heap    timerHeap
	nextSeq uint64
}

func (q *timerQueue) schedule(t *Timer, w Waker) {
	q.nextSeq++
	heap.Push(&q.heap, timerEntry{deadlineMs: t.deadlineMs, seq: q.nextSeq, waker: w, owner: t, gen: t.gen})
}

func (q *timerQueue) len() int { return len(q.heap) }

func (q *timerQueue) next() (uint64, bool) {
	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].deadlineMs, true
}

// fire wakes every entry due at nowMs and returns how many fired.
func (q *timerQueue) fire(nowMs uint64) int {
	fired := 0
	for len(q.heap) > 0 && q.heap[0].deadlineMs <= nowMs {
		entry, ok := heap.Pop(&q.heap).(timerEntry)
		if !ok || entry.owner.gen != entry.gen {
			continue
		}
		wakeStored(entry.waker)
		fired++
	}
	return fired
}

// Timer completes once the executor clock reaches its deadline.
// A scheduled entry whose generation no longer matches is dropped unfired.
type Timer struct {
	delayMs    uint64
	deadlineMs uint64
	gen        uint32
	armed      bool
	scheduled  bool
}

// Sleep returns a timer that fires delayMs after its first poll.
func Sleep(delayMs uint64) *Timer {
	return &Timer{delayMs: delayMs}
}

// At returns a timer that fires at an absolute clock reading.
func At(deadlineMs uint64) *Timer {
	return &Timer{deadlineMs: deadlineMs, armed: true}
}

// Reset rearms the timer to fire delayMs after its next poll.
func (t *Timer) Reset(delayMs uint64) {
	t.delayMs = delayMs
	t.armed = false
	t.scheduled = false
	t.gen++
}

// Cancel drops any pending wakeup. Select calls it on the losing branch.
func (t *Timer) Cancel() {
	t.scheduled = false
	t.gen++
}

// Deadline returns the absolute deadline, or zero before the first poll.
func (t *Timer) Deadline() uint64 { return t.deadlineMs }

// Poll reports PollReady once the deadline has passed.
func (t *Timer) Poll(cx *Context) PollOutcome {
	e := cx.executorOf()
	now := e.clock.NowMs()
	if !t.armed {
		t.deadlineMs = now + t.delayMs
		t.armed = true
	}
	if now >= t.deadlineMs {
		if t.scheduled {
			t.Cancel()
		}
		return PollReady
	}
	if !t.scheduled {
		e.timers.schedule(t, cx.Waker())
		t.scheduled = true
	}
	return PollPending
}

// Ticker becomes ready once per period. Missed periods are skipped rather
// than replayed in a burst.
type Ticker struct {
	periodMs uint64
	timer    Timer
	started  bool
}

// NewTicker returns a ticker whose first tick is one period after its first poll.
func NewTicker(periodMs uint64) *Ticker {
	if periodMs == 0 {
		periodMs = 1
	}
	return &Ticker{periodMs: periodMs}
}

// Poll reports PollReady on each tick and rearms for the next one.
func (t *Ticker) Poll(cx *Context) PollOutcome {
	if !t.started {
		t.timer = Timer{delayMs: t.periodMs}
		t.started = true
	}
	if t.timer.Poll(cx) == PollPending {
		return PollPending
	}
	now := cx.executorOf().clock.NowMs()
	next := t.timer.deadlineMs + t.periodMs
	for next <= now {
		next += t.periodMs
	}
	t.timer.deadlineMs = next
	t.timer.armed = true
	t.timer.scheduled = false
	t.timer.gen++
	return PollReady
}

// Cancel drops the pending tick.
func (t *Ticker) Cancel() { t.timer.Cancel() }
