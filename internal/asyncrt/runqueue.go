package asyncrt

import "sync/atomic"

// RunQueue is an intrusive, lock-free ready list. Any goroutine may push;
// only the executor claims.
//
// Producers prepend with a CAS retry loop on head. The consumer swaps head
// with nil and takes the whole list as one unit.
type RunQueue struct {
	head atomic.Pointer[TaskHeader]
}

// Enqueue applies a wake to t and links it when it moved to TaskQueued.
// It reports whether the task was linked.
func (q *RunQueue) Enqueue(t *TaskHeader) bool {
	if !t.markWoken() {
		return false
	}
	q.push(t)
	return true
}

// push links a task that is already in TaskQueued.
func (q *RunQueue) push(t *TaskHeader) {
	for {
		head := q.head.Load()
		t.runQueueNext = head
		if q.head.CompareAndSwap(head, t) {
			return
		}
	}
}

// Empty reports whether the queue currently holds no tasks.
func (q *RunQueue) Empty() bool {
	return q.head.Load() == nil
}

// Claim takes every queued task in one atomic step and returns them in push
// order. Tasks pushed after the swap belong to the next claim.
func (q *RunQueue) Claim() Batch {
	list := q.head.Swap(nil)
	var rev *TaskHeader
	n := 0
	for list != nil {
		next := list.runQueueNext
		list.runQueueNext = rev
		rev = list
		list = next
		n++
	}
	return Batch{head: rev, n: n}
}

// Batch is a claimed snapshot of the run queue owned by the consumer.
type Batch struct {
	head *TaskHeader
	n    int
}

// Len returns the number of tasks left in the batch.
func (b *Batch) Len() int { return b.n }

// Pop unlinks the next task, or returns nil when the batch is drained.
func (b *Batch) Pop() *TaskHeader {
	t := b.head
	if t == nil {
		return nil
	}
	b.head = t.runQueueNext
	t.runQueueNext = nil
	b.n--
	return t
}
