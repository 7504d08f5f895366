package asyncrt

import (
	"strconv"
	"sync/atomic"
)

// TaskID identifies a spawned task.
type TaskID uint64

// TaskState describes task scheduling state.
//
// State machine:
//
//	TaskVacant   → TaskQueued    [spawn claims the storage]
//	TaskIdle     → TaskQueued    [wake]
//	TaskQueued   → TaskRunning   [executor pops the task]
//	TaskRunning  → TaskNotified  [wake during poll]
//	TaskRunning  → TaskIdle      [poll returned PollPending]
//	TaskNotified → TaskQueued    [poll returned PollPending, re-linked once]
//	TaskRunning  → TaskFinished  [poll returned PollReady]
//	TaskNotified → TaskFinished  [poll returned PollReady]
//	TaskFinished → TaskVacant    [storage released]
//
// Transient states move only through CompareAndSwap; TaskFinished is the one
// state written with Swap.
type TaskState uint32

const (
	// TaskVacant marks storage that holds no live task.
	TaskVacant TaskState = iota
	// TaskIdle marks a suspended task waiting for a wake.
	TaskIdle
	// TaskQueued marks a task linked into the run queue.
	TaskQueued
	// TaskRunning marks the task currently inside its poll function.
	TaskRunning
	// TaskNotified marks a running task that was woken during the current poll.
	TaskNotified
	// TaskFinished marks a task whose computation completed.
	TaskFinished
)

// String returns the string representation of TaskState.
func (s TaskState) String() string {
	switch s {
	case TaskVacant:
		return "vacant"
	case TaskIdle:
		return "idle"
	case TaskQueued:
		return "queued"
	case TaskRunning:
		return "running"
	case TaskNotified:
		return "notified"
	case TaskFinished:
		return "finished"
	default:
		return "state(" + strconv.FormatUint(uint64(s), 10) + ")"
	}
}

// PollOutcome reports how a poll iteration completed.
type PollOutcome uint8

const (
	// PollPending indicates the computation suspended and expects a wake.
	PollPending PollOutcome = iota
	// PollReady indicates the computation completed.
	PollReady
)

// String returns the string representation of PollOutcome.
func (o PollOutcome) String() string {
	if o == PollReady {
		return "ready"
	}
	return "pending"
}

// Future is a suspendable computation driven by repeated polls.
// Poll must not retain cx after it returns.
type Future interface {
	Poll(cx *Context) PollOutcome
}

// FutureFunc adapts a plain function to Future.
type FutureFunc func(cx *Context) PollOutcome

// Poll calls f(cx).
func (f FutureFunc) Poll(cx *Context) PollOutcome { return f(cx) }

// TaskHeader is the per-task control block. It is owned by the storage that
// holds it (a TaskPool or TaskStorage), never by the executor or the queue.
type TaskHeader struct {
	state atomic.Uint32
	id    atomic.Uint64

	// runQueueNext is touched only by RunQueue while the task is queued.
	runQueueNext *TaskHeader

	poll    func(*TaskHeader, *Context) PollOutcome
	release func(*TaskHeader)
	exec    *Executor
}

// ID returns the ID of the task currently occupying the header.
func (t *TaskHeader) ID() TaskID {
	if t == nil {
		return 0
	}
	return TaskID(t.id.Load())
}

// State returns a snapshot of the task state.
func (t *TaskHeader) State() TaskState {
	if t == nil {
		return TaskVacant
	}
	return TaskState(t.state.Load())
}

// Executor returns the executor the task was spawned on.
func (t *TaskHeader) Executor() *Executor {
	if t == nil {
		return nil
	}
	return t.exec
}

// claim reserves vacant storage by moving it to TaskFinished. Stale wakers
// and old TaskRefs already treat that state as dead, so the header can be
// filled in before publish makes it runnable.
func (t *TaskHeader) claim() bool {
	return t.state.CompareAndSwap(uint32(TaskVacant), uint32(TaskFinished))
}

// publish makes a claimed header runnable. The new id must already be stored.
func (t *TaskHeader) publish() {
	t.state.Store(uint32(TaskQueued))
}

// markWoken applies a wake and reports whether the caller must link the task
// into the run queue.
func (t *TaskHeader) markWoken() bool {
	return t.applyWake(true)
}

// markWokenIfLive is markWoken for wakes that may legitimately race with
// completion, such as a registration drained after its task returned.
// Wakes on vacant or finished storage are dropped.
func (t *TaskHeader) markWokenIfLive() bool {
	return t.applyWake(false)
}

func (t *TaskHeader) applyWake(strict bool) bool {
	for {
		s := TaskState(t.state.Load())
		switch s {
		case TaskIdle:
			if t.state.CompareAndSwap(uint32(TaskIdle), uint32(TaskQueued)) {
				return true
			}
		case TaskQueued, TaskNotified:
			return false
		case TaskRunning:
			if t.state.CompareAndSwap(uint32(TaskRunning), uint32(TaskNotified)) {
				return false
			}
		default:
			if !strict {
				return false
			}
			panic(&InvariantError{Task: t.ID(), State: s, Op: "wake"})
		}
	}
}

func (t *TaskHeader) markRunning() {
	if !t.state.CompareAndSwap(uint32(TaskQueued), uint32(TaskRunning)) {
		panic(&InvariantError{Task: t.ID(), State: t.State(), Op: "poll"})
	}
}

// settlePending reports whether the task was woken during the poll and has
// been moved back to TaskQueued.
func (t *TaskHeader) settlePending() bool {
	for {
		if t.state.CompareAndSwap(uint32(TaskRunning), uint32(TaskIdle)) {
			return false
		}
		if t.state.CompareAndSwap(uint32(TaskNotified), uint32(TaskQueued)) {
			return true
		}
		if s := t.State(); s != TaskRunning && s != TaskNotified {
			panic(&InvariantError{Task: t.ID(), State: s, Op: "suspend"})
		}
	}
}

func (t *TaskHeader) settleReady() {
	prev := TaskState(t.state.Swap(uint32(TaskFinished)))
	if prev != TaskRunning && prev != TaskNotified {
		panic(&InvariantError{Task: t.ID(), State: prev, Op: "finish"})
	}
}

// TaskRef is a comparable handle to a spawned task.
type TaskRef struct {
	h  *TaskHeader
	id TaskID
}

// ID returns the task ID assigned at spawn.
func (r TaskRef) ID() TaskID { return r.id }

// Header returns the control block behind the handle.
func (r TaskRef) Header() *TaskHeader { return r.h }

// Waker returns a waker for the referenced task.
func (r TaskRef) Waker() Waker {
	if r.h == nil {
		return Waker{}
	}
	return taskWaker(r.h)
}

// Done reports whether the referenced spawn has completed. Once the storage
// is reused by a later spawn the old handle keeps reporting true.
func (r TaskRef) Done() bool {
	if r.h == nil {
		return true
	}
	if r.h.ID() != r.id {
		return true
	}
	s := r.h.State()
	if r.h.ID() != r.id {
		return true
	}
	return s == TaskFinished || s == TaskVacant
}
