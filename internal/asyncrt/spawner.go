package asyncrt

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Spawner starts tasks on one executor. The zero Spawner is detached.
// Spawning is lock-free, so a Spawner may be used from any goroutine.
type Spawner struct {
	exec *Executor
}

// Executor returns the executor the spawner feeds.
func (s Spawner) Executor() *Executor { return s.exec }

func (s Spawner) start(t *TaskHeader, poll func(*TaskHeader, *Context) PollOutcome, release func(*TaskHeader)) TaskRef {
	e := s.exec
	id := TaskID(e.nextID.Add(1))
	t.id.Store(uint64(id))
	t.poll = poll
	t.release = release
	t.exec = e
	t.publish()
	e.stats.spawns.Add(1)
	e.stats.live.Add(1)
	e.queue.push(t)
	e.parker.Unpark()
	return TaskRef{h: t, id: id}
}

// taskCell keeps the header first so a *TaskHeader converts back to its cell.
type taskCell[F Future] struct {
	header TaskHeader
	future F
	live   *atomic.Int64
}

func pollCell[F Future](t *TaskHeader, cx *Context) PollOutcome {
	c := (*taskCell[F])(unsafe.Pointer(t))
	return c.future.Poll(cx)
}

func releaseCell[F Future](t *TaskHeader) {
	c := (*taskCell[F])(unsafe.Pointer(t))
	var zero F
	c.future = zero
	if c.live != nil {
		c.live.Add(-1)
	}
	t.state.Store(uint32(TaskVacant))
}

// TaskPool is a fixed-capacity arena of task slots allocated once up front.
type TaskPool[F Future] struct {
	name  string
	cells []taskCell[F]
	next  atomic.Uint32
	live  atomic.Int64
}

// NewTaskPool allocates every slot of a pool. Capacity below one is raised to one.
func NewTaskPool[F Future](name string, capacity int) *TaskPool[F] {
	if capacity < 1 {
		capacity = 1
	}
	p := &TaskPool[F]{
		name:  name,
		cells: make([]taskCell[F], capacity),
	}
	for i := range p.cells {
		p.cells[i].live = &p.live
	}
	return p
}

// Name returns the pool name used in errors.
func (p *TaskPool[F]) Name() string { return p.name }

// Cap returns the number of slots.
func (p *TaskPool[F]) Cap() int { return len(p.cells) }

// Live returns the number of occupied slots.
func (p *TaskPool[F]) Live() int { return int(p.live.Load()) }

// Spawn claims a vacant slot, stores fut in it, and queues its first poll.
// It fails with an error wrapping ErrCapacity when every slot is occupied.
func (p *TaskPool[F]) Spawn(sp Spawner, fut F) (TaskRef, error) {
	if sp.exec == nil {
		return TaskRef{}, ErrNoExecutor
	}
	n := len(p.cells)
	start := int(p.next.Add(1)-1) % n
	for i := 0; i < n; i++ {
		c := &p.cells[(start+i)%n]
		if !c.header.claim() {
			continue
		}
		c.future = fut
		p.live.Add(1)
		return sp.start(&c.header, pollCell[F], releaseCell[F]), nil
	}
	return TaskRef{}, fmt.Errorf("%w: pool %q has %d of %d slots in use", ErrCapacity, p.name, n, n)
}

// TaskStorage is a single statically allocated task slot.
type TaskStorage[F Future] struct {
	cell taskCell[F]
}

// Spawn stores fut in the slot and queues its first poll. It fails with
// ErrTaskBusy while a previous spawn is still alive.
func (s *TaskStorage[F]) Spawn(sp Spawner, fut F) (TaskRef, error) {
	if sp.exec == nil {
		return TaskRef{}, ErrNoExecutor
	}
	if !s.cell.header.claim() {
		return TaskRef{}, ErrTaskBusy
	}
	s.cell.future = fut
	return sp.start(&s.cell.header, pollCell[F], releaseCell[F]), nil
}

// Busy reports whether the slot holds a live task.
func (s *TaskStorage[F]) Busy() bool {
	return s.cell.header.State() != TaskVacant
}
