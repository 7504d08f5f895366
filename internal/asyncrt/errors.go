package asyncrt

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity indicates that no task storage slot is free.
	ErrCapacity = errors.New("task capacity exhausted")

	// ErrTaskBusy indicates that static task storage still holds a live task.
	ErrTaskBusy = fmt.Errorf("%w: task storage is occupied", ErrCapacity)

	// ErrNoExecutor indicates a zero Spawner.
	ErrNoExecutor = errors.New("spawner is not bound to an executor")

	// ErrExecutorRunning indicates a second concurrent Run on one executor.
	ErrExecutorRunning = errors.New("executor loop already running")

	// ErrChannelClosed indicates a send on a closed channel.
	ErrChannelClosed = errors.New("channel closed")

	// ErrChannelFull indicates a non-blocking send found no free slot.
	ErrChannelFull = errors.New("channel full")
)

// InvariantError is the panic value raised when the task state machine is
// driven through an illegal transition, such as waking a finished task.
type InvariantError struct {
	Task  TaskID
	State TaskState
	Op    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("asyncrt: illegal %s on task %d in state %s", e.Op, e.Task, e.State)
}

// ProvenanceError is the panic value raised when a waker that was not built
// by this executor is turned back into a task pointer.
type ProvenanceError struct {
	VTable *WakerVTable
}

func (e *ProvenanceError) Error() string {
	return fmt.Sprintf("asyncrt: waker not created by the asyncrt executor (vtable %p)", e.VTable)
}
