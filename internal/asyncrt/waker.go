package asyncrt

import "unsafe"

// WakerVTable is the dispatch table behind a RawWaker. Every task waker
// produced by this package shares one process-wide table.
type WakerVTable struct {
	Clone     func(data unsafe.Pointer) RawWaker
	Wake      func(data unsafe.Pointer)
	WakeByRef func(data unsafe.Pointer)
	Drop      func(data unsafe.Pointer)
}

// RawWaker is a (data pointer, vtable pointer) pair.
type RawWaker struct {
	Data   unsafe.Pointer
	VTable *WakerVTable
}

// Waker is a copyable resumption handle. The zero Waker wakes nothing.
type Waker struct {
	raw RawWaker
}

// NewWaker wraps a raw waker built by a foreign wake mechanism.
func NewWaker(raw RawWaker) Waker {
	if raw.VTable == nil {
		panic("asyncrt: raw waker without vtable")
	}
	return Waker{raw: raw}
}

// Raw exposes the underlying pair.
func (w Waker) Raw() RawWaker { return w.raw }

// IsZero reports whether the waker is unset.
func (w Waker) IsZero() bool { return w.raw.VTable == nil }

// Clone returns a copy of the waker.
func (w Waker) Clone() Waker {
	if w.raw.VTable == nil {
		return Waker{}
	}
	return Waker{raw: w.raw.VTable.Clone(w.raw.Data)}
}

// Wake signals the task and consumes the handle.
func (w Waker) Wake() {
	if w.raw.VTable == nil {
		return
	}
	w.raw.VTable.Wake(w.raw.Data)
}

// WakeByRef signals the task without consuming the handle.
func (w Waker) WakeByRef() {
	if w.raw.VTable == nil {
		return
	}
	w.raw.VTable.WakeByRef(w.raw.Data)
}

// Drop releases the handle.
func (w Waker) Drop() {
	if w.raw.VTable == nil {
		return
	}
	w.raw.VTable.Drop(w.raw.Data)
}

// WillWakeSame reports whether both wakers resume the same target.
func (w Waker) WillWakeSame(other Waker) bool {
	return w.raw == other.raw
}

var taskVTable WakerVTable

func init() {
	taskVTable = WakerVTable{
		Clone:     cloneTask,
		Wake:      wakeTaskPtr,
		WakeByRef: wakeTaskPtr,
		Drop:      dropTask,
	}
}

func cloneTask(p unsafe.Pointer) RawWaker {
	return RawWaker{Data: p, VTable: &taskVTable}
}

func wakeTaskPtr(p unsafe.Pointer) {
	WakeTask((*TaskHeader)(p))
}

func dropTask(unsafe.Pointer) {}

func taskWaker(t *TaskHeader) Waker {
	return Waker{raw: RawWaker{Data: unsafe.Pointer(t), VTable: &taskVTable}}
}

// IsTaskWaker reports whether w was produced by this package's executor.
func IsTaskWaker(w Waker) bool {
	return w.raw.VTable == &taskVTable && w.raw.Data != nil
}

// TaskFromWaker recovers the task pointer behind a waker so callers can store
// one word per waiter instead of a full Waker.
//
// Panics with *ProvenanceError when w was not created by this executor.
func TaskFromWaker(w Waker) *TaskHeader {
	if w.raw.VTable != &taskVTable {
		panic(&ProvenanceError{VTable: w.raw.VTable})
	}
	return (*TaskHeader)(w.raw.Data)
}

// WakeTask wakes a task from its compact pointer form. Safe to call from any
// goroutine, including simulated interrupt handlers.
func WakeTask(t *TaskHeader) {
	if t == nil {
		return
	}
	if t.markWoken() {
		t.exec.enqueueWoken(t)
	}
}

// wakeIfLive wakes t unless its spawn already finished.
func wakeIfLive(t *TaskHeader) {
	if t != nil && t.markWokenIfLive() {
		t.exec.enqueueWoken(t)
	}
}

// wakeStored wakes a waker that was parked in a primitive and may have
// outlived its task.
func wakeStored(w Waker) {
	if IsTaskWaker(w) {
		wakeIfLive((*TaskHeader)(w.raw.Data))
		return
	}
	w.Wake()
}
