package asyncrt

import (
	"sync/atomic"
	"testing"
	"unsafe"
)

type foreignWaker struct {
	wakes atomic.Int32
	drops atomic.Int32
	vt    *WakerVTable
}

func (f *foreignWaker) vtable() *WakerVTable {
	if f.vt != nil {
		return f.vt
	}
	vt := &WakerVTable{}
	f.vt = vt
	vt.Clone = func(p unsafe.Pointer) RawWaker { return RawWaker{Data: p, VTable: vt} }
	vt.Wake = func(unsafe.Pointer) { f.wakes.Add(1) }
	vt.WakeByRef = func(unsafe.Pointer) { f.wakes.Add(1) }
	vt.Drop = func(unsafe.Pointer) { f.drops.Add(1) }
	return vt
}

func (f *foreignWaker) waker() Waker {
	return NewWaker(RawWaker{Data: unsafe.Pointer(f), VTable: f.vtable()})
}

func TestTaskFromForeignWakerPanics(t *testing.T) {
	fw := &foreignWaker{}
	w := fw.waker()
	if IsTaskWaker(w) {
		t.Fatalf("foreign waker reported as task waker")
	}
	err := expectPanic[*ProvenanceError](t, func() { TaskFromWaker(w) })
	if err.VTable != w.Raw().VTable {
		t.Fatalf("provenance error names vtable %p, want %p", err.VTable, w.Raw().VTable)
	}
	expectPanic[*ProvenanceError](t, func() { TaskFromWaker(Waker{}) })
}

func TestTaskWakerRoundTrip(t *testing.T) {
	e, _ := newTestExecutor(Config{})
	pool := NewTaskPool[*scriptFuture]("rt", 1)
	ref := spawnScript(t, e, pool, &scriptFuture{})

	w := ref.Waker()
	if !IsTaskWaker(w) {
		t.Fatalf("executor waker not recognised")
	}
	if got := TaskFromWaker(w); got != ref.Header() {
		t.Fatalf("TaskFromWaker = %p, want %p", got, ref.Header())
	}
	c := w.Clone()
	if !c.WillWakeSame(w) {
		t.Fatalf("clone wakes a different task")
	}
	c.Drop()
	if got := ref.Header().State(); got != TaskQueued {
		t.Fatalf("drop changed state to %s", got)
	}
}

func TestZeroWakerIsInert(t *testing.T) {
	var w Waker
	w.Wake()
	w.WakeByRef()
	w.Drop()
	if !w.Clone().IsZero() {
		t.Fatalf("clone of zero waker is set")
	}
}

func TestRegistrationStoresForeignWaker(t *testing.T) {
	fw := &foreignWaker{}
	var reg WakerRegistration
	reg.Register(fw.waker())
	reg.Register(fw.waker())
	if !reg.Registered() {
		t.Fatalf("registration empty after register")
	}
	if !reg.Wake() {
		t.Fatalf("wake found no waiter")
	}
	if got := fw.wakes.Load(); got != 1 {
		t.Fatalf("foreign wakes = %d, want 1", got)
	}
	if reg.Wake() {
		t.Fatalf("second wake found a waiter")
	}

	reg.Register(fw.waker())
	reg.Unregister()
	if got := fw.drops.Load(); got != 1 {
		t.Fatalf("drops = %d, want 1", got)
	}
}

func TestRegistrationWakesReplacedTask(t *testing.T) {
	e, _ := newTestExecutor(Config{})
	pool := NewTaskPool[*scriptFuture]("reg", 2)
	var reg WakerRegistration
	register := func(_ int, cx *Context) { reg.Register(cx.Waker()) }
	a := &scriptFuture{onPoll: register}
	b := &scriptFuture{onPoll: register}
	spawnScript(t, e, pool, a)
	spawnScript(t, e, pool, b)

	// b evicts a, which is woken so it can re-register.
	e.Poll()
	if a.polls != 1 || b.polls != 1 {
		t.Fatalf("polls a=%d b=%d, want 1 each", a.polls, b.polls)
	}
	if e.queue.Empty() {
		t.Fatalf("replaced registrant was not woken")
	}
}
