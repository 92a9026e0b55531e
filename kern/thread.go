// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/threads/thread.c.
//
// Copyright 2004-2006 Board of Trustees, Leland Stanford Jr. University.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kern simulates a preemptive kernel thread scheduler with
// strict-priority scheduling and priority donation. Each kernel
// thread is a goroutine parked on an unbuffered channel; the context
// switch is a channel handoff, so exactly one goroutine executes
// kernel code at a time and interrupt masking is the only
// lower-level mutual exclusion.
package kern

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// ThreadFunc is a kernel thread's entry point. It runs with
// interrupts enabled; returning from it exits the thread.
type ThreadFunc func(aux any)

// Thread is a kernel thread record. It occupies one page from the
// kernel pool; the parked goroutine referenced by sched stands in
// for the kernel stack that shares the page on a real machine.
type Thread struct {
	tid        Tid
	name       string
	status     Status
	basePri    int     /* priority set by Create or SetPriority */
	donatedPri int     /* peak priority donated by lock waiters, PriMin when none */
	ownedLocks []*Lock /* locks currently held */
	blockedOn  *Lock   /* lock this thread is waiting to acquire */
	wakeTime   int64   /* tick deadline while on the sleep queue */
	readyPri   int     /* bucket index while on the ready queue */
	sched      chan bool
	magic      uint32
}

// Tid returns the thread's identifier.
func (t *Thread) Tid() Tid { return t.tid }

// Name returns the thread's name.
func (t *Thread) Name() string { return t.name }

// Status returns the thread's scheduling state.
func (t *Thread) Status() Status { return t.status }

// effective is the priority used for every scheduling decision:
// the donated priority when it exceeds the base.
func (t *Thread) effective() int {
	if t.donatedPri > t.basePri {
		return t.donatedPri
	}
	return t.basePri
}

func isThread(t *Thread) bool {
	return t != nil && t.magic == threadMagic
}

// System is one simulated machine: CPU, interrupt controller, timer,
// thread pool, and scheduler state. All fields except the atomics
// and intrPosted are touched only by the goroutine currently holding
// the CPU, with interrupts masked.
type System struct {
	// Configuration, set before Init.
	SyntheticClock bool             /* ticks accrue per Pause; halt skips to the next alarm */
	Mlfqs          bool             /* -mlfqs: scheduler hook carried but unimplemented */
	Console        io.Writer        /* destination for Printf */
	Activate       func(t *Thread)  /* user address-space activation hook, may be nil */

	intr        intrState
	pendingIntr atomic.Int64  /* external interrupts posted but not yet delivered */
	intrPosted  chan struct{} /* wakes a halted CPU; posted by host goroutines */

	ticks   atomic.Int64 /* timer ticks since boot */
	sleepq  []*Thread    /* blocked sleepers, ordered by wakeTime */

	ready        readyQueue
	all          []*Thread
	running      *Thread
	switchedFrom *Thread /* set by the switching-out side of every context switch */
	idleThread   *Thread
	initial      *Thread
	arena        *pageArena

	tidLock *Lock
	nextTid Tid

	sliceTicks  int /* ticks since the running thread was scheduled */
	idleTicks   int64
	kernelTicks int64
	userTicks   int64

	log *logrus.Entry
}

// NewSystem returns a machine with interrupts masked and no threads.
// Call Init and then Start to boot the scheduler.
func NewSystem() *System {
	sys := &System{
		Console:    os.Stdout,
		intrPosted: make(chan struct{}, 1),
		arena:      newPageArena(NPAGES),
		nextTid:    1,
	}
	sys.ready.init()
	sys.log = logrus.WithField("boot", uuid.NewString()[:8])
	return sys
}

// Init initializes the threading system, installing the caller's
// execution context as the thread named "main". Interrupts must be
// masked; they stay masked until Start.
func (sys *System) Init() {
	sys.kassert(sys.IntrLevel() == IntrOff, "Init with interrupts on")

	t := sys.arena.alloc()
	sys.initThread(t, "main", PriDefault)
	t.status = StatusRunning
	sys.running = t
	sys.initial = t

	sys.tidLock = sys.NewLock()
	t.tid = sys.allocateTid()
}

// Start creates the idle thread and enables preemptive scheduling.
// It returns once the idle thread has recorded itself.
func (sys *System) Start() {
	started := sys.NewSema(0)
	sys.Create("idle", PriMin, sys.idle, started)
	sys.IntrEnable()
	started.Down()
}

// Tick is called by the timer interrupt handler at every tick. It
// accumulates per-class statistics and enforces the time slice.
func (sys *System) Tick() {
	if sys.running == sys.idleThread {
		sys.idleTicks++
	} else {
		sys.kernelTicks++
	}

	sys.sliceTicks++
	if sys.sliceTicks >= TimeSlice {
		sys.IntrYieldOnReturn()
	}
}

// PrintStats writes the per-class tick counters to the console.
func (sys *System) PrintStats() {
	sys.Printf("Thread: %d idle ticks, %d kernel ticks, %d user ticks\n",
		sys.idleTicks, sys.kernelTicks, sys.userTicks)
}

// Create starts a new kernel thread running fn(aux) and returns its
// tid. The caller yields, so a new thread at or above the caller's
// effective priority runs before Create returns. If no thread page is
// available, Create returns TidError and an error with no thread
// registered.
func (sys *System) Create(name string, priority int, fn ThreadFunc, aux any) (Tid, error) {
	sys.kassert(fn != nil, "Create with nil function")

	t := sys.arena.alloc()
	if t == nil {
		return TidError, fmt.Errorf("create %q: out of thread pages", name)
	}
	sys.initThread(t, name, priority)
	t.tid = sys.allocateTid()
	tid := t.tid

	// The trampoline goroutine is the new thread's stack and saved
	// registers: it parks until the first context switch dispatches it.
	go sys.threadEntry(t, fn, aux)

	sys.log.WithFields(logrus.Fields{"tid": t.tid, "name": t.name, "pri": priority}).Debug("create")

	// The new thread may run, exit, and have its page reaped before
	// Yield returns, so the tid is read before yielding.
	sys.Unblock(t)
	sys.Yield()
	return tid, nil
}

// threadEntry is the first frame on every created thread's stack:
// finish the switch that dispatched us, enable interrupts, run the
// thread function, and exit on return.
func (sys *System) threadEntry(t *Thread, fn ThreadFunc, aux any) {
	<-t.sched
	sys.scheduleTail(t, sys.switchedFrom)
	sys.IntrEnable()
	fn(aux)
	sys.Exit()
}

// Block marks the running thread blocked and reschedules. Interrupts
// must be masked; the caller must already have recorded itself on
// the wait queue that will later unblock it.
func (sys *System) Block() {
	sys.kassert(!sys.IntrContext(), "Block in interrupt context")
	sys.kassert(sys.IntrLevel() == IntrOff, "Block with interrupts on")

	sys.Current().status = StatusBlocked
	sys.schedule()
}

// Unblock moves the blocked thread t to the ready queue. Safe to
// call from an interrupt handler.
func (sys *System) Unblock(t *Thread) {
	sys.kassert(isThread(t), "Unblock of a non-thread")

	old := sys.IntrDisable()
	sys.kassert(t.status == StatusBlocked, "Unblock of a thread that is not blocked")
	sys.ready.push(t)
	t.status = StatusReady
	sys.IntrSetLevel(old)
}

// Current returns the running thread.
func (sys *System) Current() *Thread {
	t := sys.running
	sys.kassert(isThread(t), "current thread record corrupted")
	sys.kassert(t.status == StatusRunning, "current thread not running")
	return t
}

// CurrentTid returns the running thread's identifier.
func (sys *System) CurrentTid() Tid { return sys.Current().tid }

// CurrentName returns the running thread's name.
func (sys *System) CurrentName() string { return sys.Current().name }

// Exit removes the running thread from the system and reschedules.
// It never returns; the successor reaps the thread's page.
func (sys *System) Exit() {
	sys.kassert(!sys.IntrContext(), "Exit in interrupt context")

	sys.IntrDisable()
	t := sys.Current()
	for i, o := range sys.all {
		if o == t {
			sys.all = append(sys.all[:i], sys.all[i+1:]...)
			break
		}
	}
	t.status = StatusDying
	sys.log.WithFields(logrus.Fields{"tid": t.tid, "name": t.name}).Debug("exit")
	sys.schedule()
	panic("schedule returned to a dying thread")
}

// Yield gives up the CPU. The caller stays ready and may be
// rescheduled immediately if it is still the highest priority.
func (sys *System) Yield() {
	cur := sys.Current()
	sys.kassert(!sys.IntrContext(), "Yield in interrupt context")

	old := sys.IntrDisable()
	if cur != sys.idleThread {
		sys.ready.push(cur)
	}
	cur.status = StatusReady
	sys.schedule()
	sys.IntrSetLevel(old)
}

// Foreach applies fn to every live thread. Interrupts must be masked
// so the thread set is quiescent.
func (sys *System) Foreach(fn func(t *Thread)) {
	sys.kassert(sys.IntrLevel() == IntrOff, "Foreach with interrupts on")
	for _, t := range sys.all {
		fn(t)
	}
}

// SetPriority sets the running thread's base priority and yields,
// since the caller may no longer be the highest-priority runnable
// thread.
func (sys *System) SetPriority(priority int) {
	sys.kassert(PriMin <= priority && priority <= PriMax, "priority out of range")
	sys.Current().basePri = priority
	sys.Yield()
}

// GetPriority returns the running thread's effective priority.
func (sys *System) GetPriority() int {
	return sys.Current().effective()
}

// SetNice, GetNice, GetLoadAvg, and GetRecentCpu are the MLFQS
// surface; the -o mlfqs flag is carried but the scheduler is not
// implemented.
func (sys *System) SetNice(nice int) {}

func (sys *System) GetNice() int { return 0 }

func (sys *System) GetLoadAvg() int { return 0 }

func (sys *System) GetRecentCpu() int { return 0 }

// idle runs at PriMin whenever no other thread is ready: block, then
// atomically re-enable interrupts and halt until the next one.
func (sys *System) idle(aux any) {
	started := aux.(*Semaphore)
	sys.idleThread = sys.Current()
	started.Up()

	for {
		sys.IntrDisable()
		sys.Block()
		sys.halt()
	}
}

// initThread fills in a blocked thread record and registers it in
// the all-threads set. The nested interrupt disable is a no-op when
// the caller already masked.
func (sys *System) initThread(t *Thread, name string, priority int) {
	sys.kassert(t != nil, "initThread of nil page")
	sys.kassert(PriMin <= priority && priority <= PriMax, "priority out of range")

	if len(name) > threadNameMax {
		name = name[:threadNameMax]
	}
	t.name = name
	t.status = StatusBlocked
	t.basePri = priority
	t.donatedPri = PriMin
	t.sched = make(chan bool)
	t.magic = threadMagic

	old := sys.IntrDisable()
	sys.all = append(sys.all, t)
	sys.IntrSetLevel(old)
}

// nextToRun picks and removes the highest-priority ready thread, or
// the idle thread if none is ready.
func (sys *System) nextToRun() *Thread {
	if t := sys.ready.popMax(); t != nil {
		return t
	}
	return sys.idleThread
}

// scheduleTail completes a context switch in the new thread's
// context: mark it running, restart the slice, activate its address
// space, and reap the predecessor if it is dying.
func (sys *System) scheduleTail(t, prev *Thread) {
	sys.kassert(sys.IntrLevel() == IntrOff, "scheduleTail with interrupts on")

	sys.running = t
	t.status = StatusRunning
	sys.sliceTicks = 0

	if sys.Activate != nil {
		sys.Activate(t)
	}

	if prev != nil && prev.status == StatusDying && prev != sys.initial {
		sys.kassert(prev != t, "reaping the running thread")
		prev.sched <- false
		sys.arena.freePage(prev)
	}
}

// schedule switches to the next thread to run. Interrupts must be
// masked and the caller must already have left the Running state.
func (sys *System) schedule() {
	cur := sys.running
	next := sys.nextToRun()

	sys.kassert(sys.IntrLevel() == IntrOff, "schedule with interrupts on")
	sys.kassert(cur.status != StatusRunning, "schedule from a running thread")
	sys.kassert(isThread(next), "next thread record corrupted")

	var prev *Thread
	if cur != next {
		prev = sys.switchContext(cur, next)
	}
	sys.scheduleTail(cur, prev)
}

// switchContext hands the CPU to next and parks cur. The token sent
// on a dying thread's channel is false, releasing its goroutine.
// The returned thread is whichever one eventually switches back to
// cur, read from switchedFrom on resumption.
func (sys *System) switchContext(cur, next *Thread) *Thread {
	sys.switchedFrom = cur
	next.sched <- true
	if live := <-cur.sched; !live {
		runtime.Goexit()
	}
	return sys.switchedFrom
}

// allocateTid hands out monotonically increasing thread ids under
// the tid lock.
func (sys *System) allocateTid() Tid {
	sys.tidLock.Acquire()
	tid := sys.nextTid
	sys.nextTid++
	sys.tidLock.Release()
	return tid
}
