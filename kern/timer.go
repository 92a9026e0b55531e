// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/devices/timer.c.
//
// Copyright 2004-2006 Board of Trustees, Leland Stanford Jr. University.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "sort"

// Ticks returns the number of timer ticks since boot.
func (sys *System) Ticks() int64 {
	return sys.ticks.Load()
}

// Elapsed returns the number of ticks since then, which should be a
// value previously returned by Ticks.
func (sys *System) Elapsed(then int64) int64 {
	return sys.ticks.Load() - then
}

// Sleep blocks the running thread for at least n timer ticks. The
// thread joins the sleep queue and is woken by the timer interrupt at
// its deadline; no cycles are burned waiting. Interrupts must be on.
func (sys *System) Sleep(n int64) {
	sys.kassert(sys.IntrLevel() == IntrOn, "Sleep with interrupts off")
	if n <= 0 {
		return
	}

	old := sys.IntrDisable()
	t := sys.Current()
	t.wakeTime = sys.ticks.Load() + n

	i := sort.Search(len(sys.sleepq), func(i int) bool {
		return sys.sleepq[i].wakeTime > t.wakeTime
	})
	sys.sleepq = append(sys.sleepq, nil)
	copy(sys.sleepq[i+1:], sys.sleepq[i:])
	sys.sleepq[i] = t

	sys.Block()
	sys.IntrSetLevel(old)
}

// AdvanceClock posts n timer interrupts from outside the machine, the
// way a hardware timer raises its line. Safe to call from any host
// goroutine; the interrupts are delivered at the CPU's next interrupt
// window, and a halted CPU is woken.
func (sys *System) AdvanceClock(n int64) {
	sys.pendingIntr.Add(n)
	select {
	case sys.intrPosted <- struct{}{}:
	default:
	}
}

// timerInterrupt is the timer's interrupt handler: count the tick,
// wake expired sleepers, and run the scheduler's per-tick work.
func (sys *System) timerInterrupt() {
	sys.ticks.Inc()
	sys.wakeSleepers()
	sys.Tick()
}

// wakeSleepers unblocks every sleeper whose deadline has passed. If a
// woken thread outranks the running one, the dispatcher is asked to
// yield on return so the sleeper preempts immediately.
func (sys *System) wakeSleepers() {
	now := sys.ticks.Load()
	for len(sys.sleepq) > 0 && sys.sleepq[0].wakeTime <= now {
		t := sys.sleepq[0]
		sys.sleepq = sys.sleepq[1:]
		t.wakeTime = 0
		sys.Unblock(t)
		if t.effective() > sys.running.effective() {
			sys.IntrYieldOnReturn()
		}
	}
}
