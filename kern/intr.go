// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/threads/interrupt.c.
//
// Copyright 2004-2006 Board of Trustees, Leland Stanford Jr. University.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// IntrLevel is the CPU interrupt state: external interrupts are
// either deliverable (IntrOn) or masked (IntrOff). Interrupt masking
// is the only mutual-exclusion primitive below the scheduler.
type IntrLevel int8

const (
	IntrOff IntrLevel = iota /* external interrupts masked */
	IntrOn                   /* external interrupts deliverable */
)

func (l IntrLevel) String() string {
	if l == IntrOn {
		return "On"
	}
	return "Off"
}

type intrState struct {
	level         IntrLevel
	inHandler     bool /* executing an external interrupt handler */
	yieldOnReturn bool /* yield when the handler completes */
}

// IntrLevel returns the current interrupt level.
func (sys *System) IntrLevel() IntrLevel {
	return sys.intr.level
}

// IntrDisable masks external interrupts and returns the previous level.
func (sys *System) IntrDisable() IntrLevel {
	old := sys.intr.level
	sys.intr.level = IntrOff
	return old
}

// IntrEnable unmasks external interrupts and returns the previous
// level. Any interrupts that were posted while masked are delivered
// before IntrEnable returns.
func (sys *System) IntrEnable() IntrLevel {
	sys.kassert(!sys.IntrContext(), "intr enable in interrupt handler")
	old := sys.intr.level
	sys.intr.level = IntrOn
	sys.intrCheck()
	return old
}

// IntrSetLevel sets the interrupt level and returns the previous one.
// Nested disables compose by snapshot-and-restore: restoring Off
// inside an outer Off section is a no-op.
func (sys *System) IntrSetLevel(level IntrLevel) IntrLevel {
	if level == IntrOn {
		return sys.IntrEnable()
	}
	return sys.IntrDisable()
}

// IntrContext reports whether we are executing an external
// interrupt handler.
func (sys *System) IntrContext() bool {
	return sys.intr.inHandler
}

// IntrYieldOnReturn asks the dispatcher to yield the CPU to a new
// thread when the current interrupt handler completes. Only
// meaningful inside a handler.
func (sys *System) IntrYieldOnReturn() {
	sys.kassert(sys.IntrContext(), "yield-on-return outside interrupt handler")
	sys.intr.yieldOnReturn = true
}

// Pause is an instruction boundary: an interrupt window where posted
// external interrupts are delivered to the running thread. Tight
// compute loops call Pause the way real code is punctuated by
// interruptible instructions. Under the synthetic clock each Pause
// also accounts for one timer tick.
func (sys *System) Pause() {
	if sys.SyntheticClock && sys.intr.level == IntrOn && !sys.intr.inHandler {
		sys.pendingIntr.Inc()
	}
	sys.intrCheck()
}

// intrCheck delivers pending external interrupts if the level allows.
func (sys *System) intrCheck() {
	if sys.intr.level != IntrOn || sys.intr.inHandler {
		return
	}
	for sys.pendingIntr.Load() > 0 {
		sys.pendingIntr.Dec()
		sys.externalInterrupt()
	}
}

// externalInterrupt vectors to the timer handler, the only external
// interrupt source on this machine. The hardware sequence: mask
// interrupts, run the handler in interrupt context, then on return
// honor a requested yield exactly once before unmasking resumes.
func (sys *System) externalInterrupt() {
	sys.intr.level = IntrOff
	sys.intr.inHandler = true
	sys.timerInterrupt()
	sys.intr.inHandler = false
	yield := sys.intr.yieldOnReturn
	sys.intr.yieldOnReturn = false
	sys.intr.level = IntrOn
	if yield {
		sys.Yield()
	}
}

// halt is the idle thread's "sti; hlt": atomically unmask interrupts
// and stop until one arrives. Must be called with interrupts masked.
// Under the synthetic clock, halting skips the clock forward to the
// next alarm deadline instead of waiting for a host tick.
func (sys *System) halt() {
	sys.kassert(sys.intr.level == IntrOff, "halt with interrupts on")
	if sys.SyntheticClock {
		if sys.pendingIntr.Load() == 0 {
			if len(sys.sleepq) == 0 {
				sys.kpanic("halt: no runnable threads, no alarms, no pending interrupts")
			}
			delta := sys.sleepq[0].wakeTime - sys.ticks.Load()
			if delta < 1 {
				delta = 1
			}
			sys.pendingIntr.Add(delta)
		}
	} else {
		for sys.pendingIntr.Load() == 0 {
			<-sys.intrPosted
		}
	}
	sys.IntrEnable()
}
