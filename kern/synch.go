// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/threads/synch.c, itself derived from the
// Nachos instructional operating system.
//
// Copyright (c) 1992-1996 The Regents of the University of California.
// All rights reserved. Use of this source code is governed by a
// BSD-style license that can be found in the LICENSE file.

package kern

import (
	"sort"

	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
)

// Semaphore is a counting semaphore: a non-negative value with
// atomic Down (wait for positive, then decrement) and Up (increment
// and wake one waiter). Up wakes the waiter with the highest
// effective priority at that moment, not the longest-waiting one.
type Semaphore struct {
	sys     *System
	value   uint
	waiters deque.Deque[*Thread] /* appended in arrival order */
}

// NewSema returns a semaphore with the given initial value.
func (sys *System) NewSema(value uint) *Semaphore {
	return &Semaphore{sys: sys, value: value}
}

// Down waits for the semaphore's value to become positive and
// decrements it. May block; must not be called from an interrupt
// handler. A wakeup that does not correspond to an increment
// re-blocks the thread.
func (s *Semaphore) Down() {
	sys := s.sys
	sys.kassert(!sys.IntrContext(), "sema down in interrupt context")

	old := sys.IntrDisable()
	t := sys.Current()
	for s.value == 0 {
		s.waiters.PushBack(t)
		sys.Block()
	}
	s.value--
	sys.IntrSetLevel(old)
}

// TryDown decrements the value if it is positive, without blocking.
// Safe to call from an interrupt handler.
func (s *Semaphore) TryDown() bool {
	sys := s.sys
	old := sys.IntrDisable()
	ok := s.value > 0
	if ok {
		s.value--
	}
	sys.IntrSetLevel(old)
	return ok
}

// Up increments the value and wakes the highest-priority waiter, if
// any. Outside interrupt context it then yields, so a just-woken
// higher-priority thread preempts immediately; inside a handler the
// preemption is left to the yield-on-return path.
func (s *Semaphore) Up() {
	sys := s.sys
	old := sys.IntrDisable()
	if s.waiters.Len() > 0 {
		sys.Unblock(s.popMaxWaiter())
	}
	s.value++
	sys.IntrSetLevel(old)

	if !sys.IntrContext() {
		sys.Yield()
	}
}

// popMaxWaiter removes the waiter with the highest effective
// priority as of now; donations received while waiting count.
func (s *Semaphore) popMaxWaiter() *Thread {
	best := 0
	for i := 1; i < s.waiters.Len(); i++ {
		if s.waiters.At(i).effective() > s.waiters.At(best).effective() {
			best = i
		}
	}
	s.waiters.Rotate(best)
	t := s.waiters.PopFront()
	if s.waiters.Len() > 1 {
		s.waiters.Rotate(-best)
	}
	return t
}

// Lock is a binary semaphore with an owner. Only the thread that
// acquired a lock may release it, and a thread must not acquire a
// lock it already holds. Contended locks donate their waiters'
// priority to the holder; see donate.
type Lock struct {
	sys          *System
	holder       *Thread
	sema         Semaphore /* value 1 when the lock is free */
	maxWaiterPri int       /* peak effective priority among current waiters */
}

// NewLock returns an unowned lock.
func (sys *System) NewLock() *Lock {
	return &Lock{sys: sys, holder: nil, sema: Semaphore{sys: sys, value: 1}, maxWaiterPri: PriMin}
}

// HeldByCurrent reports whether the running thread owns l.
func (l *Lock) HeldByCurrent() bool {
	return l.holder == l.sys.Current()
}

// donate propagates priority pri along the chain of lock holders:
// the holder of a contested lock runs at least at the priority of
// its highest waiter, transitively through the lock it itself is
// blocked on. A READY holder is re-bucketed so the ready queue sees
// the raise.
func (sys *System) donate(l *Lock, pri int) {
	if l == nil {
		return
	}
	if l.maxWaiterPri < pri {
		l.maxWaiterPri = pri
	}
	h := l.holder
	if h == nil {
		return
	}
	if h.donatedPri < pri {
		h.donatedPri = pri
		if h.status == StatusReady {
			sys.ready.promote(h)
		}
		sys.log.WithFields(logrus.Fields{"to": h.name, "pri": pri}).Trace("donate")
	}
	sys.donate(h.blockedOn, pri)
}

// Acquire takes l, blocking until it is available. While blocked,
// the caller's effective priority is donated along the holder chain.
// May sleep; must not be called from an interrupt handler.
func (l *Lock) Acquire() {
	sys := l.sys
	sys.kassert(!sys.IntrContext(), "lock acquire in interrupt context")
	sys.kassert(!l.HeldByCurrent(), "lock acquire of a lock already held")

	t := sys.Current()
	old := sys.IntrDisable()

	if !l.TryAcquire() {
		sys.donate(l, t.effective())
		t.blockedOn = l
		l.sema.Down()
		l.holder = t
		t.blockedOn = nil
		t.ownedLocks = append([]*Lock{l}, t.ownedLocks...)
	}

	sys.IntrSetLevel(old)
}

// TryAcquire takes l without blocking and reports whether it
// succeeded. Safe to call from an interrupt handler.
func (l *Lock) TryAcquire() bool {
	sys := l.sys
	sys.kassert(!l.HeldByCurrent(), "lock acquire of a lock already held")

	t := sys.Current()
	if !l.sema.TryDown() {
		return false
	}
	l.holder = t
	t.ownedLocks = append([]*Lock{l}, t.ownedLocks...)
	return true
}

// Release gives up l and wakes its highest-priority waiter. The
// releaser's donated priority collapses to the peak waiter priority
// of the other locks it still holds.
func (l *Lock) Release() {
	sys := l.sys
	sys.kassert(!sys.IntrContext(), "lock release in interrupt context")
	sys.kassert(l.HeldByCurrent(), "lock release of a lock not held")

	t := sys.Current()
	old := sys.IntrDisable()

	t.donatedPri = PriMin
	for i := 0; i < len(t.ownedLocks); {
		held := t.ownedLocks[i]
		if held == l {
			t.ownedLocks = append(t.ownedLocks[:i], t.ownedLocks[i+1:]...)
			l.holder = nil
			l.maxWaiterPri = PriMin
			continue
		}
		if held.maxWaiterPri > t.donatedPri {
			t.donatedPri = held.maxWaiterPri
		}
		i++
	}

	sys.IntrSetLevel(old)
	l.sema.Up()
}

// condWaiter is one Wait call: a single-shot semaphore and the
// thread sleeping on it. The thread pointer is recorded at insert
// time so signalling can re-rank waiters by their current effective
// priority even before the waiter has parked.
type condWaiter struct {
	t    *Thread
	sema Semaphore
}

// Cond is a condition variable: waiters atomically release a lock
// and sleep until signalled, then reacquire the lock. Signals wake
// waiters in order of current effective priority.
type Cond struct {
	sys     *System
	waiters []*condWaiter
}

// NewCond returns a condition variable with no waiters.
func (sys *System) NewCond() *Cond {
	return &Cond{sys: sys}
}

// Wait atomically releases lock and sleeps until signalled, then
// reacquires lock before returning. The caller must hold lock.
func (c *Cond) Wait(lock *Lock) {
	sys := c.sys
	sys.kassert(!sys.IntrContext(), "cond wait in interrupt context")
	sys.kassert(lock.HeldByCurrent(), "cond wait without holding the lock")

	w := &condWaiter{t: sys.Current(), sema: Semaphore{sys: sys}}
	i := sort.Search(len(c.waiters), func(i int) bool {
		return c.waiters[i].t.effective() < w.t.effective()
	})
	c.waiters = append(c.waiters, nil)
	copy(c.waiters[i+1:], c.waiters[i:])
	c.waiters[i] = w

	lock.Release()
	w.sema.Down()
	lock.Acquire()
}

// Signal wakes one thread waiting on c, if any. Waiters are
// re-ranked first: a donation may have raised a sleeper's effective
// priority since it went to sleep, and the highest current priority
// wins. The caller must hold lock.
func (c *Cond) Signal(lock *Lock) {
	sys := c.sys
	sys.kassert(lock.HeldByCurrent(), "cond signal without holding the lock")

	if len(c.waiters) > 0 {
		sort.SliceStable(c.waiters, func(i, j int) bool {
			return c.waiters[i].t.effective() > c.waiters[j].t.effective()
		})
		w := c.waiters[0]
		c.waiters = c.waiters[1:]
		w.sema.Up()
	}

	if !sys.IntrContext() {
		sys.Yield()
	}
}

// Broadcast wakes every thread waiting on c. The caller must hold
// lock.
func (c *Cond) Broadcast(lock *Lock) {
	for len(c.waiters) > 0 {
		c.Signal(lock)
	}
}
