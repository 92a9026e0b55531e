// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "testing"

func TestSemaUpWakesHighestPriority(t *testing.T) {
	sys, _ := boot(t)
	sema := sys.NewSema(0)

	var order []int
	for _, pri := range []int{35, 45, 40} {
		pri := pri
		if _, err := sys.Create("waiter", pri, func(aux any) {
			sema.Down()
			order = append(order, pri)
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 3; i++ {
		sema.Up()
	}
	want := []int{45, 40, 35}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("wake order = %v, want %v", order, want)
		}
	}
}

func TestSemaTryDown(t *testing.T) {
	sys, _ := boot(t)
	sema := sys.NewSema(1)

	if !sema.TryDown() {
		t.Fatal("TryDown failed on a semaphore with value 1")
	}
	if sema.TryDown() {
		t.Fatal("TryDown succeeded on a semaphore with value 0")
	}
	sema.Up()
	if !sema.TryDown() {
		t.Fatal("TryDown failed after Up")
	}
}

// TestSemaPingpong bounces control between two threads through a pair
// of semaphores, checking that each Down observes exactly one Up.
func TestSemaPingpong(t *testing.T) {
	sys, _ := boot(t)
	ping := sys.NewSema(0)
	pong := sys.NewSema(0)

	const rounds = 10
	helperTurns := 0
	if _, err := sys.Create("pong", PriDefault, func(aux any) {
		for i := 0; i < rounds; i++ {
			ping.Down()
			helperTurns++
			pong.Up()
		}
	}, nil); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < rounds; i++ {
		if helperTurns != i {
			t.Fatalf("round %d: helper has run %d turns", i, helperTurns)
		}
		ping.Up()
		pong.Down()
	}
	if helperTurns != rounds {
		t.Fatalf("helper ran %d turns, want %d", helperTurns, rounds)
	}
}

func TestLockDonation(t *testing.T) {
	sys, _ := boot(t)
	l := sys.NewLock()

	l.Acquire()
	if got := sys.GetPriority(); got != PriDefault {
		t.Fatalf("priority before contention = %d, want %d", got, PriDefault)
	}

	var order []string
	sys.Create("mid", PriDefault+10, func(aux any) {
		l.Acquire()
		order = append(order, "mid")
		l.Release()
	}, nil)
	if got := sys.GetPriority(); got != PriDefault+10 {
		t.Errorf("priority with one waiter = %d, want %d", got, PriDefault+10)
	}

	sys.Create("high", PriDefault+14, func(aux any) {
		l.Acquire()
		order = append(order, "high")
		l.Release()
	}, nil)
	if got := sys.GetPriority(); got != PriDefault+14 {
		t.Errorf("priority with two waiters = %d, want %d", got, PriDefault+14)
	}

	l.Release()
	if got := sys.GetPriority(); got != PriDefault {
		t.Errorf("priority after release = %d, want %d", got, PriDefault)
	}
	if len(order) != 2 || order[0] != "high" || order[1] != "mid" {
		t.Errorf("acquisition order = %v, want [high mid]", order)
	}
}

// TestLockDonationNested sends a donation through a chain of two
// locks: high waits on mid's lock while mid waits on main's.
func TestLockDonationNested(t *testing.T) {
	sys, _ := boot(t)
	a := sys.NewLock()
	b := sys.NewLock()

	a.Acquire()

	var order []string
	sys.Create("mid", PriDefault+5, func(aux any) {
		b.Acquire()
		a.Acquire()
		order = append(order, "mid")
		a.Release()
		b.Release()
	}, nil)
	if got := sys.GetPriority(); got != PriDefault+5 {
		t.Errorf("priority donated by mid = %d, want %d", got, PriDefault+5)
	}

	sys.Create("high", PriDefault+10, func(aux any) {
		b.Acquire()
		order = append(order, "high")
		b.Release()
	}, nil)
	if got := sys.GetPriority(); got != PriDefault+10 {
		t.Errorf("priority donated through the chain = %d, want %d", got, PriDefault+10)
	}

	a.Release()
	if got := sys.GetPriority(); got != PriDefault {
		t.Errorf("priority after release = %d, want %d", got, PriDefault)
	}
	if len(order) != 2 || order[0] != "mid" || order[1] != "high" {
		t.Errorf("completion order = %v, want [mid high]", order)
	}
}

// TestLockDonationMultiple holds two contested locks at once; the
// donated priority steps down as each lock is released.
func TestLockDonationMultiple(t *testing.T) {
	sys, _ := boot(t)
	a := sys.NewLock()
	b := sys.NewLock()

	a.Acquire()
	b.Acquire()

	sys.Create("want-a", PriDefault+10, func(aux any) {
		a.Acquire()
		a.Release()
	}, nil)
	sys.Create("want-b", PriDefault+12, func(aux any) {
		b.Acquire()
		b.Release()
	}, nil)
	if got := sys.GetPriority(); got != PriDefault+12 {
		t.Errorf("priority holding both = %d, want %d", got, PriDefault+12)
	}

	b.Release()
	if got := sys.GetPriority(); got != PriDefault+10 {
		t.Errorf("priority after releasing b = %d, want %d", got, PriDefault+10)
	}
	a.Release()
	if got := sys.GetPriority(); got != PriDefault {
		t.Errorf("priority after releasing both = %d, want %d", got, PriDefault)
	}
}

func TestTryAcquire(t *testing.T) {
	sys, _ := boot(t)
	l := sys.NewLock()

	l.Acquire()
	got := true
	sys.Create("prober", PriDefault+1, func(aux any) {
		got = l.TryAcquire()
	}, nil)
	if got {
		t.Error("TryAcquire succeeded on a held lock")
	}
	l.Release()

	sys.Create("prober", PriDefault+1, func(aux any) {
		got = l.TryAcquire()
		if got {
			l.Release()
		}
	}, nil)
	if !got {
		t.Error("TryAcquire failed on a free lock")
	}
}

func TestCondSignalWakesHighestPriority(t *testing.T) {
	sys, _ := boot(t)
	m := sys.NewLock()
	c := sys.NewCond()

	var order []int
	for _, pri := range []int{33, 39, 36} {
		pri := pri
		sys.Create("waiter", pri, func(aux any) {
			m.Acquire()
			c.Wait(m)
			order = append(order, pri)
			m.Release()
		}, nil)
	}

	for i := 0; i < 3; i++ {
		m.Acquire()
		c.Signal(m)
		m.Release()
	}
	want := []int{39, 36, 33}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("wake order = %v, want %v", order, want)
		}
	}
}

func TestCondBroadcast(t *testing.T) {
	sys, _ := boot(t)
	m := sys.NewLock()
	c := sys.NewCond()

	var order []int
	for _, pri := range []int{33, 36, 39} {
		pri := pri
		sys.Create("waiter", pri, func(aux any) {
			m.Acquire()
			c.Wait(m)
			order = append(order, pri)
			m.Release()
		}, nil)
	}

	m.Acquire()
	c.Broadcast(m)
	m.Release()

	want := []int{39, 36, 33}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("wake order = %v, want %v", order, want)
		}
	}
}

// TestCondSignalSeesDonation parks a low-priority waiter that holds a
// contested lock. The donation it receives while asleep must count
// when Signal ranks the waiters.
func TestCondSignalSeesDonation(t *testing.T) {
	sys, _ := boot(t)
	aux := sys.NewLock()
	m := sys.NewLock()
	c := sys.NewCond()

	var order []string
	sys.Create("w-low", 33, func(a any) {
		aux.Acquire()
		m.Acquire()
		c.Wait(m)
		order = append(order, "w-low")
		m.Release()
		aux.Release()
	}, nil)
	sys.Create("w-high", 35, func(a any) {
		m.Acquire()
		c.Wait(m)
		order = append(order, "w-high")
		m.Release()
	}, nil)
	sys.Create("booster", 50, func(a any) {
		aux.Acquire()
		order = append(order, "booster")
		aux.Release()
	}, nil)

	for i := 0; i < 2; i++ {
		m.Acquire()
		c.Signal(m)
		m.Release()
	}

	want := []string{"w-low", "booster", "w-high"}
	if len(order) != len(want) {
		t.Fatalf("completion order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("completion order = %v, want %v", order, want)
		}
	}
}
