// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"
	"sort"
)

// A demo is a self-contained workload run from the main thread after
// the scheduler is up. Each exercises one part of the kernel and
// writes a transcript to the console; under the synthetic clock the
// transcript is deterministic.
var demos = map[string]func(sys *System){
	"alarm":    demoAlarm,
	"pingpong": demoPingpong,
	"donate":   demoDonate,
	"priority": demoPriority,
}

// Demos returns the demo names in sorted order.
func Demos() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunDemo runs the named demo on the main thread.
func (sys *System) RunDemo(name string) error {
	fn, ok := demos[name]
	if !ok {
		return fmt.Errorf("unknown demo %q (have %v)", name, Demos())
	}
	fn(sys)
	return nil
}

// demoAlarm starts five threads that each sleep three times, thread i
// until i's duration times the iteration count, and report their wake
// times relative to a common start. The durations are chosen so every
// deadline is distinct and the wake order is a pure function of the
// sleep queue.
func demoAlarm(sys *System) {
	durations := []int64{10, 23, 37, 51, 64}
	const iterations = 3

	done := sys.NewSema(0)
	start := sys.Ticks()

	for id, d := range durations {
		id, d := id, d
		name := fmt.Sprintf("alarm-%d", id)
		sys.Create(name, PriDefault, func(aux any) {
			for i := int64(1); i <= iterations; i++ {
				sys.Sleep(start + i*d - sys.Ticks())
				sys.Printf("alarm: thread %d iteration %d at tick %d\n",
					id, i, sys.Elapsed(start))
			}
			done.Up()
		}, nil)
	}

	for range durations {
		done.Down()
	}
	sys.Printf("alarm: done\n")
}

// demoPingpong bounces the CPU between the main thread and a helper
// with a pair of semaphores, ten round trips.
func demoPingpong(sys *System) {
	const rounds = 10
	ping := sys.NewSema(0)
	pong := sys.NewSema(0)

	sys.Create("pong", PriDefault, func(aux any) {
		for i := 1; i <= rounds; i++ {
			ping.Down()
			sys.Printf("pong %d\n", i)
			pong.Up()
		}
	}, nil)

	for i := 1; i <= rounds; i++ {
		sys.Printf("ping %d\n", i)
		ping.Up()
		pong.Down()
	}
	sys.Printf("pingpong: done\n")
}

// demoDonate shows priority donation: the main thread holds two locks
// and reports its effective priority as higher-priority acquirers
// block on them and again as each lock is released.
func demoDonate(sys *System) {
	a := sys.NewLock()
	b := sys.NewLock()

	report := func(when string) {
		sys.Printf("donate: %s, priority %d\n", when, sys.GetPriority())
	}

	a.Acquire()
	b.Acquire()
	report("holding both locks")

	sys.Create("high", PriDefault+9, func(aux any) {
		a.Acquire()
		sys.Printf("donate: high got lock a\n")
		a.Release()
	}, nil)
	report("high blocked on a")

	sys.Create("medium", PriDefault+4, func(aux any) {
		b.Acquire()
		sys.Printf("donate: medium got lock b\n")
		b.Release()
	}, nil)
	report("medium created")

	a.Release()
	report("released a")
	b.Release()
	report("released b")
}

// demoPriority shows strict priority dispatch: three workers are
// created while the main thread runs at top priority, then main drops
// to the bottom and the workers run highest first.
func demoPriority(sys *System) {
	sys.SetPriority(PriMax)

	for _, pri := range []int{40, 45, 50} {
		pri := pri
		name := fmt.Sprintf("worker-%d", pri)
		sys.Create(name, pri, func(aux any) {
			sys.Printf("priority: %s running at %d\n", sys.CurrentName(), sys.GetPriority())
		}, nil)
	}

	sys.Printf("priority: main stepping aside\n")
	sys.SetPriority(PriMin)
	sys.Printf("priority: done\n")
	sys.SetPriority(PriDefault)
}
