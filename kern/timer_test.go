// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "testing"

func TestSleepWakesInDeadlineOrder(t *testing.T) {
	sys, _ := boot(t)

	type wake struct {
		dur     int64
		elapsed int64
	}
	var wakes []wake
	start := sys.Ticks()
	for _, d := range []int64{30, 10, 20} {
		d := d
		if _, err := sys.Create("sleeper", PriDefault, func(aux any) {
			sys.Sleep(d)
			wakes = append(wakes, wake{d, sys.Elapsed(start)})
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	sys.Sleep(40)
	if got := sys.Elapsed(start); got != 40 {
		t.Errorf("main woke after %d ticks, want 40", got)
	}
	want := []int64{10, 20, 30}
	if len(wakes) != len(want) {
		t.Fatalf("recorded %d wakes, want %d", len(wakes), len(want))
	}
	for i, w := range wakes {
		if w.dur != want[i] {
			t.Errorf("wake %d was the %d-tick sleeper, want %d", i, w.dur, want[i])
		}
		if w.elapsed != w.dur {
			t.Errorf("%d-tick sleeper woke after %d ticks", w.dur, w.elapsed)
		}
	}
}

func TestSleepZeroDoesNotBlock(t *testing.T) {
	sys, _ := boot(t)

	start := sys.Ticks()
	sys.Sleep(0)
	sys.Sleep(-5)
	if got := sys.Elapsed(start); got != 0 {
		t.Errorf("non-positive Sleep advanced the clock by %d ticks", got)
	}
}

func TestAdvanceClockDeliversAtInterruptWindow(t *testing.T) {
	sys, _ := boot(t)
	sys.SyntheticClock = false

	start := sys.Ticks()
	sys.AdvanceClock(5)
	sys.Pause()
	if got := sys.Elapsed(start); got != 5 {
		t.Errorf("ticks advanced by %d, want 5", got)
	}
}

func TestInterruptsHeldWhileMasked(t *testing.T) {
	sys, _ := boot(t)
	sys.SyntheticClock = false

	start := sys.Ticks()
	old := sys.IntrDisable()
	sys.AdvanceClock(3)
	sys.Pause()
	if got := sys.Elapsed(start); got != 0 {
		t.Fatalf("ticks advanced by %d with interrupts masked", got)
	}
	sys.IntrSetLevel(old)
	if got := sys.Elapsed(start); got != 3 {
		t.Errorf("ticks advanced by %d after unmasking, want 3", got)
	}
}

// TestTimeSlicePreemption runs two equal-priority compute loops and
// checks that the timer hands the CPU back and forth every TimeSlice
// ticks.
func TestTimeSlicePreemption(t *testing.T) {
	sys, _ := boot(t)
	sys.SetPriority(PriMax)

	var trace []byte
	for _, id := range []byte{'a', 'b'} {
		id := id
		if _, err := sys.Create(string(id), PriDefault+9, func(aux any) {
			for i := 0; i < 2*TimeSlice; i++ {
				trace = append(trace, id)
				sys.Pause()
			}
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	sys.SetPriority(PriMin)
	if got, want := string(trace), "aaaabbbbaaaabbbb"; got != want {
		t.Errorf("schedule trace = %q, want %q", got, want)
	}
	sys.SetPriority(PriDefault)
}

func TestTickCountersAttributeTime(t *testing.T) {
	sys, _ := boot(t)

	kernelBefore := sys.kernelTicks
	for i := 0; i < 3; i++ {
		sys.Pause()
	}
	if got := sys.kernelTicks - kernelBefore; got != 3 {
		t.Errorf("kernel ticks advanced by %d, want 3", got)
	}

	idleBefore := sys.idleTicks
	sys.Sleep(7)
	if got := sys.idleTicks - idleBefore; got != 7 {
		t.Errorf("idle ticks advanced by %d, want 7", got)
	}
}
