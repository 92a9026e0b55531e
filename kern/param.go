// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/threads/thread.h.
//
// Copyright 2004-2006 Board of Trustees, Leland Stanford Jr. University.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

/*
 * tunable variables
 */
const (
	NPAGES = 64 /* thread pages in the kernel pool */

	PriMin     = 0  /* lowest priority */
	PriDefault = 31 /* default priority */
	PriMax     = 63 /* highest priority */

	TimeSlice = 4   /* timer ticks per time slice */
	TimerFreq = 100 /* timer interrupts per second */

	threadNameMax = 15
)

// threadMagic sits at a fixed offset in every thread record.
// A mismatch means the kernel stack overflowed into the record
// (or the record was freed out from under a stale pointer).
const threadMagic = 0xcd6abf4b

// Tid identifies a thread. Tids are positive and process-wide unique.
type Tid int32

// TidError is returned by Create when no thread page is available.
const TidError Tid = -1

// Status is a thread's scheduling state. Exactly one thread is
// Running at any time while the scheduler is operational.
type Status int8

const (
	StatusRunning Status = iota /* running thread */
	StatusReady                 /* not running but ready to run */
	StatusBlocked               /* waiting for an event to trigger */
	StatusDying                 /* about to be destroyed */
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusReady:
		return "Ready"
	case StatusBlocked:
		return "Blocked"
	case StatusDying:
		return "Dying"
	}
	return "Status(?)"
}
