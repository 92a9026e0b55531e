// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// kassert panics if a kernel invariant does not hold. The panic
// carries a dump of the thread table so the scheduler state at the
// moment of failure is visible in the test log.
func (sys *System) kassert(ok bool, msg string) {
	if !ok {
		sys.kpanic(msg)
	}
}

func (sys *System) kpanic(msg string) {
	sys.log.Error(msg)
	panic(fmt.Sprintf("kernel panic: %s\n%s", msg, sys.dumpThreads()))
}

// dumpThreads formats the thread table for panic messages. It reads
// scheduler state without locking; a panicking kernel has nothing
// left to race with.
func (sys *System) dumpThreads() string {
	type row struct {
		Tid      Tid
		Name     string
		Status   Status
		Base     int
		Donated  int
		WakeTime int64
	}
	rows := make([]row, 0, len(sys.all))
	for _, t := range sys.all {
		rows = append(rows, row{
			Tid:      t.tid,
			Name:     t.name,
			Status:   t.status,
			Base:     t.basePri,
			Donated:  t.donatedPri,
			WakeTime: t.wakeTime,
		})
	}
	return spew.Sdump(rows)
}
