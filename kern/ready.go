// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"github.com/Workiva/go-datastructures/bitarray"
	"github.com/gammazero/deque"
)

// readyQueue holds the runnable threads, one FIFO bucket per priority
// plus an occupancy bitmap so the top bucket is found without
// touching the empty ones. Ties within a bucket are broken in queue
// order. Because a donation can raise the effective priority of a
// thread that is already READY, the donation path re-buckets the
// donee with promote.
type readyQueue struct {
	buckets [PriMax + 1]deque.Deque[*Thread]
	filled  bitarray.BitArray
	size    int
}

func (q *readyQueue) init() {
	q.filled = bitarray.NewBitArray(PriMax + 1)
}

func (q *readyQueue) push(t *Thread) {
	pri := t.effective()
	t.readyPri = pri
	q.buckets[pri].PushBack(t)
	q.filled.SetBit(uint64(pri))
	q.size++
}

// popMax removes and returns the thread with the highest effective
// priority, or nil if no thread is ready.
func (q *readyQueue) popMax() *Thread {
	if q.size == 0 {
		return nil
	}
	for pri := PriMax; pri >= PriMin; pri-- {
		set, _ := q.filled.GetBit(uint64(pri))
		if !set {
			continue
		}
		t := q.buckets[pri].PopFront()
		if q.buckets[pri].Len() == 0 {
			q.filled.ClearBit(uint64(pri))
		}
		q.size--
		return t
	}
	return nil
}

// promote moves t to the bucket matching its current effective
// priority after a donation raised it. t must be on the queue.
func (q *readyQueue) promote(t *Thread) bool {
	if t.effective() == t.readyPri {
		return true
	}
	d := &q.buckets[t.readyPri]
	for i := 0; i < d.Len(); i++ {
		if d.At(i) != t {
			continue
		}
		d.Rotate(i)
		d.PopFront()
		if d.Len() > 1 {
			d.Rotate(-i)
		}
		if d.Len() == 0 {
			q.filled.ClearBit(uint64(t.readyPri))
		}
		q.size--
		q.push(t)
		return true
	}
	return false
}
