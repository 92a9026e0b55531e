// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from pintos/src/threads/palloc.c.
//
// Copyright 2004-2006 Board of Trustees, Leland Stanford Jr. University.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// pageArena is the kernel pool of thread pages. On the real machine a
// thread record lives at the base of the same page as its kernel
// stack; here the page is the record itself and the thread's parked
// goroutine stands in for the stack. The pool is fixed-size, so
// Create fails cleanly when the kernel is out of pages.
type pageArena struct {
	pages []Thread
	free  []*Thread
}

func newPageArena(n int) *pageArena {
	a := &pageArena{pages: make([]Thread, n)}
	for i := n - 1; i >= 0; i-- {
		a.free = append(a.free, &a.pages[i])
	}
	return a
}

// alloc returns a zeroed thread page, or nil if the pool is exhausted.
func (a *pageArena) alloc() *Thread {
	if len(a.free) == 0 {
		return nil
	}
	t := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	*t = Thread{}
	return t
}

// freePage returns t's page to the pool. Zeroing clears the magic
// sentinel, so stale pointers to the page fail isThread.
func (a *pageArena) freePage(t *Thread) {
	*t = Thread{}
	a.free = append(a.free, t)
}
