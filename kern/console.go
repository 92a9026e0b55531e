// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "fmt"

// Printf writes formatted output to the system console. Interrupts
// are masked for the duration of the write so lines from different
// threads never interleave.
func (sys *System) Printf(format string, args ...any) {
	old := sys.IntrDisable()
	fmt.Fprintf(sys.Console, format, args...)
	sys.IntrSetLevel(old)
}
