// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"golang.org/x/tools/txtar"
)

// TestDemos replays every demo on the synthetic clock and compares
// the console transcript against the golden copy. The transcripts are
// deterministic: the clock only advances at interrupt windows and
// every alarm deadline is distinct.
func TestDemos(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/demos.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(ar.Files) == 0 {
		t.Fatal("no golden transcripts")
	}
	for _, f := range ar.Files {
		f := f
		t.Run(f.Name, func(t *testing.T) {
			sys, buf := boot(t)
			if err := sys.RunDemo(f.Name); err != nil {
				t.Fatal(err)
			}
			if got, want := buf.String(), string(f.Data); got != want {
				t.Errorf("transcript mismatch:\ngot:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}

func TestDemosCoverGoldenFile(t *testing.T) {
	ar, err := txtar.ParseFile("testdata/demos.txt")
	if err != nil {
		t.Fatal(err)
	}
	golden := make(map[string]bool)
	for _, f := range ar.Files {
		golden[f.Name] = true
	}
	for _, name := range Demos() {
		if !golden[name] {
			t.Errorf("demo %q has no golden transcript", name)
		}
	}
}

func TestRunDemoUnknown(t *testing.T) {
	sys, _ := boot(t)
	if err := sys.RunDemo("no-such-demo"); err == nil {
		t.Fatal("RunDemo accepted an unknown demo name")
	}
}
