// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Kernrun boots the simulated kernel and runs the named demos on its
// main thread, driving the timer from the host clock.
//
// Usage:
//
//	kernrun [-mlfqs] [-synthetic] [-trace] demo...
//	kernrun -list
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"rsc.io/pintos/kern"
)

var (
	mlfqs     = flag.Bool("mlfqs", false, "set the MLFQS mode flag (scheduling stays strict-priority)")
	synthetic = flag.Bool("synthetic", false, "run on the synthetic clock instead of host time")
	trace     = flag.Bool("trace", false, "trace scheduler events")
	list      = flag.Bool("list", false, "list demos and exit")
)

func main() {
	log.SetPrefix("kernrun: ")
	log.SetFlags(0)
	flag.Parse()

	if *list {
		for _, name := range kern.Demos() {
			fmt.Println(name)
		}
		return
	}
	if flag.NArg() == 0 {
		log.Fatalf("usage: kernrun [-mlfqs] [-synthetic] [-trace] demo...")
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)
	if *trace {
		logrus.SetLevel(logrus.TraceLevel)
	}

	sys := kern.NewSystem()
	sys.Mlfqs = *mlfqs
	sys.SyntheticClock = *synthetic

	fixup := func() {}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			log.Fatal(err)
		}
		fixup = func() { term.Restore(int(os.Stdin.Fd()), oldState) }
		defer fixup()
		sys.Console = crlfWriter{os.Stdout}

		go func() {
			buf := make([]byte, 100)
			for {
				n, err := os.Stdin.Read(buf)
				for _, c := range buf[:n] {
					if c == 'q' || c == 0x03 || c == 0x1c {
						fixup()
						os.Exit(0)
					}
				}
				if err == io.EOF {
					return
				} else if err != nil {
					log.Fatalf("reading stdin: %v", err)
				}
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	if !sys.SyntheticClock {
		g.Go(func() error {
			ticker := time.NewTicker(time.Second / kern.TimerFreq)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					sys.AdvanceClock(1)
				}
			}
		})
	}

	sys.Init()
	sys.Start()
	for _, name := range flag.Args() {
		if err := sys.RunDemo(name); err != nil {
			cancel()
			fixup()
			log.Fatal(err)
		}
	}
	sys.PrintStats()

	cancel()
	g.Wait()
}

// crlfWriter rewrites bare newlines as CR LF so console output lines
// up when the controlling terminal is in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	for i := 0; i < len(p); i++ {
		if p[i] != '\n' {
			continue
		}
		if _, err := c.w.Write(p[:i]); err != nil {
			return 0, err
		}
		if _, err := c.w.Write([]byte("\r\n")); err != nil {
			return 0, err
		}
		n, err := c.Write(p[i+1:])
		return i + 1 + n, err
	}
	return c.w.Write(p)
}
