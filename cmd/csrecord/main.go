// Command csrecord is a demo host process, standing in for an arbitrary
// instrumented host application: it captures its own call stack a few
// times and dumps the resulting event log to disk for cmd/csplay to
// replay.
package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/tracewalk/callstack/pkg/recorder"
)

// version and buildTime are overridable at link time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

func doWork(r *recorder.Recorder, depth int) {
	if depth == 0 {
		r.Capture()
		return
	}
	doWork(r, depth-1)
}

func main() {
	out := flag.String("o", "callstack.log", "path to write the captured event log to")
	flag.Parse()

	log.Printf("csrecord v%s (built: %s, %s/%s)", version, buildTime, runtime.GOOS, runtime.GOARCH)

	r := recorder.New(recorder.DefaultConfig())
	defer r.Close()

	for depth := 0; depth < 5; depth++ {
		doWork(r, depth)
	}

	if !r.Dump(*out) {
		log.Fatalf("failed to dump event log to %s", *out)
	}
	log.Printf("wrote event log to %s", *out)
}
