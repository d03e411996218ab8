// Command csplay is the reference viewer: it opens a dumped event log and
// prints every captured call stack, resolving addresses against whatever
// module map state the log itself establishes as it plays back.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/tracewalk/callstack/pkg/replay"
)

func main() {
	in := flag.String("i", "callstack.log", "path to the event log to play back")
	flag.Parse()

	p, err := replay.NewPlayer(replay.Config{})
	if err != nil {
		log.Fatalf("failed to create player: %v", err)
	}
	defer p.End()

	// A real terminal gets hex-only frames an engineer can eyeball quickly;
	// redirected output (piped to a file or another tool) gets the module
	// name alongside each address, since there's no interactive scrollback
	// to cross-reference against.
	aligned := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	count := 0
	ok := p.Start(*in, func(frames []replay.CallstackFrame) {
		count++
		printCallstack(frames, aligned)
	})
	if !ok {
		log.Fatalf("failed to play back %s", *in)
	}
	log.Printf("played back %d call stack(s) from %s", count, *in)
}

func printCallstack(frames []replay.CallstackFrame, aligned bool) {
	fmt.Println("{")
	for _, f := range frames {
		switch {
		case f.Resolved.Resolved:
			fmt.Printf("    %s(%d): %s\n", f.Resolved.File, f.Resolved.Line, f.Resolved.Function)
		case aligned:
			fmt.Printf("    0x%016x\n", f.Addr)
		default:
			fmt.Printf("    0x%016x\t%s\n", f.Addr, f.Module)
		}
	}
	fmt.Println("}")
}
