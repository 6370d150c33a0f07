// cmd/dplvm/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"dpl/internal/bytecode"
	"dpl/internal/diagnostics"
	"dpl/internal/trace"
	"dpl/internal/vm"
)

const usage = `Usage: dplvm OUT.dplc [-d] [-t] [--trace-addr HOST:PORT]

  -d               dump the operand stack after execution finishes
  -t               print a per-instruction trace to stderr
  --trace-addr A   also broadcast every trace event as JSON over a
                   websocket at A (default: $DPL_TRACE_ADDR); implies -t
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var path string
	dumpStack := false
	traceOn := false
	traceAddr := os.Getenv("DPL_TRACE_ADDR")

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-d":
			dumpStack = true
		case "-t":
			traceOn = true
		case "--trace-addr":
			i++
			if i >= len(args) {
				log.Fatal("dplvm: --trace-addr requires an argument")
			}
			traceAddr = args[i]
			traceOn = true
		case "-h", "--help":
			fmt.Fprint(os.Stdout, usage)
			return
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	path = positional[0]

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("dplvm: %v", err)
	}
	prog, warnings, err := bytecode.Read(f)
	f.Close()
	if err != nil {
		log.Fatalf("dplvm: reading %s: %v", path, err)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "dplvm: %s\n", w)
	}

	machine := vm.New(prog)
	machine.Stdout = os.Stdout

	var broadcaster *trace.Broadcaster
	if traceAddr != "" {
		broadcaster = trace.NewBroadcaster(traceAddr)
		defer broadcaster.Close()
	}
	if traceOn {
		machine.Trace = &stderrTracer{broadcaster: broadcaster}
	}

	if err := machine.Run(); err != nil {
		if re, ok := err.(*vm.RuntimeError); ok {
			fmt.Fprint(os.Stderr, re.Render(diagnostics.StderrIsTerminal(os.Stderr.Fd())))
		} else {
			fmt.Fprintf(os.Stderr, "dplvm: %v\n", err)
		}
		os.Exit(1)
	}

	if dumpStack {
		stack := machine.Stack()
		fmt.Fprintf(os.Stderr, "dplvm: final operand stack (%d values)\n", len(stack))
		for i, v := range stack {
			fmt.Fprintf(os.Stderr, "  [%d] %s\n", i, vm.FormatValue(v))
		}
	}
}

// stderrTracer prints every instruction to stderr and, when a websocket
// broadcaster is attached, also forwards the event to it (SPEC_FULL
// §10: `-t` is local, `--trace-addr` additionally broadcasts).
type stderrTracer struct {
	broadcaster *trace.Broadcaster
}

func (t *stderrTracer) Emit(ip int, op bytecode.OpCode, stackDepth int) {
	fmt.Fprintf(os.Stderr, "%06d  %-16s stack=%d\n", ip, op, stackDepth)
	t.broadcaster.Emit(ip, op, stackDepth)
}
