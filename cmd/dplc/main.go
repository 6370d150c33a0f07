// cmd/dplc/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"dpl/internal/binder"
	"dpl/internal/bytecode"
	"dpl/internal/compiler"
	"dpl/internal/diagnostics"
	"dpl/internal/parser"
	"dpl/internal/store"
	"dpl/internal/symbols"
)

const usage = `Usage: dplc SOURCE.dpl [-o OUT.dplc] [-d] [--cache DIR]

  -o OUT.dplc   write the compiled program here (default: SOURCE with .dplc extension)
  -d            dump the used-function list and opcode/constant sizes after compiling
  --cache DIR   also write the compiled program into a content-addressed
                cache at DIR (default: $DPL_CACHE_DIR); with -d, also list
                the cache's contents
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var out, cacheDir string
	dump := false
	cacheDir = os.Getenv("DPL_CACHE_DIR")

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			i++
			if i >= len(args) {
				log.Fatal("dplc: -o requires an argument")
			}
			out = args[i]
		case "-d":
			dump = true
		case "--cache":
			i++
			if i >= len(args) {
				log.Fatal("dplc: --cache requires an argument")
			}
			cacheDir = args[i]
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
	source := positional[0]

	if out == "" {
		ext := filepath.Ext(source)
		out = strings.TrimSuffix(source, ext) + ".dplc"
	}

	src, err := os.ReadFile(source)
	if err != nil {
		log.Fatalf("dplc: %v", err)
	}

	prog, used, err := compile(source, string(src))
	if err != nil {
		reportDiagnostic(err)
		os.Exit(1)
	}

	progBytes, err := bytecode.Bytes(prog)
	if err != nil {
		log.Fatalf("dplc: serializing program: %v", err)
	}
	if err := os.WriteFile(out, progBytes, 0644); err != nil {
		log.Fatalf("dplc: writing %s: %v", out, err)
	}

	if dump {
		fmt.Printf("dplc: compiled %s -> %s\n", source, out)
		fmt.Printf("  build id: %s   content hash: %x\n", uuid.UUID(prog.BuildID), prog.ContentHash[:8])
		fmt.Printf("  user functions emitted: %d\n", len(used))
		for _, fn := range used {
			fmt.Printf("    #%d %s(%d args) -> %s\n", fn.UserIndex, fn.Name, len(fn.ArgTypes), fn.ReturnType)
		}
		fmt.Printf("  code: %s   constants: %s   entry ip: %d\n",
			humanize.Bytes(uint64(len(prog.Code))), humanize.Bytes(uint64(len(prog.Constants))), prog.EntryIP)
	}

	if cacheDir != "" {
		runCache(cacheDir, prog, dump)
	}
}

// compile runs the lexer (implicitly, through parser.Parse)/parser/
// binder/code generator pipeline and stamps the program's identity
// metadata (SPEC_FULL §3).
func compile(file, src string) (*bytecode.Program, []*symbols.Function, error) {
	ast, err := parser.Parse(file, src)
	if err != nil {
		return nil, nil, err
	}
	b := binder.New(file)
	top, used, err := b.Bind(ast)
	if err != nil {
		return nil, nil, err
	}
	prog, err := compiler.Compile(top, used)
	if err != nil {
		return nil, nil, err
	}
	prog.BuildID = [16]byte(uuid.New())
	prog.ContentHash = bytecode.ComputeContentHash(prog)
	prog.HasMeta = true
	return prog, used, nil
}

func runCache(dir string, prog *bytecode.Program, dump bool) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("dplc: --cache %s: %v", dir, err)
	}
	st, err := store.Open(filepath.Join(dir, "programs.db"))
	if err != nil {
		log.Fatalf("dplc: %v", err)
	}
	defer st.Close()

	entry, err := st.Put(prog)
	if err != nil {
		log.Fatalf("dplc: %v", err)
	}
	if !dump {
		return
	}

	entries, err := st.List()
	if err != nil {
		log.Fatalf("dplc: listing cache: %v", err)
	}
	fmt.Printf("dplc: cache %s (this build: %x, id %s)\n", dir, entry.ContentHash[:8], entry.BuildID)
	fmt.Println("  build id                               hash      size      age")
	for _, e := range entries {
		fmt.Printf("  %-36s  %x  %-8s  %s\n", e.BuildID, e.ContentHash[:4], humanize.Bytes(uint64(e.Size)), humanize.Time(e.CreatedAt))
	}
}

func reportDiagnostic(err error) {
	if d, ok := err.(*diagnostics.Diagnostic); ok {
		fmt.Fprint(os.Stderr, d.Render(diagnostics.StderrIsTerminal(os.Stderr.Fd())))
		return
	}
	fmt.Fprintf(os.Stderr, "dplc: %v\n", err)
}
