// Package compiler implements spec.md §4.6: traversal of the bound tree
// into the opcode stream and constants pool of a bytecode.Program.
package compiler

import (
	"encoding/binary"
	"fmt"

	"dpl/internal/bound"
	"dpl/internal/bytecode"
	"dpl/internal/symbols"
)

// pendingCall is a CALL_USER site whose 8-byte begin_ip operand cannot
// be filled in until every used function has been emitted (a forward or
// self-recursive call references a function not yet emitted).
type pendingCall struct {
	offset  int
	fnIndex int
}

type compiler struct {
	chunk   *bytecode.Chunk
	consts  *bytecode.ConstantsPool
	beginIP []uint64
	pending []pendingCall
}

// Compile lowers top (the bound module scope) and used (the binder's
// ordered used-function list) into an executable Program. User
// functions are emitted first, each followed by RETURN; the program
// entry point is the code offset immediately after the last one (spec.md
// §4.6).
func Compile(top *bound.Scope, used []*symbols.Function) (prog *bytecode.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	c := &compiler{
		chunk:   bytecode.NewChunk(),
		consts:  bytecode.NewConstantsPool(),
		beginIP: make([]uint64, len(used)),
	}

	funcNames := make(map[uint64]string, len(used))
	for _, fn := range used {
		ip := uint64(c.chunk.Len())
		c.beginIP[fn.UserIndex] = ip
		funcNames[ip] = fn.Name
		body, ok := fn.Body.(bound.Node)
		if !ok {
			panic(fmt.Errorf("function %q has no bound body", fn.Name))
		}
		c.emit(body)
		c.chunk.WriteOp(bytecode.OpReturn)
	}

	entryIP := uint64(c.chunk.Len())
	c.emit(top)

	for _, p := range c.pending {
		binary.LittleEndian.PutUint64(c.chunk.Code[p.offset:p.offset+8], c.beginIP[p.fnIndex])
	}

	prog := bytecode.NewProgram(entryIP, c.consts.Bytes, c.chunk.Code)
	prog.FuncNames = funcNames
	return prog, nil
}
