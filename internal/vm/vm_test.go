package vm

import (
	"bytes"
	"testing"

	"dpl/internal/bytecode"
)

func runProgram(t *testing.T, build func(*bytecode.ConstantsPool, *bytecode.Chunk)) (*VM, []byte) {
	t.Helper()
	pool := bytecode.NewConstantsPool()
	code := bytecode.NewChunk()
	build(pool, code)
	prog := bytecode.NewProgram(0, pool.Bytes, code.Code)
	machine := New(prog)
	var out bytes.Buffer
	machine.Stdout = &out
	if err := machine.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return machine, out.Bytes()
}

func TestArithmeticEvaluatesLeftToRight(t *testing.T) {
	machine, _ := runProgram(t, func(pool *bytecode.ConstantsPool, code *bytecode.Chunk) {
		a := pool.AddNumber(1)
		b := pool.AddNumber(2)
		code.WriteOp(bytecode.OpPushNumber)
		code.WriteU64(a)
		code.WriteOp(bytecode.OpPushNumber)
		code.WriteU64(b)
		code.WriteOp(bytecode.OpSubtract)
	})
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Number != -1 {
		t.Fatalf("got stack %#v want [-1]", stack)
	}
}

func TestStringConcatenationReleasesOperands(t *testing.T) {
	machine, _ := runProgram(t, func(pool *bytecode.ConstantsPool, code *bytecode.Chunk) {
		a := pool.AddString("foo")
		b := pool.AddString("bar")
		code.WriteOp(bytecode.OpPushString)
		code.WriteU64(a)
		code.WriteOp(bytecode.OpPushString)
		code.WriteU64(b)
		code.WriteOp(bytecode.OpAdd)
	})
	stack := machine.Stack()
	if len(stack) != 1 || string(stack[0].Cell.Bytes) != "foobar" {
		t.Fatalf("got %#v want foobar", stack)
	}
}

func TestJumpIfFalseSkipsThenBranch(t *testing.T) {
	_, out := runProgram(t, func(pool *bytecode.ConstantsPool, code *bytecode.Chunk) {
		code.WriteOp(bytecode.OpPushBoolean)
		code.WriteByte(0) // false
		code.WriteOp(bytecode.OpJumpIfFalse)
		jmp := code.WriteU16Placeholder()
		// "then" branch, skipped when the condition is false.
		code.WriteOp(bytecode.OpPop)
		code.WriteOp(bytecode.OpCallIntrinsic)
		code.WriteByte(byte(bytecode.IntrinsicPrintNumber))
		target := code.Len()
		if err := code.PatchU16(jmp, target); err != nil {
			t.Fatalf("PatchU16: %v", err)
		}
	})
	if out.String() != "" {
		t.Fatalf("expected the guarded branch to be skipped, got output %q", out.String())
	}
}

func TestCallUserPushesFrameAndReturns(t *testing.T) {
	machine, _ := runProgram(t, func(pool *bytecode.ConstantsPool, code *bytecode.Chunk) {
		// entry: push argument, CALL_USER the function below, then jump
		// over the function body to the end.
		one := pool.AddNumber(5)
		code.WriteOp(bytecode.OpPushNumber)
		code.WriteU64(one)

		callOp := code.WriteOp(bytecode.OpCallUser)
		code.WriteByte(1) // arity
		beginPlaceholder := code.Len()
		code.WriteU64(0) // patched below
		_ = callOp
		code.WriteOp(bytecode.OpJump)
		skipBody := code.WriteU16Placeholder()

		// function body: PUSH_LOCAL 0, RETURN -- begins right after the entry's jump.
		beginIP := uint64(code.Len())
		code.WriteOp(bytecode.OpPushLocal)
		code.WriteU64(0)
		code.WriteOp(bytecode.OpReturn)
		if err := code.PatchU16(skipBody, code.Len()); err != nil {
			t.Fatalf("PatchU16: %v", err)
		}

		// Patch the begin_ip operand written above.
		buf := code.Code[beginPlaceholder : beginPlaceholder+8]
		for i := 0; i < 8; i++ {
			buf[i] = byte(beginIP >> (8 * i))
		}
	})
	stack := machine.Stack()
	if len(stack) != 1 || stack[0].Number != 5 {
		t.Fatalf("got stack %#v want [5]", stack)
	}
}

func TestOperandStackUnderflowFaults(t *testing.T) {
	pool := bytecode.NewConstantsPool()
	code := bytecode.NewChunk()
	code.WriteOp(bytecode.OpAdd)
	prog := bytecode.NewProgram(0, pool.Bytes, code.Code)
	machine := New(prog)
	err := machine.Run()
	if err == nil {
		t.Fatal("expected a RuntimeError for popping an empty stack")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
}
