package binder

import (
	"dpl/internal/bytecode"
	"dpl/internal/symbols"
)

// registerInstructionFunctions installs the arithmetic/comparison/unary
// overloads that lower straight to a dedicated opcode rather than
// CALL_INTRINSIC (spec.md §4.2, "push-function-instruction").
func registerInstructionFunctions(stack *symbols.Stack) {
	t := stack.Types()
	num := t.Base(symbols.BaseNumber)
	str := t.Base(symbols.BaseString)
	boolean := t.Base(symbols.BaseBoolean)

	instr := func(name string, op bytecode.OpCode, ret *symbols.Type, args ...*symbols.Type) {
		stack.PushFunction(&symbols.Function{
			Name: name, ArgTypes: args, ReturnType: ret,
			Kind: symbols.FuncInstruction, Opcode: op,
		})
	}

	instr("negate", bytecode.OpNegate, num, num)
	instr("not", bytecode.OpNot, boolean, boolean)

	instr("add", bytecode.OpAdd, num, num, num)
	instr("add", bytecode.OpAdd, str, str, str)
	instr("subtract", bytecode.OpSubtract, num, num, num)
	instr("multiply", bytecode.OpMultiply, num, num, num)
	instr("divide", bytecode.OpDivide, num, num, num)

	instr("less", bytecode.OpLess, boolean, num, num)
	instr("lessEqual", bytecode.OpLessEqual, boolean, num, num)
	instr("greater", bytecode.OpGreater, boolean, num, num)
	instr("greaterEqual", bytecode.OpGreaterEqual, boolean, num, num)

	for _, operand := range []*symbols.Type{num, str, boolean} {
		instr("equal", bytecode.OpEqual, boolean, operand, operand)
		instr("notEqual", bytecode.OpNotEqual, boolean, operand, operand)
	}
}

// registerIntrinsicFunctions installs the host-implemented builtins
// dispatched through CALL_INTRINSIC (spec.md §4.8).
func registerIntrinsicFunctions(stack *symbols.Stack) *symbols.Type {
	t := stack.Types()
	num := t.Base(symbols.BaseNumber)
	str := t.Base(symbols.BaseString)
	boolean := t.Base(symbols.BaseBoolean)
	none := t.Base(symbols.BaseNone)
	rng := t.RangeOfNumber()

	iterFields := []symbols.Field{
		{Name: "current", Type: num},
		{Name: "finished", Type: boolean},
		{Name: "to", Type: num},
	}
	iterType, err := t.Object(iterFields)
	if err != nil {
		panic(err)
	}

	intrin := func(name string, kind bytecode.Intrinsic, ret *symbols.Type, args ...*symbols.Type) {
		stack.PushFunction(&symbols.Function{
			Name: name, ArgTypes: args, ReturnType: ret,
			Kind: symbols.FuncIntrinsic, IntrinsicKind: kind,
		})
	}

	intrin("toString", bytecode.IntrinsicToStringNumber, str, num)
	intrin("toString", bytecode.IntrinsicToStringBoolean, str, boolean)
	intrin("toString", bytecode.IntrinsicToStringString, str, str)
	intrin("length", bytecode.IntrinsicLength, num, str)
	intrin("print", bytecode.IntrinsicPrintNumber, none, num)
	intrin("print", bytecode.IntrinsicPrintString, none, str)
	intrin("print", bytecode.IntrinsicPrintBoolean, none, boolean)
	intrin("iterator", bytecode.IntrinsicIterator, iterType, rng)
	intrin("next", bytecode.IntrinsicNext, iterType, iterType)

	return iterType
}
