package vm

import (
	"encoding/binary"
	"fmt"
	"io"

	"dpl/internal/bytecode"
	"dpl/internal/diagnostics"
)

// Tracer receives one callback per executed instruction when tracing is
// enabled (SPEC_FULL §10: internal/trace.Broadcaster implements this so
// the VM's hot path stays decoupled from the websocket transport).
type Tracer interface {
	Emit(ip int, op bytecode.OpCode, stackDepth int)
}

// frame is one CALL_USER activation record.
type frame struct {
	base     int    // stack index of argument 0
	returnIP int    // ip to resume at after RETURN
	beginIP  uint64 // this function's entry point, for call-stack rendering
}

// RuntimeError wraps a *diagnostics.Diagnostic (Kind Runtime) carrying
// the faulting instruction pointer and, per SPEC_FULL §11's "Diagnostic
// call stacks" supplement, a Frame per still-open CALL_USER activation
// at the point of failure. Source lines aren't tracked per instruction,
// so Frame.Line is left 0 and only the function name is meaningful.
type RuntimeError struct {
	*diagnostics.Diagnostic
}

func (vm *VM) fault(ip int, format string, args ...interface{}) *RuntimeError {
	stack := make([]diagnostics.Frame, len(vm.frames))
	for i, f := range vm.frames {
		name := vm.program.FuncNames[f.beginIP]
		if name == "" {
			name = "<anonymous>"
		}
		stack[len(vm.frames)-1-i] = diagnostics.Frame{Function: name}
	}
	msg := fmt.Sprintf(format, args...)
	d := diagnostics.New(diagnostics.Runtime, diagnostics.Location{}, "ip=%d: %s", ip, msg).WithStack(stack)
	return &RuntimeError{Diagnostic: d}
}

// MaxStack bounds the operand stack; exceeding it is a RuntimeError
// rather than an unbounded Go-side allocation (spec.md §5, "Stack
// overflow/underflow").
const MaxStack = 1 << 16

// VM is a stack machine executing one bytecode.Program against a
// reference-counted value pool (spec.md §4.8).
type VM struct {
	program *bytecode.Program
	pool    *Pool
	stack   []Value
	frames  []frame
	ip      int

	Stdout io.Writer
	Trace  Tracer
}

func New(program *bytecode.Program) *VM {
	return &VM{program: program, pool: NewPool(), stack: make([]Value, 0, 256), Stdout: io.Discard}
}

func (vm *VM) push(v Value) {
	if len(vm.stack) >= MaxStack {
		panic(vm.fault(vm.ip, "operand stack overflow"))
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		panic(vm.fault(vm.ip, "operand stack underflow"))
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) top() Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) frameBase() int {
	if len(vm.frames) == 0 {
		return 0
	}
	return vm.frames[len(vm.frames)-1].base
}

func (vm *VM) readByte() byte {
	b := vm.program.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readU16() uint16 {
	v := binary.LittleEndian.Uint16(vm.program.Code[vm.ip : vm.ip+2])
	vm.ip += 2
	return v
}

func (vm *VM) readU64() uint64 {
	v := binary.LittleEndian.Uint64(vm.program.Code[vm.ip : vm.ip+8])
	vm.ip += 8
	return v
}

// Run executes the program from its entry point to the end of the code
// buffer, fetch-decode-executing one instruction at a time (spec.md
// §4.8). A RuntimeError is returned (never left as an uncaught panic)
// for any fault; compile-time guarantees rule out type mismatches, so
// this loop trusts operand Kinds without re-checking them.
func (vm *VM) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()

	vm.ip = int(vm.program.EntryIP)
	code := vm.program.Code
	for vm.ip < len(code) {
		instrIP := vm.ip
		op := bytecode.OpCode(vm.readByte())
		vm.exec(op)
		if vm.Trace != nil {
			vm.Trace.Emit(instrIP, op, len(vm.stack))
		}
	}
	return nil
}

// Stack exposes the final operand stack for `-d` dumps.
func (vm *VM) Stack() []Value { return vm.stack }

func (vm *VM) exec(op bytecode.OpCode) {
	switch op {
	case bytecode.OpNoop:

	case bytecode.OpPushNumber:
		off := vm.readU64()
		vm.push(NumberValue(bytecode.ReadNumber(vm.program.Constants, off)))

	case bytecode.OpPushString:
		off := vm.readU64()
		vm.push(vm.pool.NewString(bytecode.ReadString(vm.program.Constants, off)))

	case bytecode.OpPushBoolean:
		vm.push(BooleanValue(vm.readByte() != 0))

	case bytecode.OpPop:
		vm.pool.Release(vm.pop())

	case bytecode.OpNegate:
		v := vm.pop()
		vm.push(NumberValue(-v.Number))

	case bytecode.OpNot:
		v := vm.pop()
		vm.push(BooleanValue(!v.Bool))

	case bytecode.OpAdd:
		b, a := vm.pop(), vm.pop()
		if a.Kind == KindString {
			s := string(a.Cell.Bytes) + string(b.Cell.Bytes)
			vm.pool.Release(a)
			vm.pool.Release(b)
			vm.push(vm.pool.NewString(s))
		} else {
			vm.push(NumberValue(a.Number + b.Number))
		}

	case bytecode.OpSubtract:
		b, a := vm.pop(), vm.pop()
		vm.push(NumberValue(a.Number - b.Number))

	case bytecode.OpMultiply:
		b, a := vm.pop(), vm.pop()
		vm.push(NumberValue(a.Number * b.Number))

	case bytecode.OpDivide:
		b, a := vm.pop(), vm.pop()
		vm.push(NumberValue(a.Number / b.Number))

	case bytecode.OpLess:
		b, a := vm.pop(), vm.pop()
		vm.push(BooleanValue(a.Number < b.Number))

	case bytecode.OpLessEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(BooleanValue(a.Number <= b.Number))

	case bytecode.OpGreater:
		b, a := vm.pop(), vm.pop()
		vm.push(BooleanValue(a.Number > b.Number))

	case bytecode.OpGreaterEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(BooleanValue(a.Number >= b.Number))

	case bytecode.OpEqual:
		vm.push(BooleanValue(vm.valuesEqual()))

	case bytecode.OpNotEqual:
		vm.push(BooleanValue(!vm.valuesEqual()))

	case bytecode.OpCallIntrinsic:
		kind := bytecode.Intrinsic(vm.readByte())
		if err := vm.runIntrinsic(kind, vm.Stdout); err != nil {
			panic(vm.fault(vm.ip, "%v", err))
		}

	case bytecode.OpCallUser:
		arity := int(vm.readByte())
		beginIP := vm.readU64()
		vm.frames = append(vm.frames, frame{base: len(vm.stack) - arity, returnIP: vm.ip, beginIP: beginIP})
		vm.ip = int(beginIP)

	case bytecode.OpPushLocal:
		idx := int(vm.readU64())
		v := vm.stack[vm.frameBase()+idx]
		vm.pool.Acquire(v)
		vm.push(v)

	case bytecode.OpStoreLocal:
		idx := int(vm.readU64())
		v := vm.top()
		slot := vm.frameBase() + idx
		vm.pool.Release(vm.stack[slot])
		vm.pool.Acquire(v)
		vm.stack[slot] = v

	case bytecode.OpPopScope:
		n := int(vm.readU64())
		top := vm.pop()
		for i := 0; i < n; i++ {
			vm.pool.Release(vm.pop())
		}
		vm.push(top)

	case bytecode.OpReturn:
		ret := vm.pop()
		f := vm.frames[len(vm.frames)-1]
		for len(vm.stack) > f.base {
			vm.pool.Release(vm.pop())
		}
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.push(ret)
		vm.ip = f.returnIP

	case bytecode.OpJump:
		off := vm.readU16()
		vm.ip += int(off)

	case bytecode.OpJumpIfFalse:
		off := vm.readU16()
		if !vm.top().Bool {
			vm.ip += int(off)
		}

	case bytecode.OpJumpIfTrue:
		off := vm.readU16()
		if vm.top().Bool {
			vm.ip += int(off)
		}

	case bytecode.OpJumpLoop:
		off := vm.readU16()
		vm.ip -= int(off)

	case bytecode.OpCreateObject:
		n := int(vm.readByte())
		fields := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			fields[i] = vm.pop()
		}
		vm.push(vm.pool.NewObject(fields))

	case bytecode.OpLoadField:
		idx := int(vm.readByte())
		obj := vm.pop()
		v := obj.Cell.Fields[idx]
		vm.pool.Acquire(v)
		vm.pool.Release(obj)
		vm.push(v)

	case bytecode.OpInterpolation:
		n := int(vm.readByte())
		parts := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			parts[i] = vm.pop()
		}
		size := 0
		for _, p := range parts {
			size += len(p.Cell.Bytes)
		}
		buf := make([]byte, 0, size)
		for _, p := range parts {
			buf = append(buf, p.Cell.Bytes...)
			vm.pool.Release(p)
		}
		vm.push(vm.pool.NewString(string(buf)))

	case bytecode.OpBeginArray:
		vm.push(vm.pool.NewArrayOpenSlot())

	case bytecode.OpEndArray:
		top := vm.pop()
		top.Cell.Open = false
		vm.push(top)

	case bytecode.OpConcatArray:
		elem := vm.pop()
		arr := vm.top()
		arr.Cell.Elems = append(arr.Cell.Elems, elem)

	case bytecode.OpSpread:
		src := vm.pop()
		arr := vm.top()
		for _, e := range src.Cell.Elems {
			vm.pool.Acquire(e)
			arr.Cell.Elems = append(arr.Cell.Elems, e)
		}
		vm.pool.Release(src)

	default:
		panic(vm.fault(vm.ip, "unknown opcode %d", op))
	}
}

// valuesEqual implements EQUAL/NOT_EQUAL's three registered overloads
// (Number with epsilon, String by bytes, Boolean), consuming both
// operands per the refcount convention.
func (vm *VM) valuesEqual() bool {
	b, a := vm.pop(), vm.pop()
	defer vm.pool.Release(a)
	defer vm.pool.Release(b)
	switch a.Kind {
	case KindString:
		return string(a.Cell.Bytes) == string(b.Cell.Bytes)
	case KindBoolean:
		return a.Bool == b.Bool
	default:
		return numbersEqual(a.Number, b.Number)
	}
}
