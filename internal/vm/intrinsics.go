package vm

import (
	"fmt"
	"io"

	"dpl/internal/bytecode"
)

// runIntrinsic dispatches one CALL_INTRINSIC kind (spec.md §4.8). Each
// case pops its own arguments off vm.stack and pushes exactly one result,
// matching the arity registered for that overload in
// internal/binder/builtins.go.
func (vm *VM) runIntrinsic(kind bytecode.Intrinsic, out io.Writer) error {
	switch kind {
	case bytecode.IntrinsicToStringNumber:
		v := vm.pop()
		vm.push(vm.pool.NewString(formatNumber(v.Number)))

	case bytecode.IntrinsicToStringBoolean:
		v := vm.pop()
		vm.push(vm.pool.NewString(formatBoolean(v.Bool)))

	case bytecode.IntrinsicToStringString:
		// Identity: popping and re-pushing the same cell is refcount-neutral.
		v := vm.pop()
		vm.push(v)

	case bytecode.IntrinsicLength:
		v := vm.pop()
		n := float64(len(v.Cell.Bytes))
		vm.pool.Release(v)
		vm.push(NumberValue(n))

	case bytecode.IntrinsicPrintNumber:
		v := vm.pop()
		fmt.Fprintln(out, formatNumber(v.Number))
		vm.push(noneValue())

	case bytecode.IntrinsicPrintString:
		v := vm.pop()
		fmt.Fprintln(out, string(v.Cell.Bytes))
		vm.pool.Release(v)
		vm.push(noneValue())

	case bytecode.IntrinsicPrintBoolean:
		v := vm.pop()
		fmt.Fprintln(out, formatBoolean(v.Bool))
		vm.push(noneValue())

	case bytecode.IntrinsicIterator:
		v := vm.pop()
		from := v.Cell.Fields[0].Number
		to := v.Cell.Fields[1].Number
		vm.pool.Release(v)
		vm.push(vm.pool.NewObject([]Value{
			NumberValue(from),
			BooleanValue(from > to),
			NumberValue(to),
		}))

	case bytecode.IntrinsicNext:
		v := vm.pop()
		cur := v.Cell.Fields[0].Number + 1
		to := v.Cell.Fields[2].Number
		vm.pool.Release(v)
		vm.push(vm.pool.NewObject([]Value{
			NumberValue(cur),
			BooleanValue(cur > to),
			NumberValue(to),
		}))

	default:
		return fmt.Errorf("vm: unknown intrinsic kind %d", kind)
	}
	return nil
}
