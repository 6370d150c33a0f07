package compiler

import (
	"fmt"

	"dpl/internal/bound"
	"dpl/internal/bytecode"
	"dpl/internal/symbols"
)

// emit lowers one bound node, leaving exactly one Value on the operand
// stack when it returns.
//
// JUMP_IF_FALSE/JUMP_IF_TRUE never touch the stack themselves here —
// they are pure conditional branches. Conditional and While emit their
// own explicit POP of the condition on both the taken and the
// fallthrough path. Logical pops only on the fallthrough path: a taken
// jump keeps the left operand on the stack as the result. This is the
// only reading that makes spec.md §4.6's Conditional recipe (two
// explicit POPs) and its Logical/While recipes agree on stack height
// across both branches.
func (c *compiler) emit(n bound.Node) {
	switch v := n.(type) {
	case *bound.Value:
		c.emitValue(v)
	case *bound.Object:
		for _, f := range v.Fields {
			c.emit(f.Expr)
		}
		c.chunk.WriteOp(bytecode.OpCreateObject)
		c.chunk.WriteByte(byte(len(v.Fields)))
	case *bound.FunctionCall:
		c.emitCall(v)
	case *bound.Scope:
		c.emitScope(v)
	case *bound.VarRef:
		c.chunk.WriteOp(bytecode.OpPushLocal)
		c.chunk.WriteU64(uint64(v.Index))
	case *bound.ArgRef:
		c.chunk.WriteOp(bytecode.OpPushLocal)
		c.chunk.WriteU64(uint64(v.Index))
	case *bound.Assignment:
		c.emit(v.Expr)
		c.chunk.WriteOp(bytecode.OpStoreLocal)
		c.chunk.WriteU64(uint64(v.Index))
	case *bound.Conditional:
		c.emitConditional(v)
	case *bound.LogicalOperator:
		c.emitLogical(v)
	case *bound.WhileLoop:
		c.emitWhile(v)
	case *bound.LoadField:
		c.emit(v.Obj)
		c.chunk.WriteOp(bytecode.OpLoadField)
		c.chunk.WriteByte(byte(v.Index))
	case *bound.Interpolation:
		for _, part := range v.Parts {
			c.emit(part)
		}
		c.chunk.WriteOp(bytecode.OpInterpolation)
		c.chunk.WriteByte(byte(len(v.Parts)))
	case *bound.Array:
		c.emitArray(v)
	default:
		panic(fmt.Errorf("compiler: unhandled bound node %T", n))
	}
}

func (c *compiler) emitValue(v *bound.Value) {
	switch symbols.ResolveAlias(v.Type()).Base {
	case symbols.BaseString:
		off := c.consts.AddString(v.String)
		c.chunk.WriteOp(bytecode.OpPushString)
		c.chunk.WriteU64(off)
	case symbols.BaseBoolean:
		c.chunk.WriteOp(bytecode.OpPushBoolean)
		if v.Bool {
			c.chunk.WriteByte(1)
		} else {
			c.chunk.WriteByte(0)
		}
	default:
		off := c.consts.AddNumber(v.Number)
		c.chunk.WriteOp(bytecode.OpPushNumber)
		c.chunk.WriteU64(off)
	}
}

func (c *compiler) emitCall(v *bound.FunctionCall) {
	for _, a := range v.Args {
		c.emit(a)
	}
	switch v.Func.Kind {
	case symbols.FuncInstruction:
		c.chunk.WriteOp(v.Func.Opcode)
	case symbols.FuncIntrinsic:
		c.chunk.WriteOp(bytecode.OpCallIntrinsic)
		c.chunk.WriteByte(byte(v.Func.IntrinsicKind))
	case symbols.FuncUser:
		c.chunk.WriteOp(bytecode.OpCallUser)
		c.chunk.WriteByte(byte(len(v.Func.ArgTypes)))
		placeholder := c.chunk.Len()
		c.chunk.WriteU64(0)
		c.pending = append(c.pending, pendingCall{offset: placeholder, fnIndex: v.Func.UserIndex})
	}
}

// emitScope emits each member in order, discarding non-persistent
// intermediate results with POP and collapsing the scope's own
// persistent locals with POP_SCOPE once the last expression's value is
// on top (spec.md §4.6). A scope containing only declarations binds to
// zero expressions; PUSH_BOOLEAN false stands in for the otherwise
// unrepresentable None result so the stack stays balanced.
func (c *compiler) emitScope(v *bound.Scope) {
	if len(v.Exprs) == 0 {
		c.chunk.WriteOp(bytecode.OpPushBoolean)
		c.chunk.WriteByte(0)
		return
	}
	for i, e := range v.Exprs {
		c.emit(e)
		if i < len(v.Exprs)-1 && !e.Persistent() {
			c.chunk.WriteOp(bytecode.OpPop)
		}
	}
	if v.Locals > 0 {
		c.chunk.WriteOp(bytecode.OpPopScope)
		c.chunk.WriteU64(uint64(v.Locals))
	}
}

func (c *compiler) emitConditional(v *bound.Conditional) {
	c.emit(v.Cond)
	c.chunk.WriteOp(bytecode.OpJumpIfFalse)
	falsePH := c.chunk.WriteU16Placeholder()
	c.chunk.WriteOp(bytecode.OpPop)
	c.emit(v.Then)
	c.chunk.WriteOp(bytecode.OpJump)
	endPH := c.chunk.WriteU16Placeholder()
	mustPatch(c.chunk.PatchU16(falsePH, c.chunk.Len()))
	c.chunk.WriteOp(bytecode.OpPop)
	c.emit(v.Else)
	mustPatch(c.chunk.PatchU16(endPH, c.chunk.Len()))
}

func (c *compiler) emitLogical(v *bound.LogicalOperator) {
	c.emit(v.Left)
	op := bytecode.OpJumpIfFalse
	if v.Op == "||" {
		op = bytecode.OpJumpIfTrue
	}
	c.chunk.WriteOp(op)
	endPH := c.chunk.WriteU16Placeholder()
	c.chunk.WriteOp(bytecode.OpPop)
	c.emit(v.Right)
	mustPatch(c.chunk.PatchU16(endPH, c.chunk.Len()))
}

func (c *compiler) emitWhile(v *bound.WhileLoop) {
	loopStart := c.chunk.Len()
	c.emit(v.Cond)
	c.chunk.WriteOp(bytecode.OpJumpIfFalse)
	exitPH := c.chunk.WriteU16Placeholder()
	c.chunk.WriteOp(bytecode.OpPop)
	c.emit(v.Body)
	c.chunk.WriteOp(bytecode.OpPop)
	c.chunk.WriteOp(bytecode.OpJumpLoop)
	if err := c.chunk.WriteU16Back(loopStart); err != nil {
		panic(err)
	}
	mustPatch(c.chunk.PatchU16(exitPH, c.chunk.Len()))
	c.chunk.WriteOp(bytecode.OpPop)
	// The loop's None result: PUSH_BOOLEAN false, as in emitScope.
	c.chunk.WriteOp(bytecode.OpPushBoolean)
	c.chunk.WriteByte(0)
}

func (c *compiler) emitArray(v *bound.Array) {
	c.chunk.WriteOp(bytecode.OpBeginArray)
	for i, e := range v.Elements {
		c.emit(e)
		if v.Spread[i] {
			c.chunk.WriteOp(bytecode.OpSpread)
		} else {
			c.chunk.WriteOp(bytecode.OpConcatArray)
		}
	}
	c.chunk.WriteOp(bytecode.OpEndArray)
}

func mustPatch(err error) {
	if err != nil {
		panic(err)
	}
}
