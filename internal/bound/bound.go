// Package bound defines the typed, lowered intermediate representation
// the binder produces and the code generator consumes (spec.md §3,
// "Bound node"). Nodes are arena-owned for the duration of one
// compilation: there is no shared mutable state between compiles.
package bound

import "dpl/internal/symbols"

// Node is the tagged union of all bound-tree node kinds. Every concrete
// node type below implements it.
type Node interface {
	Type() *symbols.Type
	// Persistent reports whether this node's result must remain on the
	// operand stack as a scope local after the scope's next expression
	// runs (spec.md glossary, "Persistent expression").
	Persistent() bool
}

type base struct {
	typ  *symbols.Type
	pers bool
}

func (b base) Type() *symbols.Type { return b.typ }
func (b base) Persistent() bool    { return b.pers }

// Value is a literal constant, including constants that were folded from
// a `constant` declaration or an arithmetic/string constant expression.
type Value struct {
	base
	Number float64
	String string
	Bool   bool
}

func NewValueNumber(t *symbols.Type, n float64) *Value { return &Value{base: base{typ: t}, Number: n} }
func NewValueString(t *symbols.Type, s string) *Value  { return &Value{base: base{typ: t}, String: s} }
func NewValueBool(t *symbols.Type, b bool) *Value      { return &Value{base: base{typ: t}, Bool: b} }

// ObjectField is one (name, expression) pair of a bound Object literal,
// already sorted by name.
type ObjectField struct {
	Name string
	Expr Node
}

type Object struct {
	base
	Fields []ObjectField
}

func NewObject(t *symbols.Type, fields []ObjectField) *Object {
	return &Object{base: base{typ: t}, Fields: fields}
}

// FunctionCall is a resolved call to a builtin (intrinsic) or user
// function.
type FunctionCall struct {
	base
	Func *symbols.Function
	Args []Node
}

func NewFunctionCall(fn *symbols.Function, args []Node) *FunctionCall {
	return &FunctionCall{base: base{typ: fn.ReturnType}, Func: fn, Args: args}
}

// Scope is a sequence of expressions; its type follows the last
// expression.
type Scope struct {
	base
	Exprs []Node
	// Locals counts how many of Exprs (besides the last) are persistent
	// and must be popped off the operand stack on scope exit.
	Locals int
}

func NewScope(exprs []Node, locals int) *Scope {
	var t *symbols.Type
	if len(exprs) > 0 {
		t = exprs[len(exprs)-1].Type()
	}
	return &Scope{base: base{typ: t}, Exprs: exprs, Locals: locals}
}

// VarRef/ArgRef reference a local slot on the current call frame.
type VarRef struct {
	base
	Index int
}

func NewVarRef(t *symbols.Type, idx int) *VarRef { return &VarRef{base: base{typ: t}, Index: idx} }

type ArgRef struct {
	base
	Index int
}

func NewArgRef(t *symbols.Type, idx int) *ArgRef { return &ArgRef{base: base{typ: t}, Index: idx} }

type Assignment struct {
	base
	Index int
	Expr  Node
}

func NewAssignment(idx int, expr Node) *Assignment {
	return &Assignment{base: base{typ: expr.Type()}, Index: idx, Expr: expr}
}

type Conditional struct {
	base
	Cond Node
	Then Node
	Else Node
}

func NewConditional(cond, then, els Node) *Conditional {
	return &Conditional{base: base{typ: then.Type()}, Cond: cond, Then: then, Else: els}
}

// LogicalOperator is `&&`/`||`, kept separate from FunctionCall because
// it short-circuits (spec.md §4.5).
type LogicalOperator struct {
	base
	Op    string
	Left  Node
	Right Node
}

func NewLogicalOperator(t *symbols.Type, op string, left, right Node) *LogicalOperator {
	return &LogicalOperator{base: base{typ: t}, Op: op, Left: left, Right: right}
}

// WhileLoop always has type None (spec.md §4.5: "loops do not produce
// values in this Language revision").
type WhileLoop struct {
	base
	Cond Node
	Body Node
}

func NewWhileLoop(noneType *symbols.Type, cond, body Node) *WhileLoop {
	return &WhileLoop{base: base{typ: noneType}, Cond: cond, Body: body}
}

type LoadField struct {
	base
	Obj   Node
	Index int
}

func NewLoadField(t *symbols.Type, obj Node, idx int) *LoadField {
	return &LoadField{base: base{typ: t}, Obj: obj, Index: idx}
}

// Interpolation concatenates the String results of a sequence of
// expressions at runtime (spec.md §4.6, opcode INTERPOLATION).
type Interpolation struct {
	base
	Parts []Node
}

func NewInterpolation(stringType *symbols.Type, parts []Node) *Interpolation {
	return &Interpolation{base: base{typ: stringType}, Parts: parts}
}

// Array is an array literal; Spread[i] marks Elements[i] as a `..expr`
// spread rather than a single element.
type Array struct {
	base
	Elements []Node
	Spread   []bool
}

func NewArray(t *symbols.Type, elems []Node, spread []bool) *Array {
	return &Array{base: base{typ: t}, Elements: elems, Spread: spread}
}

// SetPersistent marks an already-built node's result as needing to
// survive as a scope local; used by the binder for var initializers and
// spread/for-loop temporaries (spec.md §4.5-§4.6).
func SetPersistent(n Node) Node {
	switch v := n.(type) {
	case *Value:
		v.pers = true
		return v
	case *Object:
		v.pers = true
		return v
	case *FunctionCall:
		v.pers = true
		return v
	case *Scope:
		v.pers = true
		return v
	case *VarRef:
		v.pers = true
		return v
	case *ArgRef:
		v.pers = true
		return v
	case *Assignment:
		v.pers = true
		return v
	case *Conditional:
		v.pers = true
		return v
	case *LogicalOperator:
		v.pers = true
		return v
	case *WhileLoop:
		v.pers = true
		return v
	case *LoadField:
		v.pers = true
		return v
	case *Interpolation:
		v.pers = true
		return v
	case *Array:
		v.pers = true
		return v
	}
	return n
}
