// Package binder implements spec.md §4.5: name resolution, type
// checking, constant folding, and lowering of the parser's AST into the
// typed bound tree the code generator consumes.
package binder

import (
	"sort"

	"dpl/internal/bound"
	"dpl/internal/diagnostics"
	"dpl/internal/parser"
	"dpl/internal/symbols"
)

var binaryFuncName = map[string]string{
	"+": "add", "-": "subtract", "*": "multiply", "/": "divide",
	"<": "less", "<=": "lessEqual", ">": "greater", ">=": "greaterEqual",
	"==": "equal", "!=": "notEqual",
}

var unaryFuncName = map[string]string{"-": "negate", "!": "not"}

// Binder holds the symbol stack and type-table caches for one
// compilation. Its used list is the stable, ordered list the
// code generator emits user-function bodies from (spec.md §4.6).
type Binder struct {
	file  string
	stack *symbols.Stack

	numberType  *symbols.Type
	stringType  *symbols.Type
	booleanType *symbols.Type
	noneType    *symbols.Type
	emptyArray  *symbols.Type
	rangeType   *symbols.Type
	iteratorObj *symbols.Type

	used        []*symbols.Function
	anonCounter int
}

// New creates a Binder with a fresh symbol stack, base types, and the
// full instruction/intrinsic function library registered.
func New(file string) *Binder {
	types := symbols.NewTypeTable()
	stack := symbols.NewStack(types)
	registerInstructionFunctions(stack)
	iteratorObj := registerIntrinsicFunctions(stack)

	return &Binder{
		file:        file,
		stack:       stack,
		numberType:  types.Base(symbols.BaseNumber),
		stringType:  types.Base(symbols.BaseString),
		booleanType: types.Base(symbols.BaseBoolean),
		noneType:    types.Base(symbols.BaseNone),
		emptyArray:  types.Base(symbols.BaseEmptyArray),
		rangeType:   types.RangeOfNumber(),
		iteratorObj: iteratorObj,
	}
}

// Stack exposes the underlying symbol stack, used by golden-test
// harnesses that want to assert on registered overloads.
func (b *Binder) Stack() *symbols.Stack { return b.stack }

// Bind lowers a parsed top-level Scope into a bound Scope plus the
// ordered list of user functions actually used, suitable for the code
// generator (spec.md §4.6). Bind panics a *diagnostics.Diagnostic on the
// first type/name error, recovered here into an error return so callers
// don't need their own recover.
func (b *Binder) Bind(prog *parser.Scope) (top *bound.Scope, used []*symbols.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*diagnostics.Diagnostic); ok {
				err = d
				return
			}
			panic(r)
		}
	}()

	b.stack.PushBoundary(symbols.BoundaryModule)
	top = b.bindScopeBody(prog.Exprs)
	b.stack.PopBoundary()
	return top, b.used, nil
}

func (b *Binder) errAt(pos parser.Pos, format string, args ...interface{}) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.Bind, diagnostics.Location{
		File: pos.File, Line: pos.Line, Column: pos.Column, LineText: pos.LineText, Width: pos.Width,
	}, format, args...)
}

func (b *Binder) nextAnon(prefix string) string {
	b.anonCounter++
	return "$" + prefix + "#" + itoa(b.anonCounter)
}

// itoa avoids pulling in strconv just for this one conversion's call
// sites to stay readable; kept local since it's only used for anonymous
// symbol-name suffixes, never parsed back.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// bindScopeBody binds a flat list of AST scope members (shared by the
// module scope, `{ ... }` scopes, and synthesized for-loop bodies),
// dropping declarations that emit nothing and counting persistent
// locals that must survive as POP_SCOPE targets.
func (b *Binder) bindScopeBody(members []parser.Expr) *bound.Scope {
	var exprs []bound.Node
	for _, m := range members {
		if node, ok := b.bindMember(m); ok {
			exprs = append(exprs, node)
		}
	}
	locals := 0
	for i := 0; i < len(exprs)-1; i++ {
		if exprs[i].Persistent() {
			locals++
		}
	}
	return bound.NewScope(exprs, locals)
}

// bindNestedScope binds a `{ ... }` AST scope inside its own scope
// boundary (spec.md §4.2: scope boundaries don't reset local slots,
// only function boundaries do).
func (b *Binder) bindNestedScope(s *parser.Scope) *bound.Scope {
	b.stack.PushBoundary(symbols.BoundaryScope)
	result := b.bindScopeBody(s.Exprs)
	b.stack.PopBoundary()
	return result
}

// bindMember binds one scope member. The second return value is false
// for const/type/function declarations, which resolve entirely into the
// symbol stack and contribute no node to the bound tree.
func (b *Binder) bindMember(e parser.Expr) (bound.Node, bool) {
	switch m := e.(type) {
	case *parser.ConstDecl:
		b.bindConstDecl(m)
		return nil, false
	case *parser.TypeDecl:
		b.stack.PushTypeAlias(m.Name, b.bindTypeExpr(m.Type))
		return nil, false
	case *parser.FunctionDecl:
		b.bindFunctionDecl(m)
		return nil, false
	case *parser.VarDecl:
		return b.bindVarDecl(m), true
	default:
		return b.bindExpr(e), true
	}
}

func (b *Binder) bindConstDecl(c *parser.ConstDecl) {
	init := b.bindExpr(c.Init)
	cv, err := fold(init)
	if err != nil {
		panic(b.errAt(c.P, "constant %q: %s", c.Name, err))
	}
	if c.Type != nil {
		declType := b.bindTypeExpr(c.Type)
		if !symbols.Assignable(cv.Type, declType) {
			panic(b.errAt(c.P, "constant %q: cannot assign %s to declared type %s", c.Name, cv.Type, declType))
		}
		cv.Type = declType
	}
	b.stack.PushConstant(c.Name, cv)
}

func (b *Binder) bindVarDecl(v *parser.VarDecl) bound.Node {
	init := b.bindExpr(v.Init)
	varType := init.Type()
	if v.Type != nil {
		declType := b.bindTypeExpr(v.Type)
		if !symbols.Assignable(init.Type(), declType) {
			panic(b.errAt(v.P, "variable %q: cannot assign %s to declared type %s", v.Name, init.Type(), declType))
		}
		varType = declType
	}
	node := bound.SetPersistent(init)
	b.stack.PushVar(v.Name, varType)
	return node
}

func (b *Binder) bindFunctionDecl(f *parser.FunctionDecl) {
	argTypes := make([]*symbols.Type, len(f.Params))
	for i, p := range f.Params {
		argTypes[i] = b.bindTypeExpr(p.Type)
	}
	var declReturn *symbols.Type
	if f.ReturnType != nil {
		declReturn = b.bindTypeExpr(f.ReturnType)
	}

	fn := &symbols.Function{Name: f.Name, ArgTypes: argTypes, ReturnType: declReturn, Kind: symbols.FuncUser}
	b.stack.PushFunction(fn)

	b.stack.PushBoundary(symbols.BoundaryFunction)
	for i, p := range f.Params {
		b.stack.PushArgument(p.Name, argTypes[i])
	}
	body := b.bindExpr(f.Body)
	b.stack.PopBoundary()

	if declReturn != nil {
		if !symbols.Assignable(body.Type(), declReturn) {
			panic(b.errAt(f.P, "function %q: body type %s does not match declared return type %s", f.Name, body.Type(), declReturn))
		}
	} else {
		fn.ReturnType = body.Type()
	}
	fn.Body = body
}

// markUsed records fn in the binder's stable, ordered used-function list
// the first time it is called, assigning it its codegen index.
func (b *Binder) markUsed(fn *symbols.Function) {
	if fn.Kind != symbols.FuncUser || fn.Used {
		return
	}
	fn.Used = true
	fn.UserIndex = len(b.used)
	b.used = append(b.used, fn)
}

func (b *Binder) bindTypeExpr(te *parser.TypeExpr) *symbols.Type {
	switch {
	case te.Elem != nil:
		return b.stack.Types().Array(b.bindTypeExpr(te.Elem))
	case te.Name == "":
		fields := make([]symbols.Field, len(te.Obj))
		for i, f := range te.Obj {
			fields[i] = symbols.Field{Name: f.Name, Type: b.bindTypeExpr(f.Type)}
		}
		ty, err := b.stack.Types().Object(fields)
		if err != nil {
			panic(b.errAt(te.Pos, "%s", err))
		}
		return ty
	default:
		ty, ok := b.stack.FindType(te.Name)
		if !ok {
			panic(b.errAt(te.Pos, "unknown type %q", te.Name))
		}
		return ty
	}
}

func (b *Binder) bindExpr(e parser.Expr) bound.Node {
	switch n := e.(type) {
	case *parser.NumberLit:
		return bound.NewValueNumber(b.numberType, n.Value)
	case *parser.StringLit:
		return bound.NewValueString(b.stringType, n.Value)
	case *parser.BoolLit:
		return bound.NewValueBool(b.booleanType, n.Value)
	case *parser.Interpolation:
		return b.bindInterpolation(n)
	case *parser.Ident:
		return b.bindIdent(n)
	case *parser.Unary:
		return b.bindUnary(n)
	case *parser.Binary:
		return b.bindBinary(n)
	case *parser.Logical:
		return b.bindLogical(n)
	case *parser.Assignment:
		return b.bindAssignment(n)
	case *parser.Call:
		return b.bindCall(n)
	case *parser.MethodCall:
		return b.bindCall(&parser.Call{P: n.P, Callee: n.Method, Args: append([]parser.Expr{n.Obj}, n.Args...)})
	case *parser.FieldAccess:
		return b.bindFieldAccess(n)
	case *parser.Conditional:
		return b.bindConditional(n)
	case *parser.While:
		return b.bindWhile(n)
	case *parser.ForIn:
		return b.bindForIn(n)
	case *parser.Range:
		return b.bindRange(n)
	case *parser.ObjectLiteral:
		return b.bindObjectLiteral(n)
	case *parser.ArrayLiteral:
		return b.bindArrayLiteral(n)
	case *parser.Scope:
		return b.bindNestedScope(n)
	case *parser.VarDecl:
		return b.bindVarDecl(n)
	default:
		panic(b.errAt(parser.Pos{File: b.file}, "cannot bind expression of type %T", e))
	}
}

func (b *Binder) bindIdent(n *parser.Ident) bound.Node {
	sym, ok := b.stack.Find(n.Name)
	if !ok {
		panic(b.errAt(n.P, "unknown symbol %q", n.Name))
	}
	switch sym.Kind {
	case symbols.SymConstant:
		return b.constValueNode(sym.Const)
	case symbols.SymVar:
		return bound.NewVarRef(sym.Type, sym.Index)
	case symbols.SymArgument:
		return bound.NewArgRef(sym.Type, sym.Index)
	case symbols.SymFunction:
		panic(b.errAt(n.P, "function %q used as a value; call it instead", n.Name))
	case symbols.SymType:
		panic(b.errAt(n.P, "type %q used as a value", n.Name))
	default:
		panic(b.errAt(n.P, "unexpected symbol kind for %q", n.Name))
	}
}

// constValueNode converts a folded ConstValue back into a bound.Value
// node at the point a constant symbol is referenced, preserving its
// declared (possibly alias) type.
func (b *Binder) constValueNode(cv *symbols.ConstValue) bound.Node {
	switch symbols.ResolveAlias(cv.Type).Base {
	case symbols.BaseString:
		return bound.NewValueString(cv.Type, cv.String)
	case symbols.BaseBoolean:
		return bound.NewValueBool(cv.Type, cv.Bool)
	default:
		return bound.NewValueNumber(cv.Type, cv.Number)
	}
}

func (b *Binder) bindUnary(n *parser.Unary) bound.Node {
	operand := b.bindExpr(n.Operand)
	name, ok := unaryFuncName[n.Op]
	if !ok {
		panic(b.errAt(n.P, "unknown unary operator %q", n.Op))
	}
	fn, ok := b.stack.FindFunction(name, []*symbols.Type{operand.Type()})
	if !ok {
		panic(b.errAt(n.P, "no overload of %q for operand type %s", name, operand.Type()))
	}
	b.markUsed(fn)
	return bound.NewFunctionCall(fn, []bound.Node{operand})
}

func (b *Binder) bindBinary(n *parser.Binary) bound.Node {
	lhs := b.bindExpr(n.Left)
	rhs := b.bindExpr(n.Right)
	name, ok := binaryFuncName[n.Op]
	if !ok {
		panic(b.errAt(n.P, "unknown binary operator %q", n.Op))
	}
	fn, ok := b.stack.FindFunction(name, []*symbols.Type{lhs.Type(), rhs.Type()})
	if !ok {
		panic(b.errAt(n.P, "no overload of %q for operand types (%s, %s)", name, lhs.Type(), rhs.Type()))
	}
	b.markUsed(fn)
	return bound.NewFunctionCall(fn, []bound.Node{lhs, rhs})
}

func (b *Binder) bindLogical(n *parser.Logical) bound.Node {
	lhs := b.bindExpr(n.Left)
	rhs := b.bindExpr(n.Right)
	if symbols.ResolveAlias(lhs.Type()) != b.booleanType {
		panic(b.errAt(n.P, "left-hand side of %q must be Boolean, got %s", n.Op, lhs.Type()))
	}
	if symbols.ResolveAlias(rhs.Type()) != b.booleanType {
		panic(b.errAt(n.P, "right-hand side of %q must be Boolean, got %s", n.Op, rhs.Type()))
	}
	return bound.NewLogicalOperator(b.booleanType, n.Op, lhs, rhs)
}

func (b *Binder) bindAssignment(n *parser.Assignment) bound.Node {
	sym, ok := b.stack.Find(n.Name)
	if !ok {
		panic(b.errAt(n.P, "unknown symbol %q", n.Name))
	}
	if sym.Kind != symbols.SymVar {
		panic(b.errAt(n.P, "cannot assign to %q: not a variable", n.Name))
	}
	value := b.bindExpr(n.Value)
	if !symbols.Assignable(value.Type(), sym.Type) {
		panic(b.errAt(n.P, "cannot assign %s to variable %q of type %s", value.Type(), n.Name, sym.Type))
	}
	return bound.NewAssignment(sym.Index, value)
}

func (b *Binder) bindCall(n *parser.Call) bound.Node {
	args := make([]bound.Node, len(n.Args))
	argTypes := make([]*symbols.Type, len(n.Args))
	for i, a := range n.Args {
		args[i] = b.bindExpr(a)
		argTypes[i] = args[i].Type()
	}
	fn, ok := b.stack.FindFunction(n.Callee, argTypes)
	if !ok {
		panic(b.errAt(n.P, "no function %q matching argument types %s", n.Callee, typeListString(argTypes)))
	}
	b.markUsed(fn)
	return bound.NewFunctionCall(fn, args)
}

func (b *Binder) bindFieldAccess(n *parser.FieldAccess) bound.Node {
	obj := b.bindExpr(n.Obj)
	objType := symbols.ResolveAlias(obj.Type())
	if objType.Kind != symbols.TypeObject {
		panic(b.errAt(n.P, "field access on non-object type %s", obj.Type()))
	}
	idx := symbols.FindObjectField(objType, n.Field)
	if idx < 0 {
		panic(b.errAt(n.P, "type %s has no field %q", obj.Type(), n.Field))
	}
	return bound.NewLoadField(objType.Fields[idx].Type, obj, idx)
}

func (b *Binder) bindConditional(n *parser.Conditional) bound.Node {
	cond := b.bindExpr(n.Cond)
	if symbols.ResolveAlias(cond.Type()) != b.booleanType {
		panic(b.errAt(n.P, "if condition must be Boolean, got %s", cond.Type()))
	}
	then := b.bindExpr(n.Then)
	els := b.bindExpr(n.Else)
	if symbols.ResolveAlias(then.Type()) != symbols.ResolveAlias(els.Type()) {
		panic(b.errAt(n.P, "if branches must have the same type, got %s and %s", then.Type(), els.Type()))
	}
	return bound.NewConditional(cond, then, els)
}

func (b *Binder) bindWhile(n *parser.While) bound.Node {
	cond := b.bindExpr(n.Cond)
	if symbols.ResolveAlias(cond.Type()) != b.booleanType {
		panic(b.errAt(n.P, "while condition must be Boolean, got %s", cond.Type()))
	}
	body := b.bindExpr(n.Body)
	return bound.NewWhileLoop(b.noneType, cond, body)
}

func (b *Binder) bindRange(n *parser.Range) bound.Node {
	from := b.bindExpr(n.From)
	to := b.bindExpr(n.To)
	if symbols.ResolveAlias(from.Type()) != b.numberType || symbols.ResolveAlias(to.Type()) != b.numberType {
		panic(b.errAt(n.P, "range bounds must be Number"))
	}
	fields := []bound.ObjectField{{Name: "from", Expr: from}, {Name: "to", Expr: to}}
	return bound.NewObject(b.rangeType, fields)
}

// bindForIn lowers `for (var x in iterable) body` to:
//
//	{ var $iter := iterable; while (!$iter.finished) { var x := $iter.current; body; $iter := next($iter) } }
//
// per spec.md §4.5.
func (b *Binder) bindForIn(n *parser.ForIn) bound.Node {
	b.stack.PushBoundary(symbols.BoundaryScope)
	defer b.stack.PopBoundary()

	iterInit := b.bindExpr(n.Iterable)
	iterObjType := symbols.ResolveAlias(iterInit.Type())
	if iterObjType.Kind != symbols.TypeObject {
		panic(b.errAt(n.P, "for-in source must be an iterator object, got %s", iterInit.Type()))
	}
	finishedIdx := symbols.FindObjectField(iterObjType, "finished")
	currentIdx := symbols.FindObjectField(iterObjType, "current")
	if finishedIdx < 0 || currentIdx < 0 {
		panic(b.errAt(n.P, "for-in source type %s lacks required finished/current fields", iterInit.Type()))
	}
	if symbols.ResolveAlias(iterObjType.Fields[finishedIdx].Type) != b.booleanType {
		panic(b.errAt(n.P, "for-in source's finished field must be Boolean"))
	}
	nextFn, ok := b.stack.FindFunction("next", []*symbols.Type{iterInit.Type()})
	if !ok || symbols.ResolveAlias(nextFn.ReturnType) != iterObjType {
		panic(b.errAt(n.P, "no next(%s): %s function available for for-in", iterInit.Type(), iterInit.Type()))
	}
	b.markUsed(nextFn)

	notFn, ok := b.stack.FindFunction("not", []*symbols.Type{b.booleanType})
	if !ok {
		panic(b.errAt(n.P, "no not(Boolean) overload registered"))
	}

	iterName := b.nextAnon("iter")
	iterIdx := b.stack.PushVar(iterName, iterInit.Type())
	iterDecl := bound.SetPersistent(iterInit)

	currentType := iterObjType.Fields[currentIdx].Type

	b.stack.PushBoundary(symbols.BoundaryScope)
	b.stack.PushVar(n.VarName, currentType)
	loopVarInit := bound.SetPersistent(bound.NewLoadField(currentType, bound.NewVarRef(iterInit.Type(), iterIdx), currentIdx))
	body := b.bindExpr(n.Body)
	reassign := bound.NewAssignment(iterIdx, bound.NewFunctionCall(nextFn, []bound.Node{bound.NewVarRef(iterInit.Type(), iterIdx)}))
	b.stack.PopBoundary()

	loopBody := bound.NewScope([]bound.Node{loopVarInit, body, reassign}, 1)

	finishedField := bound.NewLoadField(b.booleanType, bound.NewVarRef(iterInit.Type(), iterIdx), finishedIdx)
	cond := bound.NewFunctionCall(notFn, []bound.Node{finishedField})
	whileNode := bound.NewWhileLoop(b.noneType, cond, loopBody)

	return bound.NewScope([]bound.Node{iterDecl, whileNode}, 1)
}

func (b *Binder) bindObjectLiteral(n *parser.ObjectLiteral) bound.Node {
	var temps []bound.Node
	collected := map[string]bound.Node{}

	for _, f := range n.Fields {
		if f.Spread != nil {
			spreadNode := b.bindExpr(f.Spread)
			spreadType := symbols.ResolveAlias(spreadNode.Type())
			if spreadType.Kind != symbols.TypeObject {
				panic(b.errAt(n.P, "cannot spread non-object type %s", spreadNode.Type()))
			}
			tempName := b.nextAnon("spread")
			idx := b.stack.PushVar(tempName, spreadNode.Type())
			temps = append(temps, bound.SetPersistent(spreadNode))
			ref := bound.NewVarRef(spreadNode.Type(), idx)
			for i, field := range spreadType.Fields {
				collected[field.Name] = bound.NewLoadField(field.Type, ref, i)
			}
			continue
		}
		collected[f.Name] = b.bindExpr(f.Value)
	}

	names := make([]string, 0, len(collected))
	for name := range collected {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]symbols.Field, len(names))
	boundFields := make([]bound.ObjectField, len(names))
	for i, name := range names {
		node := collected[name]
		fields[i] = symbols.Field{Name: name, Type: node.Type()}
		boundFields[i] = bound.ObjectField{Name: name, Expr: node}
	}

	objType, err := b.stack.Types().Object(fields)
	if err != nil {
		panic(b.errAt(n.P, "%s", err))
	}
	result := bound.NewObject(objType, boundFields)

	if len(temps) == 0 {
		return result
	}
	exprs := append(temps, bound.Node(result))
	return bound.NewScope(exprs, len(temps))
}

func (b *Binder) bindArrayLiteral(n *parser.ArrayLiteral) bound.Node {
	if len(n.Elements) == 0 {
		return bound.NewArray(b.emptyArray, nil, nil)
	}

	elems := make([]bound.Node, len(n.Elements))
	for i, e := range n.Elements {
		elems[i] = b.bindExpr(e)
	}

	elemTypeOf := func(i int) *symbols.Type {
		if n.Spreads[i] {
			t := symbols.ResolveAlias(elems[i].Type())
			if t.Kind != symbols.TypeArray {
				panic(b.errAt(n.P, "cannot spread non-array type %s into array literal", elems[i].Type()))
			}
			return t.Elem
		}
		return elems[i].Type()
	}

	commonElem := elemTypeOf(0)
	for i := 1; i < len(elems); i++ {
		if !symbols.Assignable(elemTypeOf(i), commonElem) {
			panic(b.errAt(n.P, "array element %d has type %s, not assignable to %s", i, elemTypeOf(i), commonElem))
		}
	}

	arrType := b.stack.Types().Array(commonElem)
	return bound.NewArray(arrType, elems, n.Spreads)
}

func (b *Binder) bindInterpolation(n *parser.Interpolation) bound.Node {
	var parts []bound.Node
	for i, frag := range n.Fragments {
		if frag != "" {
			parts = append(parts, bound.NewValueString(b.stringType, frag))
		}
		if i >= len(n.Exprs) {
			continue
		}
		sub := b.bindExpr(n.Exprs[i])
		if symbols.ResolveAlias(sub.Type()) == b.stringType {
			parts = append(parts, sub)
			continue
		}
		fn, ok := b.stack.FindFunction("toString", []*symbols.Type{sub.Type()})
		if !ok {
			panic(b.errAt(n.P, "no toString(%s) overload for string interpolation", sub.Type()))
		}
		b.markUsed(fn)
		parts = append(parts, bound.NewFunctionCall(fn, []bound.Node{sub}))
	}
	return bound.NewInterpolation(b.stringType, parts)
}

func typeListString(types []*symbols.Type) string {
	s := "("
	for i, t := range types {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s + ")"
}
