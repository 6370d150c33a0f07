package parser

import "testing"

func mustParse(t *testing.T, src string) *Scope {
	t.Helper()
	prog, err := Parse("t.dpl", src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParsePrecedence(t *testing.T) {
	prog := mustParse(t, `{ 1 + 2 * 3 }`)
	scope := prog.Exprs[0].(*Scope)
	bin := scope.Exprs[0].(*Binary)
	if bin.Op != "+" {
		t.Fatalf("expected top-level '+', got %q", bin.Op)
	}
	rhs, ok := bin.Right.(*Binary)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right operand to be '*', got %#v", bin.Right)
	}
}

func TestParseLeftAssociativity(t *testing.T) {
	prog := mustParse(t, `{ 1 - 2 - 3 }`)
	scope := prog.Exprs[0].(*Scope)
	outer := scope.Exprs[0].(*Binary)
	if outer.Op != "-" {
		t.Fatalf("got %q", outer.Op)
	}
	if _, ok := outer.Left.(*Binary); !ok {
		t.Fatalf("expected left-associative nesting on the left, got %#v", outer.Left)
	}
	if _, ok := outer.Right.(*NumberLit); !ok {
		t.Fatalf("expected bare literal on the right, got %#v", outer.Right)
	}
}

func TestParseConditionalRequiresElse(t *testing.T) {
	_, err := Parse("t.dpl", `{ if (true) 1 }`)
	if err == nil {
		t.Fatal("expected error for if without else")
	}
}

func TestParseEmptyScopeErrors(t *testing.T) {
	_, err := Parse("t.dpl", `{ }`)
	if err == nil {
		t.Fatal("expected error for empty scope")
	}
}

func TestParseObjectLiteralShorthandAndSpread(t *testing.T) {
	prog := mustParse(t, `{ $[ ..base, x: 1, y ] }`)
	scope := prog.Exprs[0].(*Scope)
	obj := scope.Exprs[0].(*ObjectLiteral)
	if len(obj.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(obj.Fields))
	}
	if obj.Fields[0].Spread == nil {
		t.Fatalf("expected first field to be a spread")
	}
	if obj.Fields[1].Name != "x" {
		t.Fatalf("expected second field named x, got %q", obj.Fields[1].Name)
	}
	if obj.Fields[2].Name != "y" {
		t.Fatalf("expected third field named y, got %q", obj.Fields[2].Name)
	}
	if ident, ok := obj.Fields[2].Value.(*Ident); !ok || ident.Name != "y" {
		t.Fatalf("expected shorthand y to desugar to ident y, got %#v", obj.Fields[2].Value)
	}
}

func TestParseMethodCallSugar(t *testing.T) {
	prog := mustParse(t, `{ p.distance(q) }`)
	scope := prog.Exprs[0].(*Scope)
	mc, ok := scope.Exprs[0].(*MethodCall)
	if !ok {
		t.Fatalf("expected MethodCall, got %#v", scope.Exprs[0])
	}
	if mc.Method != "distance" || len(mc.Args) != 1 {
		t.Fatalf("unexpected method call shape: %#v", mc)
	}
}

func TestParseAssignmentRequiresIdentTarget(t *testing.T) {
	prog := mustParse(t, `{ var x := 1; x := 2 }`)
	scope := prog.Exprs[0].(*Scope)
	assign, ok := scope.Exprs[1].(*Assignment)
	if !ok {
		t.Fatalf("expected Assignment, got %#v", scope.Exprs[1])
	}
	if assign.Name != "x" {
		t.Fatalf("got %q", assign.Name)
	}
}

func TestParseForInHeader(t *testing.T) {
	prog := mustParse(t, `{ for (var k in iterator(1..3)) print(k) }`)
	scope := prog.Exprs[0].(*Scope)
	f, ok := scope.Exprs[0].(*ForIn)
	if !ok {
		t.Fatalf("expected ForIn, got %#v", scope.Exprs[0])
	}
	if f.VarName != "k" {
		t.Fatalf("got %q", f.VarName)
	}
	call, ok := f.Iterable.(*Call)
	if !ok || call.Callee != "iterator" {
		t.Fatalf("expected iterator(...) call, got %#v", f.Iterable)
	}
	if _, ok := call.Args[0].(*Range); !ok {
		t.Fatalf("expected range argument, got %#v", call.Args[0])
	}
}

func TestParseFunctionDecl(t *testing.T) {
	prog := mustParse(t, `{ function sq(n: Number): Number := n*n }`)
	scope := prog.Exprs[0].(*Scope)
	fn, ok := scope.Exprs[0].(*FunctionDecl)
	if !ok {
		t.Fatalf("expected FunctionDecl, got %#v", scope.Exprs[0])
	}
	if fn.Name != "sq" || len(fn.Params) != 1 || fn.Params[0].Name != "n" {
		t.Fatalf("unexpected function shape: %#v", fn)
	}
	if fn.ReturnType == nil || fn.ReturnType.Name != "Number" {
		t.Fatalf("expected declared return type Number, got %#v", fn.ReturnType)
	}
}

func TestParseArrayLiteralWithSpread(t *testing.T) {
	prog := mustParse(t, `{ [1, 2, ..rest, 3] }`)
	scope := prog.Exprs[0].(*Scope)
	arr, ok := scope.Exprs[0].(*ArrayLiteral)
	if !ok {
		t.Fatalf("expected ArrayLiteral, got %#v", scope.Exprs[0])
	}
	want := []bool{false, false, true, false}
	if len(arr.Spreads) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(arr.Spreads))
	}
	for i, w := range want {
		if arr.Spreads[i] != w {
			t.Errorf("element %d: got spread=%v want %v", i, arr.Spreads[i], w)
		}
	}
}
