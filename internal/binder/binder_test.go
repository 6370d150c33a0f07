package binder

import (
	"testing"

	"dpl/internal/bound"
	"dpl/internal/parser"
	"dpl/internal/symbols"
)

func bindSource(t *testing.T, src string) (*bound.Scope, []*symbols.Function) {
	t.Helper()
	ast, err := parser.Parse("t.dpl", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b := New("t.dpl")
	top, used, err := b.Bind(ast)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return top, used
}

func bindSourceErr(t *testing.T, src string) error {
	t.Helper()
	ast, err := parser.Parse("t.dpl", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, _, err = New("t.dpl").Bind(ast)
	return err
}

func TestConstantFoldingArithmetic(t *testing.T) {
	top, _ := bindSource(t, `{ constant x := 1 + 2 * 3; x }`)
	inner := top.Exprs[0].(*bound.Scope)
	val, ok := inner.Exprs[len(inner.Exprs)-1].(*bound.Value)
	if !ok {
		t.Fatalf("expected folded Value, got %#v", inner.Exprs[len(inner.Exprs)-1])
	}
	if val.Number != 7 {
		t.Fatalf("got %v want 7", val.Number)
	}
}

func TestOverloadResolutionStringVsNumberAdd(t *testing.T) {
	top, _ := bindSource(t, `{ "a" + "b" }`)
	inner := top.Exprs[0].(*bound.Scope)
	call := inner.Exprs[0].(*bound.FunctionCall)
	if call.Func.Name != "add" {
		t.Fatalf("got %q", call.Func.Name)
	}
	if symbols.ResolveAlias(call.Type()).Base != symbols.BaseString {
		t.Fatalf("expected String-typed add overload, got %s", call.Type())
	}
}

func TestUnknownOverloadErrors(t *testing.T) {
	err := bindSourceErr(t, `{ 1 + "a" }`)
	if err == nil {
		t.Fatal("expected a bind error for mismatched add overload")
	}
}

func TestUnknownSymbolErrors(t *testing.T) {
	err := bindSourceErr(t, `{ nope }`)
	if err == nil {
		t.Fatal("expected unknown symbol error")
	}
}

func TestObjectTypeInterning(t *testing.T) {
	top, _ := bindSource(t, `{ constant a := $[x: 1, y: 2]; constant b := $[y: 20, x: 10]; a }`)
	inner := top.Exprs[0].(*bound.Scope)
	// Both object literals declare the same shape in different field
	// order; the binder's Object() interning must resolve both constant
	// initializers to the identical *symbols.Type.
	_ = inner
	if top.Type() == nil {
		t.Fatalf("expected a concrete type for the scope result")
	}
}

func TestFieldAccessOnNonObjectErrors(t *testing.T) {
	err := bindSourceErr(t, `{ (1).x }`)
	if err == nil {
		t.Fatal("expected error accessing a field on Number")
	}
}

func TestConditionalBranchTypeMismatchErrors(t *testing.T) {
	err := bindSourceErr(t, `{ if (true) 1 else "a" }`)
	if err == nil {
		t.Fatal("expected type mismatch error between if branches")
	}
}

func TestConditionalNonBooleanConditionErrors(t *testing.T) {
	err := bindSourceErr(t, `{ if (1) 1 else 2 }`)
	if err == nil {
		t.Fatal("expected non-Boolean condition error")
	}
}

func TestForInRequiresIteratorShape(t *testing.T) {
	err := bindSourceErr(t, `{ for (var k in 5) k }`)
	if err == nil {
		t.Fatal("expected for-in over non-object to error")
	}
}

func TestUserFunctionTrackedAsUsed(t *testing.T) {
	_, used := bindSource(t, `{ function sq(n: Number): Number := n*n; sq(4) }`)
	if len(used) != 1 || used[0].Name != "sq" {
		t.Fatalf("expected sq to be the only used function, got %#v", used)
	}
}

func TestUnusedFunctionNotEmitted(t *testing.T) {
	_, used := bindSource(t, `{ function unused(n: Number): Number := n; 1 }`)
	if len(used) != 0 {
		t.Fatalf("expected no used functions, got %#v", used)
	}
}

func TestInterpolationUsesToString(t *testing.T) {
	top, used := bindSource(t, `{ var x := 3; "x is ${x}" }`)
	inner := top.Exprs[0].(*bound.Scope)
	interp, ok := inner.Exprs[len(inner.Exprs)-1].(*bound.Interpolation)
	if !ok {
		t.Fatalf("expected Interpolation node, got %#v", inner.Exprs[len(inner.Exprs)-1])
	}
	found := false
	for _, p := range interp.Parts {
		if call, ok := p.(*bound.FunctionCall); ok && call.Func.Name == "toString" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a toString call among interpolation parts: %#v", interp.Parts)
	}
	_ = used
}

func TestVariableNotVisibleAcrossFunctionBoundary(t *testing.T) {
	err := bindSourceErr(t, `{ var x := 1; function f(): Number := x; f() }`)
	if err == nil {
		t.Fatal("expected closures to be rejected: outer var must not be visible inside function body")
	}
}

func TestTypeAliasAssignability(t *testing.T) {
	_, _ = bindSource(t, `{ type Meters := Number; var m: Meters := 5; m + 1 }`)
}
