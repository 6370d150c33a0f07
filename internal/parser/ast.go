// Package parser builds an AST from a lexer.Scanner's token stream via a
// precedence-climbing (Pratt) expression parser.
package parser

import "dpl/internal/lexer"

// Pos is the source position an AST node was parsed from, carried for
// diagnostics raised later in the binder/codegen.
type Pos struct {
	File     string
	Line     int
	Column   int
	LineText string
	Width    int
}

func posOf(t lexer.Token) Pos {
	w := len(t.Text)
	if w == 0 {
		w = 1
	}
	return Pos{File: t.File, Line: t.Line, Column: t.Column, LineText: t.LineText, Width: w}
}

// Expr is any expression node. The Language is expression-oriented: a
// program is itself one big Scope expression.
type Expr interface {
	exprPos() Pos
}

type TypeExpr struct {
	Pos  Pos
	Name string       // base/alias name, or "" for object/array literals
	Obj  []ObjectField // non-nil for `$[name: Type, ...]` type literals
	Elem *TypeExpr     // non-nil for `[Type]` array types
}

type ObjectField struct {
	Name string
	Type *TypeExpr
}

type NumberLit struct {
	P     Pos
	Value float64
}

func (n *NumberLit) exprPos() Pos { return n.P }

type StringLit struct {
	P     Pos
	Value string
}

func (s *StringLit) exprPos() Pos { return s.P }

type BoolLit struct {
	P     Pos
	Value bool
}

func (b *BoolLit) exprPos() Pos { return b.P }

// Interpolation is `"a${x}b${y}c"`: alternating string fragments and
// expressions, always starting and ending with a (possibly empty)
// fragment.
type Interpolation struct {
	P         Pos
	Fragments []string
	Exprs     []Expr
}

func (i *Interpolation) exprPos() Pos { return i.P }

type Ident struct {
	P    Pos
	Name string
}

func (i *Ident) exprPos() Pos { return i.P }

type Unary struct {
	P       Pos
	Op      string // "-" or "!"
	Operand Expr
}

func (u *Unary) exprPos() Pos { return u.P }

type Binary struct {
	P     Pos
	Op    string
	Left  Expr
	Right Expr
}

func (b *Binary) exprPos() Pos { return b.P }

// Logical is `&&`/`||`: kept distinct from Binary because it is bound to
// short-circuit control flow, not a resolved function call.
type Logical struct {
	P     Pos
	Op    string
	Left  Expr
	Right Expr
}

func (l *Logical) exprPos() Pos { return l.P }

type Assignment struct {
	P     Pos
	Name  string
	Value Expr
}

func (a *Assignment) exprPos() Pos { return a.P }

type Call struct {
	P      Pos
	Callee string
	Args   []Expr
}

func (c *Call) exprPos() Pos { return c.P }

// FieldAccess is `expr.ident`, with no call parens.
type FieldAccess struct {
	P     Pos
	Obj   Expr
	Field string
}

func (f *FieldAccess) exprPos() Pos { return f.P }

// MethodCall is `expr.ident(args)`, desugared by the binder into a Call
// with Obj spliced in as argument 0.
type MethodCall struct {
	P      Pos
	Obj    Expr
	Method string
	Args   []Expr
}

func (m *MethodCall) exprPos() Pos { return m.P }

type Conditional struct {
	P    Pos
	Cond Expr
	Then Expr
	Else Expr
}

func (c *Conditional) exprPos() Pos { return c.P }

type While struct {
	P    Pos
	Cond Expr
	Body Expr
}

func (w *While) exprPos() Pos { return w.P }

type ForIn struct {
	P        Pos
	VarName  string
	Iterable Expr
	Body     Expr
}

func (f *ForIn) exprPos() Pos { return f.P }

type Range struct {
	P    Pos
	From Expr
	To   Expr
}

func (r *Range) exprPos() Pos { return r.P }

// ObjectField literal entry: `name: expr`, a spread `..expr`, or a bare
// identifier `x` (shorthand for `x: x`).
type ObjectLiteralField struct {
	Name   string // empty for spreads
	Value  Expr   // nil for spreads
	Spread Expr   // non-nil for `..expr`
}

type ObjectLiteral struct {
	P      Pos
	Fields []ObjectLiteralField
}

func (o *ObjectLiteral) exprPos() Pos { return o.P }

type ArrayLiteral struct {
	P        Pos
	Elements []Expr
	// Spreads[i] is true when Elements[i] is a `..expr` spread rather
	// than a plain element.
	Spreads []bool
}

func (a *ArrayLiteral) exprPos() Pos { return a.P }

type Scope struct {
	P     Pos
	Exprs []Expr
}

func (s *Scope) exprPos() Pos { return s.P }

// Declarations are expressions syntactically (they may appear as scope
// members) but most bind to nothing (see binder).

type ConstDecl struct {
	P    Pos
	Name string
	Type *TypeExpr // nil if omitted
	Init Expr
}

func (c *ConstDecl) exprPos() Pos { return c.P }

type VarDecl struct {
	P    Pos
	Name string
	Type *TypeExpr
	Init Expr
}

func (v *VarDecl) exprPos() Pos { return v.P }

type TypeDecl struct {
	P    Pos
	Name string
	Type *TypeExpr
}

func (t *TypeDecl) exprPos() Pos { return t.P }

type Param struct {
	Name string
	Type *TypeExpr
}

type FunctionDecl struct {
	P          Pos
	Name       string
	Params     []Param
	ReturnType *TypeExpr // nil if omitted
	Body       Expr
}

func (f *FunctionDecl) exprPos() Pos { return f.P }
