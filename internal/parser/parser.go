package parser

import (
	"strconv"

	"dpl/internal/diagnostics"
	"dpl/internal/lexer"
)

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precAdditive
	precMultiplicative
	precRange
	precUnary
	precCall
	precPrimary
)

var binaryPrec = map[lexer.TokenKind]precedence{
	lexer.TokOr:         precOr,
	lexer.TokAnd:        precAnd,
	lexer.TokEqualEqual: precEquality,
	lexer.TokNotEqual:   precEquality,
	lexer.TokLess:       precComparison,
	lexer.TokLessEqual:  precComparison,
	lexer.TokGreater:    precComparison,
	lexer.TokGreaterEq:  precComparison,
	lexer.TokPlus:       precAdditive,
	lexer.TokMinus:      precAdditive,
	lexer.TokStar:       precMultiplicative,
	lexer.TokSlash:      precMultiplicative,
	lexer.TokDotDot:     precRange,
}

// Parser drives a single Scanner, buffering one token of lookahead.
type Parser struct {
	scanner *lexer.Scanner
	cur     lexer.Token
	peeked  *lexer.Token
}

func New(scanner *lexer.Scanner) *Parser {
	p := &Parser{scanner: scanner}
	p.cur = scanner.Next()
	return p
}

// Parse parses the whole source as one top-level Scope (spec.md §4.4: "the
// program as a whole is a scope terminated by end-of-file").
func Parse(file, source string) (prog *Scope, err error) {
	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*diagnostics.Diagnostic); ok {
				err = d
				return
			}
			panic(r)
		}
	}()
	p := New(lexer.New(file, source))
	start := posOf(p.cur)
	var exprs []Expr
	for p.cur.Kind != lexer.TokEOF {
		exprs = append(exprs, p.parseScopeMember())
		if p.check(lexer.TokSemicolon) {
			p.advance()
		}
	}
	if len(exprs) == 0 {
		panic(p.errAt(start, "a scope requires at least one expression"))
	}
	return &Scope{P: start, Exprs: exprs}, nil
}

func (p *Parser) errAt(pos Pos, format string, args ...interface{}) *diagnostics.Diagnostic {
	return diagnostics.New(diagnostics.Parse, diagnostics.Location{
		File: pos.File, Line: pos.Line, Column: pos.Column, LineText: pos.LineText, Width: pos.Width,
	}, format, args...)
}

func (p *Parser) errTok(format string, args ...interface{}) *diagnostics.Diagnostic {
	return p.errAt(posOf(p.cur), format, args...)
}

func (p *Parser) advance() lexer.Token {
	prev := p.cur
	if p.peeked != nil {
		p.cur = *p.peeked
		p.peeked = nil
	} else {
		p.cur = p.scanner.Next()
	}
	return prev
}

func (p *Parser) peekNext() lexer.Token {
	if p.peeked == nil {
		t := p.scanner.Next()
		p.peeked = &t
	}
	return *p.peeked
}

func (p *Parser) check(k lexer.TokenKind) bool { return p.cur.Kind == k }

func (p *Parser) match(k lexer.TokenKind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k lexer.TokenKind, what string) lexer.Token {
	if !p.check(k) {
		panic(p.errTok("expected %s, got %q", what, p.cur.Text))
	}
	return p.advance()
}

// parseScopeMember parses one member of a `{ ... }` scope: either a
// declaration (var/constant/type/function) or a plain expression,
// optionally followed by `:= expr` if it turns out to be an assignment
// target.
func (p *Parser) parseScopeMember() Expr {
	switch p.cur.Kind {
	case lexer.TokConstant:
		return p.parseConstDecl()
	case lexer.TokVar:
		return p.parseVarDecl()
	case lexer.TokType:
		return p.parseTypeDecl()
	case lexer.TokFunction:
		return p.parseFunctionDecl()
	default:
		return p.parseExpression(precAssignment)
	}
}

func (p *Parser) parseConstDecl() Expr {
	start := posOf(p.cur)
	p.advance() // 'constant'
	name := p.expect(lexer.TokIdent, "constant name").Text
	var typ *TypeExpr
	if p.match(lexer.TokColon) {
		typ = p.parseTypeExpr()
	}
	p.expect(lexer.TokColonEqual, "':=' after constant name")
	init := p.parseExpression(precAssignment)
	return &ConstDecl{P: start, Name: name, Type: typ, Init: init}
}

func (p *Parser) parseVarDecl() Expr {
	start := posOf(p.cur)
	p.advance() // 'var'
	name := p.expect(lexer.TokIdent, "variable name").Text
	var typ *TypeExpr
	if p.match(lexer.TokColon) {
		typ = p.parseTypeExpr()
	}
	p.expect(lexer.TokColonEqual, "':=' after variable name")
	init := p.parseExpression(precAssignment)
	return &VarDecl{P: start, Name: name, Type: typ, Init: init}
}

func (p *Parser) parseTypeDecl() Expr {
	start := posOf(p.cur)
	p.advance() // 'type'
	name := p.expect(lexer.TokIdent, "type name").Text
	p.expect(lexer.TokColonEqual, "':=' after type name")
	typ := p.parseTypeExpr()
	return &TypeDecl{P: start, Name: name, Type: typ}
}

func (p *Parser) parseFunctionDecl() Expr {
	start := posOf(p.cur)
	p.advance() // 'function'
	name := p.expect(lexer.TokIdent, "function name").Text
	p.expect(lexer.TokLParen, "'(' after function name")
	var params []Param
	if !p.check(lexer.TokRParen) {
		for {
			pname := p.expect(lexer.TokIdent, "parameter name").Text
			p.expect(lexer.TokColon, "':' after parameter name")
			ptype := p.parseTypeExpr()
			params = append(params, Param{Name: pname, Type: ptype})
			if !p.match(lexer.TokComma) {
				break
			}
		}
	}
	p.expect(lexer.TokRParen, "')' after parameters")
	var ret *TypeExpr
	if p.match(lexer.TokColon) {
		ret = p.parseTypeExpr()
	}
	p.expect(lexer.TokColonEqual, "':=' before function body")
	body := p.parseExpression(precAssignment)
	return &FunctionDecl{P: start, Name: name, Params: params, ReturnType: ret, Body: body}
}

func (p *Parser) parseTypeExpr() *TypeExpr {
	start := posOf(p.cur)
	if p.match(lexer.TokLBracket) {
		elem := p.parseTypeExpr()
		p.expect(lexer.TokRBracket, "']' after array element type")
		return &TypeExpr{Pos: start, Elem: elem}
	}
	if p.match(lexer.TokObjectOpen) {
		var fields []ObjectField
		if !p.check(lexer.TokRBracket) {
			for {
				fname := p.expect(lexer.TokIdent, "field name").Text
				p.expect(lexer.TokColon, "':' after field name")
				ftype := p.parseTypeExpr()
				fields = append(fields, ObjectField{Name: fname, Type: ftype})
				if !p.match(lexer.TokComma) {
					break
				}
			}
		}
		p.expect(lexer.TokRBracket, "']' after object type fields")
		return &TypeExpr{Pos: start, Obj: fields}
	}
	name := p.expect(lexer.TokIdent, "type name").Text
	return &TypeExpr{Pos: start, Name: name}
}

// --- Pratt expression parsing -------------------------------------------

func (p *Parser) parseExpression(min precedence) Expr {
	left := p.parsePrefix()
	for {
		// Assignment binds an identifier target to `:=`; it is handled
		// specially because the target must already be a bound Ident.
		if min <= precAssignment && p.check(lexer.TokColonEqual) {
			ident, ok := left.(*Ident)
			if !ok {
				break
			}
			p.advance()
			value := p.parseExpression(precAssignment)
			left = &Assignment{P: ident.P, Name: ident.Name, Value: value}
			continue
		}

		prec, ok := binaryPrec[p.cur.Kind]
		if !ok || prec < min {
			break
		}
		opTok := p.advance()
		// All binary operators here are left-associative.
		right := p.parseExpression(prec + 1)
		switch opTok.Kind {
		case lexer.TokAnd, lexer.TokOr:
			left = &Logical{P: posOf(opTok), Op: opTok.Text, Left: left, Right: right}
		case lexer.TokDotDot:
			left = &Range{P: posOf(opTok), From: left, To: right}
		default:
			left = &Binary{P: posOf(opTok), Op: opTok.Text, Left: left, Right: right}
		}
	}
	return left
}

func (p *Parser) parsePrefix() Expr {
	switch p.cur.Kind {
	case lexer.TokNot, lexer.TokMinus:
		opTok := p.advance()
		operand := p.parseExpression(precUnary)
		return p.parsePostfix(&Unary{P: posOf(opTok), Op: opTok.Text, Operand: operand})
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// parsePostfix handles the CALL-precedence suffixes `.field` and
// `.method(args)`. A bare identifier call `name(args)` is parsed by
// parsePrimary.
func (p *Parser) parsePostfix(expr Expr) Expr {
	for {
		if p.check(lexer.TokDot) {
			p.advance()
			fieldTok := p.expect(lexer.TokIdent, "field or method name")
			if p.check(lexer.TokLParen) {
				args := p.parseArgList()
				expr = &MethodCall{P: posOf(fieldTok), Obj: expr, Method: fieldTok.Text, Args: args}
				continue
			}
			expr = &FieldAccess{P: posOf(fieldTok), Obj: expr, Field: fieldTok.Text}
			continue
		}
		break
	}
	return expr
}

func (p *Parser) parseArgList() []Expr {
	p.expect(lexer.TokLParen, "'(' to start argument list")
	var args []Expr
	if !p.check(lexer.TokRParen) {
		for {
			args = append(args, p.parseExpression(precAssignment))
			if !p.match(lexer.TokComma) {
				break
			}
		}
	}
	p.expect(lexer.TokRParen, "')' after arguments")
	return args
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur
	switch tok.Kind {
	case lexer.TokNumber:
		p.advance()
		val, _ := strconv.ParseFloat(tok.Text, 64)
		return &NumberLit{P: posOf(tok), Value: val}
	case lexer.TokTrue:
		p.advance()
		return &BoolLit{P: posOf(tok), Value: true}
	case lexer.TokFalse:
		p.advance()
		return &BoolLit{P: posOf(tok), Value: false}
	case lexer.TokString:
		p.advance()
		return &StringLit{P: posOf(tok), Value: tok.Text}
	case lexer.TokInterpBegin:
		return p.parseInterpolation()
	case lexer.TokIdent:
		p.advance()
		if p.check(lexer.TokLParen) {
			args := p.parseArgList()
			return &Call{P: posOf(tok), Callee: tok.Text, Args: args}
		}
		return &Ident{P: posOf(tok), Name: tok.Text}
	case lexer.TokLParen:
		p.advance()
		inner := p.parseExpression(precAssignment)
		p.expect(lexer.TokRParen, "')' after parenthesized expression")
		return inner
	case lexer.TokLBrace:
		return p.parseScope()
	case lexer.TokObjectOpen:
		return p.parseObjectLiteral()
	case lexer.TokLBracket:
		return p.parseArrayLiteral()
	case lexer.TokIf:
		return p.parseConditional()
	case lexer.TokWhile:
		return p.parseWhile()
	case lexer.TokFor:
		return p.parseForIn()
	default:
		panic(p.errTok("unexpected token %q in expression", tok.Text))
	}
}

func (p *Parser) parseInterpolation() Expr {
	start := posOf(p.cur)
	var fragments []string
	var exprs []Expr

	fragments = append(fragments, p.cur.Text)
	p.advance() // STRING_INTERP_BEGIN

	for {
		exprs = append(exprs, p.parseExpression(precAssignment))
		switch p.cur.Kind {
		case lexer.TokInterpMid:
			fragments = append(fragments, p.cur.Text)
			p.advance()
			continue
		case lexer.TokInterpEnd:
			fragments = append(fragments, p.cur.Text)
			p.advance()
			return &Interpolation{P: start, Fragments: fragments, Exprs: exprs}
		default:
			panic(p.errTok("expected continuation of interpolated string, got %q", p.cur.Text))
		}
	}
}

func (p *Parser) parseScope() Expr {
	start := posOf(p.cur)
	p.expect(lexer.TokLBrace, "'{' to start scope")
	var exprs []Expr
	for !p.check(lexer.TokRBrace) {
		exprs = append(exprs, p.parseScopeMember())
		if p.check(lexer.TokSemicolon) {
			p.advance()
		} else if !p.check(lexer.TokRBrace) {
			break
		}
	}
	p.expect(lexer.TokRBrace, "'}' to close scope")
	if len(exprs) == 0 {
		panic(p.errAt(start, "a scope requires at least one expression"))
	}
	return &Scope{P: start, Exprs: exprs}
}

func (p *Parser) parseObjectLiteral() Expr {
	start := posOf(p.cur)
	p.expect(lexer.TokObjectOpen, "'$[' to start object literal")
	var fields []ObjectLiteralField
	for !p.check(lexer.TokRBracket) {
		if p.match(lexer.TokDotDot) {
			spread := p.parseExpression(precAssignment)
			fields = append(fields, ObjectLiteralField{Spread: spread})
		} else {
			nameTok := p.expect(lexer.TokIdent, "field name")
			if p.match(lexer.TokColon) {
				value := p.parseExpression(precAssignment)
				fields = append(fields, ObjectLiteralField{Name: nameTok.Text, Value: value})
			} else {
				// Bare identifier shorthand: `x` means `x: x`.
				fields = append(fields, ObjectLiteralField{
					Name:  nameTok.Text,
					Value: &Ident{P: posOf(nameTok), Name: nameTok.Text},
				})
			}
		}
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBracket, "']' to close object literal")
	return &ObjectLiteral{P: start, Fields: fields}
}

func (p *Parser) parseArrayLiteral() Expr {
	start := posOf(p.cur)
	p.expect(lexer.TokLBracket, "'[' to start array literal")
	var elems []Expr
	var spreads []bool
	for !p.check(lexer.TokRBracket) {
		if p.match(lexer.TokDotDot) {
			elems = append(elems, p.parseExpression(precAssignment))
			spreads = append(spreads, true)
		} else {
			elems = append(elems, p.parseExpression(precAssignment))
			spreads = append(spreads, false)
		}
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBracket, "']' to close array literal")
	return &ArrayLiteral{P: start, Elements: elems, Spreads: spreads}
}

func (p *Parser) parseConditional() Expr {
	start := posOf(p.cur)
	p.advance() // 'if'
	p.expect(lexer.TokLParen, "'(' after 'if'")
	cond := p.parseExpression(precAssignment)
	p.expect(lexer.TokRParen, "')' after if condition")
	then := p.parseExpression(precAssignment)
	p.expect(lexer.TokElse, "'else' (both branches are required)")
	elseExpr := p.parseExpression(precAssignment)
	return &Conditional{P: start, Cond: cond, Then: then, Else: elseExpr}
}

func (p *Parser) parseWhile() Expr {
	start := posOf(p.cur)
	p.advance() // 'while'
	p.expect(lexer.TokLParen, "'(' after 'while'")
	cond := p.parseExpression(precAssignment)
	p.expect(lexer.TokRParen, "')' after while condition")
	body := p.parseExpression(precAssignment)
	return &While{P: start, Cond: cond, Body: body}
}

func (p *Parser) parseForIn() Expr {
	start := posOf(p.cur)
	p.advance() // 'for'
	p.expect(lexer.TokLParen, "'(' after 'for'")
	p.expect(lexer.TokVar, "'var' in for-in loop header")
	name := p.expect(lexer.TokIdent, "loop variable name").Text
	p.expect(lexer.TokIn, "'in' in for-in loop header")
	iterable := p.parseExpression(precAssignment)
	p.expect(lexer.TokRParen, "')' after for-in header")
	body := p.parseExpression(precAssignment)
	return &ForIn{P: start, VarName: name, Iterable: iterable, Body: body}
}
