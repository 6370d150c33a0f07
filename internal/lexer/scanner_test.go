package lexer

import "testing"

func kinds(src string) []TokenKind {
	s := New("t.dpl", src)
	var out []TokenKind
	for {
		tok := s.Next()
		out = append(out, tok.Kind)
		if tok.Kind == TokEOF {
			return out
		}
	}
}

func TestPunctuationAndKeywords(t *testing.T) {
	got := kinds(`var x := 1 + 2 <= 3 && !false`)
	want := []TokenKind{
		TokVar, TokIdent, TokColonEqual, TokNumber, TokPlus, TokNumber,
		TokLessEqual, TokNumber, TokAnd, TokNot, TokFalse, TokEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestCommentIsSkippedByNext(t *testing.T) {
	got := kinds("1 # trailing comment\n+ 2")
	want := []TokenKind{TokNumber, TokPlus, TokNumber, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestInterpolationSegments(t *testing.T) {
	got := kinds(`"a${x}b${y}c"`)
	want := []TokenKind{TokInterpBegin, TokIdent, TokInterpMid, TokIdent, TokInterpEnd, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestInterpolationWithNestedBraces(t *testing.T) {
	got := kinds(`"sum=${ { var a := 1; a } }"`)
	want := []TokenKind{
		TokInterpBegin, TokLBrace, TokVar, TokIdent, TokColonEqual, TokNumber,
		TokSemicolon, TokIdent, TokRBrace, TokInterpEnd, TokEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestInterpolationDepthOverflow(t *testing.T) {
	src := `"${`
	for i := 0; i < MaxInterpolationDepth; i++ {
		src += `"${`
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on interpolation depth overflow")
		}
	}()
	kinds(src)
}

func TestUnterminatedStringErrors(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unterminated string")
		}
	}()
	kinds(`"unterminated`)
}

func TestStringEscapes(t *testing.T) {
	s := New("t.dpl", `"a\nb\tc\\d\"e"`)
	tok := s.Next()
	if tok.Kind != TokString {
		t.Fatalf("expected STRING, got %s", tok.Kind)
	}
	want := "a\nb\tc\\d\"e"
	if tok.Text != want {
		t.Fatalf("got %q want %q", tok.Text, want)
	}
}

func TestUnknownEscapeErrors(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unknown escape")
		}
	}()
	kinds(`"\q"`)
}

func TestNumberLiteral(t *testing.T) {
	s := New("t.dpl", "3.14 42")
	tok := s.Next()
	if tok.Kind != TokNumber || tok.Text != "3.14" {
		t.Fatalf("got %v", tok)
	}
	tok = s.Next()
	if tok.Kind != TokNumber || tok.Text != "42" {
		t.Fatalf("got %v", tok)
	}
}

func TestLexDeterminism(t *testing.T) {
	src := `{ var x := 1; while (x < 3) { print(x); x := x + 1 } }`
	a := kinds(src)
	b := kinds(src)
	if len(a) != len(b) {
		t.Fatalf("length differs across runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("token %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}
