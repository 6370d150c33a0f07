// Package diagnostics renders source-annotated compiler and runtime errors.
//
// The lexer, parser, binder and VM report failures through a single
// Diagnostic type so the output format stays stable across phases
// (golden files depend on this). The code generator returns plain Go
// errors.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/mattn/go-isatty"
)

// Kind classifies a Diagnostic by the pipeline phase that raised it.
type Kind string

const (
	Lex     Kind = "LexError"
	Parse   Kind = "ParseError"
	Bind    Kind = "BindError"
	Runtime Kind = "RuntimeError"
)

// Location pinpoints a single position in a named source file.
type Location struct {
	File   string
	Line   int
	Column int
	// LineText is the full source line the location falls on, used to
	// render the caret range under the offending token or node.
	LineText string
	// Width is how many columns the caret range spans, minimum 1.
	Width int
}

// Frame is one entry of a runtime call stack attached to a Diagnostic.
type Frame struct {
	Function string
	Line     int
}

// Diagnostic is a single, terminal compiler or runtime error.
type Diagnostic struct {
	Kind     Kind
	Message  string
	Location Location
	Stack    []Frame
}

func New(kind Kind, loc Location, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

func (d *Diagnostic) WithStack(stack []Frame) *Diagnostic {
	d.Stack = stack
	return d
}

func (d *Diagnostic) Error() string {
	return d.Render(false)
}

// Render formats the diagnostic as `file:line:column: Kind: message`,
// followed by the offending source line and a caret range, followed by
// an optional call stack. When color is true (or forced by an isatty
// check at the call site) the caret range is wrapped in ANSI red.
func (d *Diagnostic) Render(color bool) string {
	var b strings.Builder
	loc := d.Location

	fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", loc.File, loc.Line, loc.Column, d.Kind, d.Message)

	if loc.LineText != "" {
		fmt.Fprintf(&b, "  %d | %s\n", loc.Line, loc.LineText)
		gutter := fmt.Sprintf("%d | ", loc.Line)
		width := loc.Width
		if width < 1 {
			width = 1
		}
		col := loc.Column - 1
		if col < 0 {
			col = 0
		}
		caret := strings.Repeat(" ", col) + strings.Repeat("^", width)
		if color {
			caret = "\033[31m" + caret + "\033[0m"
		}
		fmt.Fprintf(&b, "  %s%s\n", strings.Repeat(" ", len(gutter)), caret)
	}

	for _, f := range d.Stack {
		if f.Function != "" {
			fmt.Fprintf(&b, "  at %s (line %d)\n", f.Function, f.Line)
		} else {
			fmt.Fprintf(&b, "  at line %d\n", f.Line)
		}
	}

	return b.String()
}

// StderrIsTerminal reports whether stderr looks like an interactive
// terminal, used by CLI drivers to decide whether to colorize Render.
func StderrIsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}
