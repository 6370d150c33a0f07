package symbols

import "dpl/internal/bytecode"

type Kind int

const (
	SymBoundary Kind = iota
	SymType
	SymConstant
	SymVar
	SymArgument
	SymFunction
)

type BoundaryKind int

const (
	BoundaryModule BoundaryKind = iota
	BoundaryScope
	BoundaryFunction
)

// ConstValue is the compile-time value folded into a SymConstant symbol.
// The binder's fold produces these, and the binder turns each reference
// to the constant into a literal Value node.
type ConstValue struct {
	Type   *Type
	Number float64
	String string
	Bool   bool
}

// FuncKind distinguishes the three function categories of spec.md §4.2
// ("push-function-instruction", "push-function-intrinsic",
// "push-function-user"). All three share one overload-resolution
// namespace via Stack.FindFunction, but the code generator lowers each
// kind differently: instruction functions compile straight to a
// dedicated opcode, intrinsic functions compile to CALL_INTRINSIC, and
// user functions compile to CALL_USER.
type FuncKind int

const (
	FuncInstruction FuncKind = iota
	FuncIntrinsic
	FuncUser
)

// Function is the payload of a SymFunction symbol.
type Function struct {
	Name       string
	ArgTypes   []*Type
	ReturnType *Type
	Kind       FuncKind

	// Opcode is set for FuncInstruction: the dedicated opcode this call
	// lowers to instead of CALL_INTRINSIC (e.g. add -> OpAdd).
	Opcode bytecode.OpCode

	// IntrinsicKind is set for FuncIntrinsic: the dispatch operand of the
	// CALL_INTRINSIC instruction this call lowers to.
	IntrinsicKind bytecode.Intrinsic

	// Used, UserIndex and Body apply to FuncUser only.
	Used      bool
	UserIndex int         // stable index into the binder's used-function list, set on first use
	Body      interface{} // a bound.Node, filled in by the binder; interface{} avoids an import cycle
}

// Symbol is one entry on the stack.
type Symbol struct {
	Kind     Kind
	Name     string
	Depth    int // boundary depth: number of boundary markers above, inclusive
	Index    int // runtime stack slot for Var/Argument symbols; -1 otherwise
	Boundary BoundaryKind // SymBoundary only
	Type     *Type        // SymType, SymConstant, SymVar, SymArgument
	Const    *ConstValue  // SymConstant only
	Func     *Function    // SymFunction only
}

// Stack is the append-only symbol table used throughout compilation. It
// is intentionally a flat slice rather than a tree of scope objects: a
// boundary marker doesn't need to know how many symbols will be pushed
// above it, so "pop boundary" is just "truncate back to the nearest
// marker's index", found by scanning down from the top.
type Stack struct {
	syms    []Symbol
	types   *TypeTable
	nextVar []int // stack of "next local slot" counters, one per open function boundary
}

func NewStack(types *TypeTable) *Stack {
	return &Stack{types: types, nextVar: []int{0}}
}

func (s *Stack) Types() *TypeTable { return s.types }

func (s *Stack) depth() int {
	d := 0
	for _, sym := range s.syms {
		if sym.Kind == SymBoundary {
			d++
		}
	}
	return d
}

func (s *Stack) PushBoundary(kind BoundaryKind) {
	s.syms = append(s.syms, Symbol{Kind: SymBoundary, Boundary: kind, Depth: s.depth() + 1})
	if kind == BoundaryFunction {
		s.nextVar = append(s.nextVar, 0)
	}
}

// PopBoundary pops every symbol back through (and including) the nearest
// boundary marker.
func (s *Stack) PopBoundary() {
	for i := len(s.syms) - 1; i >= 0; i-- {
		if s.syms[i].Kind == SymBoundary {
			wasFunction := s.syms[i].Boundary == BoundaryFunction
			s.syms = s.syms[:i]
			if wasFunction {
				s.nextVar = s.nextVar[:len(s.nextVar)-1]
			}
			return
		}
	}
	s.syms = s.syms[:0]
}

func (s *Stack) push(sym Symbol) {
	sym.Depth = s.depth()
	s.syms = append(s.syms, sym)
}

func (s *Stack) PushTypeAlias(name string, target *Type) *Type {
	alias := Alias(name, target)
	s.push(Symbol{Kind: SymType, Name: name, Type: alias, Index: -1})
	return alias
}

func (s *Stack) PushConstant(name string, cv *ConstValue) {
	s.push(Symbol{Kind: SymConstant, Name: name, Type: cv.Type, Const: cv, Index: -1})
}

// PushVar declares a variable and assigns it the next local slot within
// the current function boundary (slot numbering resets at each function
// boundary per spec.md §4.2).
func (s *Stack) PushVar(name string, t *Type) int {
	idx := s.allocSlot()
	s.push(Symbol{Kind: SymVar, Name: name, Type: t, Index: idx})
	return idx
}

// PushArgument declares a function parameter, allocating it the next
// local slot the same way PushVar does. Called once per parameter,
// immediately after PushBoundary(BoundaryFunction), so arguments claim
// slots 0..arity-1 before any body-local var allocates slot arity.
func (s *Stack) PushArgument(name string, t *Type) int {
	idx := s.allocSlot()
	s.push(Symbol{Kind: SymArgument, Name: name, Type: t, Index: idx})
	return idx
}

func (s *Stack) allocSlot() int {
	top := len(s.nextVar) - 1
	idx := s.nextVar[top]
	s.nextVar[top]++
	return idx
}

func (s *Stack) PushFunction(fn *Function) *Symbol {
	s.push(Symbol{Kind: SymFunction, Name: fn.Name, Func: fn, Index: -1})
	return &s.syms[len(s.syms)-1]
}

// Find searches top-down for the nearest symbol named `name`, honoring
// the closure rule: once a function boundary is crossed, variables and
// arguments below it become invisible, while types/constants/functions
// remain visible across any number of function boundaries.
func (s *Stack) Find(name string) (*Symbol, bool) {
	crossedFunction := false
	for i := len(s.syms) - 1; i >= 0; i-- {
		sym := &s.syms[i]
		if sym.Kind == SymBoundary {
			if sym.Boundary == BoundaryFunction {
				crossedFunction = true
			}
			continue
		}
		if sym.Name != name {
			continue
		}
		if crossedFunction && (sym.Kind == SymVar || sym.Kind == SymArgument) {
			continue
		}
		return sym, true
	}
	return nil, false
}

// FindFunction resolves an overload by exact argument-type match after
// alias resolution (spec.md §4.2, Testable Property 3: at most one match).
func (s *Stack) FindFunction(name string, argTypes []*Type) (*Function, bool) {
	// Functions remain visible across any number of function boundaries,
	// unlike Find's handling of Var/Argument, so boundaries are skipped
	// without tracking whether one was crossed.
	for i := len(s.syms) - 1; i >= 0; i-- {
		sym := &s.syms[i]
		if sym.Kind == SymBoundary {
			continue
		}
		if sym.Kind != SymFunction || sym.Name != name {
			continue
		}
		if argTypesMatch(sym.Func.ArgTypes, argTypes) {
			return sym.Func, true
		}
	}
	return nil, false
}

func argTypesMatch(declared, actual []*Type) bool {
	if len(declared) != len(actual) {
		return false
	}
	for i := range declared {
		if ResolveAlias(declared[i]) != ResolveAlias(actual[i]) {
			return false
		}
	}
	return true
}

// FindType resolves a type name to its type: an alias declared on the
// stack, or a base type name (Number, String, Boolean, None). Object and
// array types have no names and are never found here.
func (s *Stack) FindType(name string) (*Type, bool) {
	if sym, ok := s.Find(name); ok && sym.Kind == SymType {
		return sym.Type, true
	}
	for k, n := range baseNames {
		if n == name {
			return s.types.Base(k), true
		}
	}
	return nil, false
}
