// Package symbols implements the boundary-scoped symbol stack and the
// structural type system described in spec.md §3 and §4.2: a linear
// stack of symbols, interned structural types, and name-resolution rules
// that stop variable/argument visibility at function boundaries while
// letting types, constants and functions see through them.
package symbols

import "sort"

type TypeKind int

const (
	TypeBase TypeKind = iota
	TypeObject
	TypeArray
	TypeAlias
	TypeRange // spec.md §11: the narrow Range<Number> used only to feed iterator()
)

type BaseKind int

const (
	BaseNumber BaseKind = iota
	BaseString
	BaseBoolean
	BaseNone
	BaseEmptyArray
)

var baseNames = map[BaseKind]string{
	BaseNumber:     "Number",
	BaseString:     "String",
	BaseBoolean:    "Boolean",
	BaseNone:       "None",
	BaseEmptyArray: "[]",
}

// Field is one (name, type) pair of an object type, canonical order is
// lexicographic on Name.
type Field struct {
	Name string
	Type *Type
}

// Type is a tagged, interned structural type symbol. Two Type pointers
// describing the same shape are guaranteed identical (see TypeTable.Object and TypeTable.Array).
type Type struct {
	Kind   TypeKind
	Base   BaseKind
	Fields []Field // sorted by Name, TypeObject only
	Elem   *Type   // TypeArray only
	Name   string  // TypeAlias only
	Target *Type   // TypeAlias only: what it aliases
}

func (t *Type) String() string {
	switch t.Kind {
	case TypeBase:
		return baseNames[t.Base]
	case TypeObject:
		s := "$["
		for i, f := range t.Fields {
			if i > 0 {
				s += ", "
			}
			s += f.Name + ": " + f.Type.String()
		}
		return s + "]"
	case TypeArray:
		return "[" + t.Elem.String() + "]"
	case TypeAlias:
		return t.Name
	case TypeRange:
		return "Range<Number>"
	}
	return "?"
}

// ResolveAlias walks the alias chain to the underlying structural type.
// This is the only place alias transparency is implemented; every other
// comparison in the binder/symbol table goes through it.
func ResolveAlias(t *Type) *Type {
	for t.Kind == TypeAlias {
		t = t.Target
	}
	return t
}

// Assignable reports whether a value of type `from` may be used where
// `to` is expected: spec.md §4.2, resolve-alias(from) == resolve-alias(to),
// plus the one structural exception that EmptyArray assigns to any array
// type (spec.md §4.5).
func Assignable(from, to *Type) bool {
	rf, rt := ResolveAlias(from), ResolveAlias(to)
	if rf == rt {
		return true
	}
	if rf.Kind == TypeBase && rf.Base == BaseEmptyArray && rt.Kind == TypeArray {
		return true
	}
	return false
}

// TypeTable interns structural (object/array) types so that equal shapes
// resolve to identical pointers (spec.md Testable Property 4).
type TypeTable struct {
	bases   [5]*Type
	objects map[string]*Type
	arrays  map[*Type]*Type
	rangeT  *Type
}

func NewTypeTable() *TypeTable {
	t := &TypeTable{
		objects: make(map[string]*Type),
		arrays:  make(map[*Type]*Type),
	}
	for k := BaseNumber; k <= BaseEmptyArray; k++ {
		t.bases[k] = &Type{Kind: TypeBase, Base: k}
	}
	t.rangeT = &Type{Kind: TypeRange}
	return t
}

func (t *TypeTable) Base(k BaseKind) *Type { return t.bases[k] }
func (t *TypeTable) RangeOfNumber() *Type  { return t.rangeT }

// Array interns an array type by element type identity.
func (t *TypeTable) Array(elem *Type) *Type {
	if existing, ok := t.arrays[elem]; ok {
		return existing
	}
	ty := &Type{Kind: TypeArray, Elem: elem}
	t.arrays[elem] = ty
	return ty
}

// Object interns an object type by its sorted field list. fields is
// mutated in place (sorted) — callers should pass a fresh slice.
func (t *TypeTable) Object(fields []Field) (*Type, error) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	for i := 1; i < len(fields); i++ {
		if fields[i].Name == fields[i-1].Name {
			return nil, duplicateFieldError(fields[i].Name)
		}
	}
	key := objectKey(fields)
	if existing, ok := t.objects[key]; ok {
		return existing, nil
	}
	ty := &Type{Kind: TypeObject, Fields: fields}
	t.objects[key] = ty
	return ty, nil
}

func objectKey(fields []Field) string {
	s := ""
	for _, f := range fields {
		s += f.Name + "\x00" + f.Type.String() + "\x01"
	}
	return s
}

type DuplicateFieldError struct{ Name string }

func (e *DuplicateFieldError) Error() string { return "duplicate object field: " + e.Name }

func duplicateFieldError(name string) error { return &DuplicateFieldError{Name: name} }

// Alias creates a new named alias symbol. Aliases are never interned —
// `type A := Number` and `type B := Number` are distinct alias symbols
// even though they resolve to the same base type.
func Alias(name string, target *Type) *Type {
	return &Type{Kind: TypeAlias, Name: name, Target: target}
}

// FindObjectField returns the field index of name in an (already
// alias-resolved) object type, or -1 if absent.
func FindObjectField(obj *Type, name string) int {
	for i, f := range obj.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
