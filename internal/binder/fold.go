package binder

import (
	"fmt"

	"dpl/internal/bound"
	"dpl/internal/symbols"
)

// fold reduces a bound node to a compile-time ConstValue, implementing
// spec.md §4.5's "Literals, binary + - * /, and constant symbol
// references are folded." Unary negate/not of an already-foldable
// operand folds too: `-5` and `!true` are as constant as a bare literal.
func fold(n bound.Node) (*symbols.ConstValue, error) {
	switch v := n.(type) {
	case *bound.Value:
		return &symbols.ConstValue{Type: v.Type(), Number: v.Number, String: v.String, Bool: v.Bool}, nil

	case *bound.FunctionCall:
		if v.Func.Kind != symbols.FuncInstruction {
			return nil, fmt.Errorf("%q is not a constant expression", v.Func.Name)
		}
		switch v.Func.Name {
		case "negate":
			operand, err := fold(v.Args[0])
			if err != nil {
				return nil, err
			}
			return &symbols.ConstValue{Type: operand.Type, Number: -operand.Number}, nil
		case "not":
			operand, err := fold(v.Args[0])
			if err != nil {
				return nil, err
			}
			return &symbols.ConstValue{Type: operand.Type, Bool: !operand.Bool}, nil
		case "add", "subtract", "multiply", "divide":
			lhs, err := fold(v.Args[0])
			if err != nil {
				return nil, err
			}
			rhs, err := fold(v.Args[1])
			if err != nil {
				return nil, err
			}
			return foldArith(v.Func.Name, lhs, rhs)
		default:
			return nil, fmt.Errorf("%q is not a foldable operator", v.Func.Name)
		}

	default:
		return nil, fmt.Errorf("expression is not constant-foldable")
	}
}

func foldArith(op string, lhs, rhs *symbols.ConstValue) (*symbols.ConstValue, error) {
	if op == "add" && lhs.Type.Kind == symbols.TypeBase && lhs.Type.Base == symbols.BaseString {
		return &symbols.ConstValue{Type: lhs.Type, String: lhs.String + rhs.String}, nil
	}
	if lhs.Type.Kind != symbols.TypeBase || lhs.Type.Base != symbols.BaseNumber {
		return nil, fmt.Errorf("constant folding: %q requires Number or String operands", op)
	}
	var result float64
	switch op {
	case "add":
		result = lhs.Number + rhs.Number
	case "subtract":
		result = lhs.Number - rhs.Number
	case "multiply":
		result = lhs.Number * rhs.Number
	case "divide":
		if rhs.Number == 0 {
			return nil, fmt.Errorf("constant folding: division by zero")
		}
		result = lhs.Number / rhs.Number
	}
	return &symbols.ConstValue{Type: lhs.Type, Number: result}, nil
}
