package vm

import "strconv"

// formatNumber renders n the way toString(Number) and string interpolation
// do: strconv's shortest round-trip 'f' representation already omits the
// decimal point for whole numbers (100 -> "100", not "100.0"), which is
// exactly the integral-formatting behavior SPEC_FULL §11 calls for.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func formatBoolean(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// FormatValue renders a Value for the `-d` stack dump. It never mutates
// refcounts; it only reads the cell's payload for display.
func FormatValue(v Value) string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Number)
	case KindBoolean:
		return formatBoolean(v.Bool)
	case KindString:
		return strconv.Quote(string(v.Cell.Bytes))
	case KindObject:
		s := "$["
		for i, f := range v.Cell.Fields {
			if i > 0 {
				s += ", "
			}
			s += FormatValue(f)
		}
		return s + "]"
	case KindArray:
		s := "["
		for i, e := range v.Cell.Elems {
			if i > 0 {
				s += ", "
			}
			s += FormatValue(e)
		}
		return s + "]"
	default:
		return "<?>"
	}
}
