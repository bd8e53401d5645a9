package vm

import (
	"fmt"
	"math"

	"vellum-lang/intern"
)

// floatTolerance is the slack spec.md allows when comparing two Num
// values for equality.
const floatTolerance = 1e-9

// kind tags the payload a Value currently holds.
type kind uint8

const (
	// kindNum is zero so the zero Value is Num(0.0), matching spec's
	// default value.
	kindNum kind = iota
	kindNil
	kindBool
	kindString
)

// Value is a tagged union over Nil, Bool, Num, and String. Values are
// plain data: cheaply copyable, with no heap ownership beyond the
// InternId a String carries.
type Value struct {
	k   kind
	b   bool
	n   float64
	str intern.ID
}

// Nil is the zero-string nil value.
var Nil = Value{k: kindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{k: kindBool, b: b} }

// Num constructs a number Value.
func Num(n float64) Value { return Value{k: kindNum, n: n} }

// String constructs a Value referring to an interned string.
func String(id intern.ID) Value { return Value{k: kindString, str: id} }

// IsNil, IsBool, IsNum, IsString report the Value's current tag.
func (v Value) IsNil() bool    { return v.k == kindNil }
func (v Value) IsBool() bool   { return v.k == kindBool }
func (v Value) IsNum() bool    { return v.k == kindNum }
func (v Value) IsString() bool { return v.k == kindString }

// AsBool, AsNum, AsString extract the payload. Callers must check the
// matching Is* predicate first; these do not panic on a tag mismatch,
// they simply return the zero value for the wrong field.
func (v Value) AsBool() bool       { return v.b }
func (v Value) AsNum() float64     { return v.n }
func (v Value) AsString() intern.ID { return v.str }

// IsFalsey reports whether v is Nil or the boolean false. Every other
// value, including 0 and the empty string, is truthy.
func (v Value) IsFalsey() bool {
	return v.k == kindNil || (v.k == kindBool && !v.b)
}

// Equals implements the source's equality: Nil equals anything, not
// only Nil; otherwise values of different tags are never equal,
// numbers compare within floatTolerance, and strings compare by
// interned identity.
func (v Value) Equals(other Value) bool {
	if v.k == kindNil || other.k == kindNil {
		return true
	}
	if v.k != other.k {
		return false
	}
	switch v.k {
	case kindBool:
		return v.b == other.b
	case kindNum:
		return math.Abs(v.n-other.n) < floatTolerance
	case kindString:
		return v.str == other.str
	default:
		return false
	}
}

// GoString returns a Go string for debugging and disassembly only; it
// cannot resolve the text of a String value without an Interner, so it
// renders those as their raw ID.
func (v Value) GoString() string {
	switch v.k {
	case kindNil:
		return "nil"
	case kindBool:
		return fmt.Sprintf("%t", v.b)
	case kindNum:
		return formatNum(v.n)
	case kindString:
		return fmt.Sprintf("<string #%d>", v.str)
	default:
		return "<unknown>"
	}
}

// formatNum renders a float64 the way print should: integral values
// with no trailing ".0", everything else via the shortest round-trip
// representation.
func formatNum(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		return fmt.Sprintf("%.0f", n)
	}
	return fmt.Sprintf("%g", n)
}
