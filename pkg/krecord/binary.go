package krecord

import "math"

// DivByZeroMessage is the string payload placed in the result record
// when a division or modulo operation hits a zero divisor. Per the
// spec, division by zero never fails — it yields this sentinel text.
const DivByZeroMessage = "Division by Zero"

func isStringy(t Type) bool { return t.IsString() }

// Add implements `+`: numeric addition, or string concatenation when
// either operand is string-typed.
func Add(a, b *Record) *Record {
	if isStringy(a.typ) || isStringy(b.typ) {
		return NewString(a.ToString("") + b.ToString(""))
	}
	if a.typ == Double || b.typ == Double {
		return NewDouble(a.Float() + b.Float())
	}
	return NewInteger(a.ToInteger() + b.ToInteger())
}

// Sub implements `-`.
func Sub(a, b *Record) *Record {
	if isStringy(a.typ) || isStringy(b.typ) {
		return NewDouble(a.Float() - b.Float())
	}
	if a.typ == Double || b.typ == Double {
		return NewDouble(a.Float() - b.Float())
	}
	return NewInteger(a.ToInteger() - b.ToInteger())
}

// Mul implements `*`.
func Mul(a, b *Record) *Record {
	if isStringy(a.typ) || isStringy(b.typ) {
		return NewDouble(a.Float() * b.Float())
	}
	if a.typ == Double || b.typ == Double {
		return NewDouble(a.Float() * b.Float())
	}
	return NewInteger(a.ToInteger() * b.ToInteger())
}

// Div implements `/`. A zero divisor yields the DivByZeroMessage
// string instead of failing or producing Inf/NaN.
func Div(a, b *Record) *Record {
	divisor := b.Float()
	if divisor == 0 {
		return NewString(DivByZeroMessage)
	}
	if !isStringy(a.typ) && !isStringy(b.typ) && a.typ != Double && b.typ != Double {
		ai, bi := a.ToInteger(), b.ToInteger()
		if bi != 0 && ai%bi == 0 {
			return NewInteger(ai / bi)
		}
	}
	return NewDouble(a.Float() / divisor)
}

// Mod implements `%`. A zero divisor yields the DivByZeroMessage string.
func Mod(a, b *Record) *Record {
	divisor := b.Float()
	if divisor == 0 {
		return NewString(DivByZeroMessage)
	}
	if !isStringy(a.typ) && !isStringy(b.typ) && a.typ != Double && b.typ != Double {
		return NewInteger(a.ToInteger() % b.ToInteger())
	}
	return NewDouble(math.Mod(a.Float(), divisor))
}

// Neg implements unary `-`.
func Neg(a *Record) *Record {
	switch a.typ {
	case Double:
		return NewDouble(-a.scalarDouble)
	case Integer:
		return NewInteger(-a.scalarInt)
	default:
		return NewDouble(-a.Float())
	}
}

// Compare returns -1, 0, or 1 per the three-way comparison of a and b,
// following the promotion rules of §3.1: if either side is string-
// typed, compare lexically on the string rendering; else compare as
// doubles (integer↔double cross-compares promote to double).
func Compare(a, b *Record) int {
	if isStringy(a.typ) || isStringy(b.typ) {
		as, bs := a.ToString(""), b.ToString("")
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, bf := a.Float(), b.Float()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func Equal(a, b *Record) bool          { return Compare(a, b) == 0 }
func NotEqual(a, b *Record) bool       { return Compare(a, b) != 0 }
func Less(a, b *Record) bool           { return Compare(a, b) < 0 }
func LessOrEqual(a, b *Record) bool    { return Compare(a, b) <= 0 }
func Greater(a, b *Record) bool        { return Compare(a, b) > 0 }
func GreaterOrEqual(a, b *Record) bool { return Compare(a, b) >= 0 }
