package types

// ToNumber coerces v to float64. Bools become 1 or 0.
func ToNumber(v Value) float64 {
	if v.typ == TypeBool {
		if v.boolVal {
			return 1
		}
		return 0
	}
	return v.numVal
}

// Truthy reports the truthiness of v under && and ||.
// A number is truthy only when strictly greater than zero.
func Truthy(v Value) bool {
	if v.typ == TypeBool {
		return v.boolVal
	}
	return v.numVal > 0
}

// IsZero reports whether v is Number(0) or Bool(false), the two divisors
// rejected by Div.
func IsZero(v Value) bool {
	if v.typ == TypeBool {
		return !v.boolVal
	}
	return v.numVal == 0
}

// Add returns a + b after numeric coercion.
func Add(a, b Value) Value { return NewNumber(ToNumber(a) + ToNumber(b)) }

// Sub returns a - b after numeric coercion.
func Sub(a, b Value) Value { return NewNumber(ToNumber(a) - ToNumber(b)) }

// Mul returns a * b after numeric coercion.
func Mul(a, b Value) Value { return NewNumber(ToNumber(a) * ToNumber(b)) }

// Div returns a / b after numeric coercion. The caller must reject a zero
// divisor with IsZero first; Div itself follows IEEE-754.
func Div(a, b Value) Value { return NewNumber(ToNumber(a) / ToNumber(b)) }

// Neg negates a number, or logically negates a bool.
func Neg(v Value) Value {
	if v.typ == TypeBool {
		return NewBool(!v.boolVal)
	}
	return NewNumber(-v.numVal)
}

// Not returns Bool(n == 0) for numbers and Bool(!b) for bools.
func Not(v Value) Value {
	if v.typ == TypeBool {
		return NewBool(!v.boolVal)
	}
	return NewBool(v.numVal == 0)
}

// And combines the truthiness of a and b.
func And(a, b Value) Value { return NewBool(Truthy(a) && Truthy(b)) }

// Or combines the truthiness of a and b.
func Or(a, b Value) Value { return NewBool(Truthy(a) || Truthy(b)) }

// Equal compares a and b across types. Two bools compare as bools; any
// other pair is normalized to float64 first.
func Equal(a, b Value) bool {
	if a.typ == TypeBool && b.typ == TypeBool {
		return a.boolVal == b.boolVal
	}
	return ToNumber(a) == ToNumber(b)
}

// Less reports a < b across types, with false ordered before true.
func Less(a, b Value) bool {
	if a.typ == TypeBool && b.typ == TypeBool {
		return !a.boolVal && b.boolVal
	}
	return ToNumber(a) < ToNumber(b)
}

// LessOrEqual reports a <= b across types. It is not !Less(b, a), so that
// NaN stays unordered.
func LessOrEqual(a, b Value) bool {
	if a.typ == TypeBool && b.typ == TypeBool {
		return !a.boolVal || b.boolVal
	}
	return ToNumber(a) <= ToNumber(b)
}
