// Package types defines the runtime values produced by the calculator.
// A Value is either a number (float64) or a bool; the coercion rules that
// let the two kinds meet in one expression live in coerce.go.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType represents the type of a runtime value.
type ValueType int

const (
	TypeNumber ValueType = iota // float64
	TypeBool                    // bool
)

// String returns the type name used in messages and API payloads.
func (t ValueType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged union of Number(float64) and Bool(bool).
// The zero Value is Number(0).
type Value struct {
	typ     ValueType
	numVal  float64
	boolVal bool
}

// NewNumber creates a numeric value.
func NewNumber(v float64) Value {
	return Value{typ: TypeNumber, numVal: v}
}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{typ: TypeBool, boolVal: v}
}

// Type returns the value's type.
func (v Value) Type() ValueType {
	return v.typ
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.typ == TypeNumber }

// IsBool reports whether v holds a bool.
func (v Value) IsBool() bool { return v.typ == TypeBool }

// AsNumber returns the numeric payload. Panics if not a number; use
// ToNumber for the coercing conversion.
func (v Value) AsNumber() float64 {
	if v.typ != TypeNumber {
		panic(fmt.Sprintf("AsNumber called on %s value", v.typ))
	}
	return v.numVal
}

// AsBool returns the boolean payload. Panics if not a bool.
func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.typ))
	}
	return v.boolVal
}

// Identical reports whether a and b have the same type and payload.
// Unlike Equal it never coerces, so Number(1) and Bool(true) differ.
func (v Value) Identical(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	if v.typ == TypeBool {
		return v.boolVal == other.boolVal
	}
	if math.IsNaN(v.numVal) && math.IsNaN(other.numVal) {
		return true
	}
	return v.numVal == other.numVal
}

// String renders numbers as plain decimals and bools as true/false.
func (v Value) String() string {
	if v.typ == TypeBool {
		return strconv.FormatBool(v.boolVal)
	}
	return FormatNumber(v.numVal)
}

// FormatNumber renders n as the shortest decimal that parses back to n,
// without an exponent. Non-finite values render as inf, -inf and NaN.
func FormatNumber(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case math.IsNaN(n):
		return "NaN"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// MarshalJSON encodes numbers as JSON numbers and bools as JSON booleans.
// Non-finite numbers have no JSON form and are encoded as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.typ == TypeBool {
		return json.Marshal(v.boolVal)
	}
	if math.IsInf(v.numVal, 0) || math.IsNaN(v.numVal) {
		return json.Marshal(FormatNumber(v.numVal))
	}
	return json.Marshal(v.numVal)
}

// FromGo converts a decoded YAML/JSON scalar into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case bool:
		return NewBool(val), nil
	case int:
		return NewNumber(float64(val)), nil
	case int64:
		return NewNumber(float64(val)), nil
	case uint64:
		return NewNumber(float64(val)), nil
	case float64:
		return NewNumber(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return NewNumber(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// ToGoValue converts a Value to a plain Go value suitable for encoding.
func (v Value) ToGoValue() any {
	if v.typ == TypeBool {
		return v.boolVal
	}
	return v.numVal
}
