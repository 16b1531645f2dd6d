package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	assert.Equal(t, 2.5, ToNumber(NewNumber(2.5)))
	assert.Equal(t, 1.0, ToNumber(NewBool(true)))
	assert.Equal(t, 0.0, ToNumber(NewBool(false)))
	assert.Equal(t, 0.0, ToNumber(Value{}))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{NewNumber(1), true},
		{NewNumber(0.001), true},
		{NewNumber(0), false},
		{NewNumber(-1), false},
		{NewNumber(math.NaN()), false},
		{NewNumber(math.Inf(1)), true},
		{NewBool(true), true},
		{NewBool(false), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.v), "Truthy(%v)", tt.v)
	}
}

func TestNegAndNot(t *testing.T) {
	assert.True(t, Neg(NewNumber(3)).Identical(NewNumber(-3)))
	assert.True(t, Neg(NewBool(true)).Identical(NewBool(false)))
	assert.True(t, math.Signbit(Neg(NewNumber(0)).AsNumber()))

	assert.True(t, Not(NewNumber(0)).Identical(NewBool(true)))
	assert.True(t, Not(NewNumber(-5)).Identical(NewBool(false)))
	assert.True(t, Not(NewBool(false)).Identical(NewBool(true)))
}

func TestArithmeticCoerces(t *testing.T) {
	yes, no := NewBool(true), NewBool(false)

	assert.True(t, Add(yes, yes).Identical(NewNumber(2)))
	assert.True(t, Sub(NewNumber(5), yes).Identical(NewNumber(4)))
	assert.True(t, Mul(NewNumber(7), no).Identical(NewNumber(0)))
	assert.True(t, Div(NewNumber(3), yes).Identical(NewNumber(3)))
	assert.True(t, IsZero(no))
	assert.True(t, IsZero(NewNumber(math.Copysign(0, -1))))
	assert.False(t, IsZero(yes))
	assert.False(t, IsZero(NewNumber(math.NaN())))
}

func TestComparisons(t *testing.T) {
	nan := NewNumber(math.NaN())
	yes, no := NewBool(true), NewBool(false)

	assert.True(t, Equal(yes, NewNumber(1)))
	assert.True(t, Equal(no, NewNumber(0)))
	assert.False(t, Equal(yes, NewNumber(2)))
	assert.True(t, Equal(yes, yes))
	assert.False(t, Equal(yes, no))

	assert.True(t, Less(no, yes))
	assert.False(t, Less(yes, no))
	assert.True(t, LessOrEqual(no, no))
	assert.True(t, Less(NewNumber(0.5), yes))
	assert.True(t, LessOrEqual(NewNumber(1), yes))

	assert.False(t, Equal(nan, nan))
	assert.False(t, Less(nan, NewNumber(1)))
	assert.False(t, Less(NewNumber(1), nan))
	assert.False(t, LessOrEqual(nan, nan))
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewNumber(3), "3"},
		{NewNumber(-2.5), "-2.5"},
		{NewNumber(0.1 + 0.2), "0.30000000000000004"},
		{NewNumber(1e21), "1000000000000000000000"},
		{NewNumber(math.Inf(1)), "inf"},
		{NewNumber(math.Inf(-1)), "-inf"},
		{NewNumber(math.NaN()), "NaN"},
		{NewBool(true), "true"},
		{NewBool(false), "false"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
}

func TestIdentical(t *testing.T) {
	assert.True(t, NewNumber(math.NaN()).Identical(NewNumber(math.NaN())))
	assert.False(t, NewNumber(1).Identical(NewBool(true)))
	assert.False(t, NewBool(false).Identical(NewNumber(0)))
	assert.True(t, NewBool(true).Identical(NewBool(true)))
}

func TestAccessorsPanic(t *testing.T) {
	assert.Panics(t, func() { NewBool(true).AsNumber() })
	assert.Panics(t, func() { NewNumber(1).AsBool() })
	assert.NotPanics(t, func() { NewNumber(1).AsNumber() })
}

func TestValueMarshalJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Value{
		"n":   NewNumber(2.5),
		"b":   NewBool(true),
		"inf": NewNumber(math.Inf(1)),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 2.5, "b": true, "inf": "inf"}`, string(out))
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{true, NewBool(true)},
		{3, NewNumber(3)},
		{int64(-4), NewNumber(-4)},
		{uint64(5), NewNumber(5)},
		{1.5, NewNumber(1.5)},
		{json.Number("2.25"), NewNumber(2.25)},
	}

	for _, tt := range tests {
		got, err := FromGo(tt.in)
		require.NoError(t, err)
		assert.True(t, got.Identical(tt.want), "FromGo(%#v) = %v", tt.in, got)
		assert.Equal(t, tt.want.ToGoValue(), got.ToGoValue())
	}

	_, err := FromGo("seven")
	assert.Error(t, err)
	_, err = FromGo(json.Number("x"))
	assert.Error(t, err)
}
