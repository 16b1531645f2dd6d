package expr

import (
	"errors"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(v float64) Node { return &NumberNode{Value: v} }

func bin(left Node, op Op, right Node) Node {
	return &BinaryNode{Left: left, Op: op, Right: right}
}

func unary(op Op, operand Node) Node { return &UnaryNode{Op: op, Operand: operand} }

func TestParseTree(t *testing.T) {
	tests := []struct {
		input string
		want  Node
	}{
		{"1", num(1)},
		{"1 + 2 * 3", bin(num(1), OpAdd, bin(num(2), OpMul, num(3)))},
		{"(1 + 2) * 3", bin(bin(num(1), OpAdd, num(2)), OpMul, num(3))},
		{"1 - 2 - 3", bin(bin(num(1), OpSub, num(2)), OpSub, num(3))},
		{"8 / 4 * 2", bin(bin(num(8), OpDiv, num(4)), OpMul, num(2))},
		{"-1", unary(OpSub, num(1))},
		{"+1", unary(OpAdd, num(1))},
		{"!0", unary(OpNot, num(0))},
		{"-(1 + 2)", unary(OpSub, bin(num(1), OpAdd, num(2)))},
		{"1 < 2 == 1", bin(bin(num(1), OpLt, num(2)), OpEq, num(1))},
		{"1 + 1 >= 2", bin(bin(num(1), OpAdd, num(1)), OpGte, num(2))},
		{"1 || 2 && 3 == 4", bin(num(1), OpOr, bin(num(2), OpAnd, bin(num(3), OpEq, num(4))))},
		{"1 && 2 || 3", bin(bin(num(1), OpAnd, num(2)), OpOr, num(3))},
		{"((((7))))", num(7)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExpression(tt.input)
			require.NoError(t, err)
			if !assert.Equal(t, tt.want, got) {
				for _, d := range pretty.Diff(tt.want, got) {
					t.Log(d)
				}
			}
		})
	}
}

func TestParseFromTokens(t *testing.T) {
	tokens := []Token{
		{Type: TokenNumber, Value: "1", Num: 1},
		{Type: TokenPlus, Value: "+"},
		{Type: TokenNumber, Value: "2", Num: 2},
		{Type: TokenStar, Value: "*"},
		{Type: TokenNumber, Value: "3", Num: 3},
	}

	got, err := Parse(tokens)
	require.NoError(t, err)
	assert.Equal(t, bin(num(1), OpAdd, bin(num(2), OpMul, num(3))), got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		kind    ParseErrorKind
		tokType TokenType
		pos     int
	}{
		{"(1 + 2", UnmatchedParen, TokenEOF, 6},
		{"(1 + 2 3", UnmatchedParen, TokenNumber, 7},
		{"1 +", UnexpectedToken, TokenEOF, 3},
		{"", UnexpectedToken, TokenEOF, 0},
		{")", UnexpectedToken, TokenRParen, 0},
		{"--1", UnexpectedToken, TokenMinus, 1},
		{"!!1", UnexpectedToken, TokenNot, 1},
		{"1 && || 2", UnexpectedToken, TokenOr, 5},
		{"1 2", TrailingTokens, TokenNumber, 2},
		{"(1) (2)", TrailingTokens, TokenLParen, 4},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := ParseExpression(tt.input)
			assert.Nil(t, node)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected *ParseError, got %T: %v", err, err)
			assert.Equal(t, tt.kind, parseErr.Kind)
			assert.Equal(t, tt.tokType, parseErr.Token.Type)
			assert.Equal(t, tt.pos, parseErr.Token.Pos)
		})
	}
}

func TestParseErrorMessages(t *testing.T) {
	_, err := ParseExpression("(1 + 2")
	assert.EqualError(t, err, "expected ')', got end of input at position 6")

	_, err = ParseExpression("1 2")
	assert.EqualError(t, err, `unexpected trailing token "2" at position 2`)

	_, err = ParseExpression("1 * )")
	assert.EqualError(t, err, `unexpected token ")" at position 4`)
}

func TestParseTooDeep(t *testing.T) {
	deep := strings.Repeat("(", 200) + "1" + strings.Repeat(")", 200)
	_, err := ParseExpression(deep)
	require.ErrorIs(t, err, ErrTooDeep)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, DefaultMaxDepth, parseErr.Limit)

	_, err = ParseExpression("((1))", WithMaxDepth(3))
	assert.NoError(t, err)

	_, err = ParseExpression("(((1)))", WithMaxDepth(3))
	assert.ErrorIs(t, err, ErrTooDeep)

	// A wide, shallow expression is not limited by depth.
	wide := strings.Repeat("(1) + ", 300) + "1"
	_, err = ParseExpression(wide)
	assert.NoError(t, err)
}

func TestParseTooLong(t *testing.T) {
	_, err := ParseExpression("1 + 2 + 3", WithMaxLength(5))
	require.ErrorIs(t, err, ErrTooLong)
	assert.EqualError(t, err, "expression exceeds maximum length of 5 characters")

	_, err = ParseExpression("1 + 2", WithMaxLength(5))
	assert.NoError(t, err)

	_, err = ParseExpression(strings.Repeat("1+", DefaultMaxLength) + "1")
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestParseTrace(t *testing.T) {
	type call struct {
		rule  string
		depth int
	}
	var calls []call
	_, err := ParseExpression("7", WithTrace(func(rule string, depth int) {
		calls = append(calls, call{rule, depth})
	}))
	require.NoError(t, err)

	assert.Equal(t, []call{
		{"expression", 0},
		{"or", 1},
		{"and", 2},
		{"comparison", 3},
		{"addition", 4},
		{"multiplication", 5},
		{"unary", 6},
		{"primary", 7},
	}, calls)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{num(1), "1"},
		{num(2.5), "2.5"},
		{num(-3), "(-3)"},
		{num(1e21), "1000000000000000000000"},
		{unary(OpSub, num(1)), "-1"},
		{unary(OpSub, num(-1)), "-(-1)"},
		{unary(OpSub, unary(OpNot, num(0))), "-(!0)"},
		{unary(OpNot, bin(num(1), OpLt, num(2))), "!(1 < 2)"},
		{bin(num(1), OpAdd, bin(num(2), OpMul, num(3))), "1 + 2 * 3"},
		{bin(bin(num(1), OpAdd, num(2)), OpMul, num(3)), "(1 + 2) * 3"},
		{bin(bin(num(1), OpSub, num(2)), OpSub, num(3)), "1 - 2 - 3"},
		{bin(num(1), OpSub, bin(num(2), OpSub, num(3))), "1 - (2 - 3)"},
		{bin(bin(num(3), OpGt, num(2)), OpGt, num(1)), "3 > 2 > 1"},
		{bin(num(1), OpEq, bin(num(2), OpNeq, num(3))), "1 == (2 != 3)"},
		{bin(num(2), OpMul, unary(OpSub, num(3))), "2 * -3"},
		{bin(num(-2), OpSub, num(-3)), "(-2) - (-3)"},
		{bin(bin(num(1), OpOr, num(0)), OpAnd, num(0)), "(1 || 0) && 0"},
		{bin(num(1), OpOr, bin(num(0), OpAnd, num(0))), "1 || 0 && 0"},
		{nil, "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.node))
			if tt.node != nil {
				assert.Equal(t, tt.want, tt.node.String())
			}
		})
	}
}

func TestFormatHandBuiltTreesReparse(t *testing.T) {
	trees := []Node{
		unary(OpSub, num(-1)),
		bin(num(-2), OpSub, num(-3)),
		unary(OpNot, unary(OpSub, num(0))),
		bin(unary(OpAdd, num(1)), OpGte, bin(num(0.5), OpAnd, num(-0.5))),
	}

	for _, tree := range trees {
		text := Format(tree)
		t.Run(text, func(t *testing.T) {
			want, err := Evaluate(tree)
			require.NoError(t, err)

			reparsed, err := ParseExpression(text)
			require.NoError(t, err)
			got, err := Evaluate(reparsed)
			require.NoError(t, err)
			assert.True(t, got.Identical(want), "got %v, want %v", got, want)
		})
	}
}

func TestCheckLength(t *testing.T) {
	assert.NoError(t, CheckLength("1 + 2", WithMaxLength(5)))
	assert.ErrorIs(t, CheckLength("1 + 2 ", WithMaxLength(5)), ErrTooLong)
	// Length counts characters, not bytes.
	assert.NoError(t, CheckLength("€€€", WithMaxLength(3)))
	assert.NoError(t, CheckLength(strings.Repeat("1", DefaultMaxLength)))
}
