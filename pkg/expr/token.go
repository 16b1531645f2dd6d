// Package expr implements the calculator's expression language: a lexer,
// a recursive-descent parser producing an AST, and a tree-walking evaluator.
// It handles arithmetic, comparison and logical operators over numbers and
// booleans.
package expr

import (
	"fmt"
	"slices"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenNumber TokenType = iota // numeric literal

	// Arithmetic
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /

	// Grouping
	TokenLParen // (
	TokenRParen // )

	// Comparison
	TokenEq  // ==
	TokenNeq // !=
	TokenGt  // >
	TokenGte // >=
	TokenLt  // <
	TokenLte // <=

	// Logical
	TokenAnd // &&
	TokenOr  // ||
	TokenNot // !

	// Special: returned by the parser once input is exhausted, never by the lexer.
	TokenEOF
)

// Token represents a single lexical token.
type Token struct {
	Type  TokenType
	Value string  // raw source text
	Num   float64 // parsed value (for TokenNumber)
	Pos   int     // byte offset in source
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenStar:
		return "STAR"
	case TokenSlash:
		return "SLASH"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenEq:
		return "EQ"
	case TokenNeq:
		return "NEQ"
	case TokenGt:
		return "GT"
	case TokenGte:
		return "GTE"
	case TokenLt:
		return "LT"
	case TokenLte:
		return "LTE"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// IsOneOf reports whether t is any of the given types.
func (t TokenType) IsOneOf(types ...TokenType) bool {
	return slices.Contains(types, t)
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Value, t.Pos)
}
