package expr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every *LexError, *ParseError and *EvalError unwraps to
// exactly one of these, so callers can match with errors.Is.
var (
	ErrUnexpectedChar  = errors.New("unexpected character")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidOperator = errors.New("invalid operator")

	ErrUnexpectedToken = errors.New("unexpected token")
	ErrUnmatchedParen  = errors.New("unmatched parenthesis")
	ErrTrailingTokens  = errors.New("trailing tokens")
	ErrTooDeep         = errors.New("expression nested too deeply")
	ErrTooLong         = errors.New("expression too long")

	ErrUnsupportedUnaryOp  = errors.New("unsupported unary operator")
	ErrUnsupportedBinaryOp = errors.New("unsupported binary operator")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrUnsupportedNode     = errors.New("unsupported expression node")
)

// LexErrorKind classifies lexer failures.
type LexErrorKind int

const (
	UnexpectedChar LexErrorKind = iota
	InvalidNumber
	InvalidOperator
)

func (k LexErrorKind) String() string {
	switch k {
	case UnexpectedChar:
		return "UnexpectedChar"
	case InvalidNumber:
		return "InvalidNumber"
	case InvalidOperator:
		return "InvalidOperator"
	default:
		return "Unknown"
	}
}

// LexError is returned by Tokenize.
type LexError struct {
	Kind LexErrorKind
	Pos  int    // byte offset of the offending text
	Char rune   // offending character (UnexpectedChar, InvalidOperator)
	Text string // offending literal (InvalidNumber)
}

func (e *LexError) Error() string {
	switch e.Kind {
	case InvalidNumber:
		return fmt.Sprintf("invalid number %q at position %d", e.Text, e.Pos)
	case InvalidOperator:
		return fmt.Sprintf("invalid operator %q at position %d", e.Text, e.Pos)
	default:
		return fmt.Sprintf("unexpected character %q at position %d", e.Char, e.Pos)
	}
}

func (e *LexError) Unwrap() error {
	switch e.Kind {
	case InvalidNumber:
		return ErrInvalidNumber
	case InvalidOperator:
		return ErrInvalidOperator
	default:
		return ErrUnexpectedChar
	}
}

// ParseErrorKind classifies parser failures.
type ParseErrorKind int

const (
	UnexpectedToken ParseErrorKind = iota
	UnmatchedParen
	TrailingTokens
	TooDeep
	TooLong
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case UnmatchedParen:
		return "UnmatchedParen"
	case TrailingTokens:
		return "TrailingTokens"
	case TooDeep:
		return "TooDeep"
	case TooLong:
		return "TooLong"
	default:
		return "Unknown"
	}
}

// ParseError is returned by Parse and ParseExpression.
type ParseError struct {
	Kind  ParseErrorKind
	Token Token // token at which parsing stopped
	Limit int   // exceeded limit (TooDeep, TooLong)
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case UnmatchedParen:
		return fmt.Sprintf("expected ')', got %s at position %d", describe(e.Token), e.Token.Pos)
	case TrailingTokens:
		return fmt.Sprintf("unexpected trailing %s at position %d", describe(e.Token), e.Token.Pos)
	case TooDeep:
		return fmt.Sprintf("expression exceeds maximum nesting depth of %d at position %d", e.Limit, e.Token.Pos)
	case TooLong:
		return fmt.Sprintf("expression exceeds maximum length of %d characters", e.Limit)
	default:
		return fmt.Sprintf("unexpected %s at position %d", describe(e.Token), e.Token.Pos)
	}
}

func (e *ParseError) Unwrap() error {
	switch e.Kind {
	case UnmatchedParen:
		return ErrUnmatchedParen
	case TrailingTokens:
		return ErrTrailingTokens
	case TooDeep:
		return ErrTooDeep
	case TooLong:
		return ErrTooLong
	default:
		return ErrUnexpectedToken
	}
}

func describe(t Token) string {
	if t.Type == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("token %q", t.Value)
}

// EvalErrorKind classifies evaluation failures.
type EvalErrorKind int

const (
	UnsupportedUnaryOp EvalErrorKind = iota
	UnsupportedBinaryOp
	DivisionByZero
	UnsupportedNode
)

func (k EvalErrorKind) String() string {
	switch k {
	case UnsupportedUnaryOp:
		return "UnsupportedUnaryOp"
	case UnsupportedBinaryOp:
		return "UnsupportedBinaryOp"
	case DivisionByZero:
		return "DivisionByZero"
	case UnsupportedNode:
		return "UnsupportedNode"
	default:
		return "Unknown"
	}
}

// EvalError is returned by Evaluate.
type EvalError struct {
	Kind EvalErrorKind
	Op   Op     // offending operator (UnsupportedUnaryOp, UnsupportedBinaryOp)
	Node string // offending node type (UnsupportedNode)
}

func (e *EvalError) Error() string {
	switch e.Kind {
	case UnsupportedUnaryOp:
		return fmt.Sprintf("unsupported unary operator: %s", e.Op)
	case UnsupportedBinaryOp:
		return fmt.Sprintf("unsupported binary operator: %s", e.Op)
	case UnsupportedNode:
		return fmt.Sprintf("unsupported expression node type: %s", e.Node)
	default:
		return "division by zero"
	}
}

func (e *EvalError) Unwrap() error {
	switch e.Kind {
	case UnsupportedUnaryOp:
		return ErrUnsupportedUnaryOp
	case UnsupportedBinaryOp:
		return ErrUnsupportedBinaryOp
	case UnsupportedNode:
		return ErrUnsupportedNode
	default:
		return ErrDivisionByZero
	}
}

// Stage names the pipeline stage that produced err: "lex", "parse" or
// "eval". It returns "" for errors not produced by this package.
func Stage(err error) string {
	var (
		lexErr   *LexError
		parseErr *ParseError
		evalErr  *EvalError
	)
	switch {
	case errors.As(err, &lexErr):
		return "lex"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &evalErr):
		return "eval"
	default:
		return ""
	}
}

// KindOf returns the kind name of err, e.g. "DivisionByZero", or "" for
// errors not produced by this package.
func KindOf(err error) string {
	var (
		lexErr   *LexError
		parseErr *ParseError
		evalErr  *EvalError
	)
	switch {
	case errors.As(err, &lexErr):
		return lexErr.Kind.String()
	case errors.As(err, &parseErr):
		return parseErr.Kind.String()
	case errors.As(err, &evalErr):
		return evalErr.Kind.String()
	default:
		return ""
	}
}
