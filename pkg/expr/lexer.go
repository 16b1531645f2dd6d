package expr

import (
	"strconv"
	"unicode/utf8"
)

// Lexer tokenizes an expression string.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize is shorthand for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize scans the entire input and returns all tokens in source order.
// It stops at the first error and returns no tokens in that case.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			return l.tokens, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}
}

// next returns the token starting at the current position.
func (l *Lexer) next() (Token, error) {
	ch := l.input[l.pos]

	if isDigit(ch) || ch == '.' {
		return l.readNumber()
	}

	switch ch {
	case '+':
		return l.single(TokenPlus), nil
	case '-':
		return l.single(TokenMinus), nil
	case '*':
		return l.single(TokenStar), nil
	case '/':
		return l.single(TokenSlash), nil
	case '(':
		return l.single(TokenLParen), nil
	case ')':
		return l.single(TokenRParen), nil
	case '&':
		return l.pair('&', TokenAnd)
	case '|':
		return l.pair('|', TokenOr)
	case '=':
		return l.pair('=', TokenEq)
	case '!':
		return l.optionalPair('=', TokenNeq, TokenNot), nil
	case '<':
		return l.optionalPair('=', TokenLte, TokenLt), nil
	case '>':
		return l.optionalPair('=', TokenGte, TokenGt), nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, &LexError{Kind: UnexpectedChar, Pos: l.pos, Char: r, Text: string(r)}
}

// single consumes one byte as a token of type tt.
func (l *Lexer) single(tt TokenType) Token {
	tok := Token{Type: tt, Value: l.input[l.pos : l.pos+1], Pos: l.pos}
	l.pos++
	return tok
}

// pair consumes a two-character operator whose second character must be
// second. The current character alone is never valid.
func (l *Lexer) pair(second byte, tt TokenType) (Token, error) {
	if l.peek() != second {
		return Token{}, &LexError{
			Kind: InvalidOperator,
			Pos:  l.pos,
			Char: rune(l.input[l.pos]),
			Text: l.input[l.pos : l.pos+1],
		}
	}
	tok := Token{Type: tt, Value: l.input[l.pos : l.pos+2], Pos: l.pos}
	l.pos += 2
	return tok, nil
}

// optionalPair emits long if the next character is second, short otherwise.
func (l *Lexer) optionalPair(second byte, long, short TokenType) Token {
	if l.peek() == second {
		tok := Token{Type: long, Value: l.input[l.pos : l.pos+2], Pos: l.pos}
		l.pos += 2
		return tok
	}
	return l.single(short)
}

// peek returns the byte after the current one, or 0 at end of input.
func (l *Lexer) peek() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

// readNumber greedily consumes digits and dots, then parses the result.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}

	raw := l.input[start:l.pos]
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, &LexError{Kind: InvalidNumber, Pos: start, Text: raw}
	}
	return Token{Type: TokenNumber, Value: raw, Num: f, Pos: start}, nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
