package expr

import "unicode/utf8"

const (
	// DefaultMaxDepth is the default limit on parenthesis nesting.
	DefaultMaxDepth = 128

	// DefaultMaxLength is the default limit, in characters, on the text
	// accepted by ParseExpression.
	DefaultMaxLength = 4096
)

// TraceFunc observes the parser. It is called on entry to every grammar
// rule with the rule name and the current call depth.
type TraceFunc func(rule string, depth int)

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth sets the maximum parenthesis nesting depth. Values < 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// WithMaxLength sets the maximum input length for ParseExpression.
// Values < 1 are ignored.
func WithMaxLength(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// WithTrace installs a rule-entry observer.
func WithTrace(fn TraceFunc) Option {
	return func(p *Parser) {
		p.trace = fn
	}
}

// Parser is a recursive descent parser over a token slice.
type Parser struct {
	tokens []Token
	pos    int

	depth    int // parenthesis nesting
	level    int // rule call depth, reported to trace
	maxDepth int

	maxLength int
	trace     TraceFunc
}

// NewParser creates a parser over tokens.
func NewParser(tokens []Token, opts ...Option) *Parser {
	p := &Parser{
		tokens:    tokens,
		maxDepth:  DefaultMaxDepth,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses tokens into a single expression. All tokens must be consumed.
func Parse(tokens []Token, opts ...Option) (Node, error) {
	return NewParser(tokens, opts...).Parse()
}

// ParseExpression tokenizes and parses input.
func ParseExpression(input string, opts ...Option) (Node, error) {
	p := NewParser(nil, opts...)
	if err := p.checkLength(input); err != nil {
		return nil, err
	}

	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p.tokens = tokens
	return p.Parse()
}

// CheckLength reports a TooLong ParseError if input exceeds the maximum
// length configured by opts. ParseExpression runs it before lexing; callers
// that drive Tokenize and Parse themselves call it first.
func CheckLength(input string, opts ...Option) error {
	return NewParser(nil, opts...).checkLength(input)
}

func (p *Parser) checkLength(input string) error {
	if utf8.RuneCountInString(input) > p.maxLength {
		return &ParseError{Kind: TooLong, Token: Token{Type: TokenEOF}, Limit: p.maxLength}
	}
	return nil
}

// Parse runs the parser from its current position.
func (p *Parser) Parse() (Node, error) {
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenEOF {
		return nil, &ParseError{Kind: TrailingTokens, Token: p.current()}
	}

	return node, nil
}

// current returns the current token, or an EOF token past the end.
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		pos := 0
		if n := len(p.tokens); n > 0 {
			last := p.tokens[n-1]
			pos = last.Pos + len(last.Value)
		}
		return Token{Type: TokenEOF, Pos: pos}
	}
	return p.tokens[p.pos]
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) enter(rule string) {
	if p.trace != nil {
		p.trace(rule, p.level)
	}
	p.level++
}

func (p *Parser) leave() {
	p.level--
}

// parseExpression is the entry point for a full expression, at the top
// level and inside parentheses. Precedence (low to high):
//
//	||
//	&&
//	==, !=, >, >=, <, <=
//	+, -
//	*, /
//	unary +, -, !
//	number, parenthesised expression
func (p *Parser) parseExpression() (Node, error) {
	p.enter("expression")
	defer p.leave()

	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, &ParseError{Kind: TooDeep, Token: p.current(), Limit: p.maxDepth}
	}

	return p.parseOr()
}

// parseBinary parses one left-associative tier: next, then any number of
// (operator next) pairs folded to the left.
func (p *Parser) parseBinary(rule string, next func() (Node, error), ops ...TokenType) (Node, error) {
	p.enter(rule)
	defer p.leave()

	left, err := next()
	if err != nil {
		return nil, err
	}

	for p.current().Type.IsOneOf(ops...) {
		op := tokenOps[p.advance().Type]
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseOr() (Node, error) {
	return p.parseBinary("or", p.parseAnd, TokenOr)
}

func (p *Parser) parseAnd() (Node, error) {
	return p.parseBinary("and", p.parseComparison, TokenAnd)
}

func (p *Parser) parseComparison() (Node, error) {
	return p.parseBinary("comparison", p.parseAddition,
		TokenEq, TokenNeq, TokenGt, TokenGte, TokenLt, TokenLte)
}

func (p *Parser) parseAddition() (Node, error) {
	return p.parseBinary("addition", p.parseMultiplication, TokenPlus, TokenMinus)
}

func (p *Parser) parseMultiplication() (Node, error) {
	return p.parseBinary("multiplication", p.parseUnary, TokenStar, TokenSlash)
}

// parseUnary handles a single prefix operator applied to a primary.
func (p *Parser) parseUnary() (Node, error) {
	p.enter("unary")
	defer p.leave()

	if !p.current().Type.IsOneOf(TokenPlus, TokenMinus, TokenNot) {
		return p.parsePrimary()
	}

	op := tokenOps[p.advance().Type]
	operand, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &UnaryNode{Op: op, Operand: operand}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	p.enter("primary")
	defer p.leave()

	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		return &NumberNode{Value: tok.Num}, nil
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRParen {
			return nil, &ParseError{Kind: UnmatchedParen, Token: p.current()}
		}
		p.advance()
		return expr, nil
	default:
		return nil, &ParseError{Kind: UnexpectedToken, Token: tok}
	}
}
