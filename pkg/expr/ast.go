package expr

import (
	"math"
	"strings"

	"github.com/lemonberrylabs/calc/pkg/types"
)

// Op is the operator vocabulary shared by unary and binary nodes. Which
// operators are legal in which position is decided by the evaluator.
type Op int

const (
	OpAdd Op = iota // +
	OpSub           // -
	OpMul           // *
	OpDiv           // /
	OpEq            // ==
	OpNeq           // !=
	OpGt            // >
	OpGte           // >=
	OpLt            // <
	OpLte           // <=
	OpAnd           // &&
	OpOr            // ||
	OpNot           // !
)

var opSymbols = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpEq:  "==",
	OpNeq: "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpAnd: "&&",
	OpOr:  "||",
	OpNot: "!",
}

// String returns the operator's source symbol.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opSymbols) {
		return "?"
	}
	return opSymbols[o]
}

// tokenOps maps operator tokens to the Op they denote.
var tokenOps = map[TokenType]Op{
	TokenPlus:  OpAdd,
	TokenMinus: OpSub,
	TokenStar:  OpMul,
	TokenSlash: OpDiv,
	TokenEq:    OpEq,
	TokenNeq:   OpNeq,
	TokenGt:    OpGt,
	TokenGte:   OpGte,
	TokenLt:    OpLt,
	TokenLte:   OpLte,
	TokenAnd:   OpAnd,
	TokenOr:    OpOr,
	TokenNot:   OpNot,
}

// Node is the interface for all expression AST nodes. Nodes are never
// mutated after construction and never shared between trees.
type Node interface {
	nodeType() string
	String() string
}

// NumberNode represents a numeric literal.
type NumberNode struct {
	Value float64
}

func (n *NumberNode) nodeType() string { return "Number" }

// UnaryNode represents a prefix operation (e.g. -x, !x).
type UnaryNode struct {
	Op      Op
	Operand Node
}

func (n *UnaryNode) nodeType() string { return "Unary" }

// BinaryNode represents a binary operation (e.g. a + b, x == y, a && b).
type BinaryNode struct {
	Left  Node
	Op    Op
	Right Node
}

func (n *BinaryNode) nodeType() string { return "Binary" }

// Binding strength of each grammar tier, loosest first.
const (
	precOr = iota + 1
	precAnd
	precComparison
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

// precedence returns the tier a binary operator is parsed at, or 0 for
// operators that never appear between two operands.
func (o Op) precedence() int {
	switch o {
	case OpOr:
		return precOr
	case OpAnd:
		return precAnd
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return precComparison
	case OpAdd, OpSub:
		return precAdditive
	case OpMul, OpDiv:
		return precMultiplicative
	}
	return 0
}

func precedence(node Node) int {
	switch n := node.(type) {
	case *BinaryNode:
		return n.Op.precedence()
	case *UnaryNode:
		return precUnary
	}
	return precPrimary
}

// Format renders node as infix text that parses back to the same tree.
// Parentheses appear only where precedence or left associativity needs
// them, so chains of one tier stay flat and the text never nests deeper
// than the source the tree was parsed from.
func Format(node Node) string {
	var sb strings.Builder
	format(&sb, node)
	return sb.String()
}

func format(sb *strings.Builder, node Node) {
	switch n := node.(type) {
	case *NumberNode:
		s := types.FormatNumber(n.Value)
		if math.Signbit(n.Value) {
			// A bare "-3" would re-parse as unary minus over 3.
			sb.WriteString("(" + s + ")")
			return
		}
		sb.WriteString(s)
	case *UnaryNode:
		sb.WriteString(n.Op.String())
		formatOperand(sb, n.Operand, precedence(n.Operand) < precPrimary)
	case *BinaryNode:
		prec := n.Op.precedence()
		formatOperand(sb, n.Left, precedence(n.Left) < prec)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		formatOperand(sb, n.Right, precedence(n.Right) <= prec)
	case nil:
		sb.WriteString("<nil>")
	default:
		sb.WriteString("<" + node.nodeType() + ">")
	}
}

func formatOperand(sb *strings.Builder, node Node, group bool) {
	if !group {
		format(sb, node)
		return
	}
	sb.WriteByte('(')
	format(sb, node)
	sb.WriteByte(')')
}

func (n *NumberNode) String() string { return Format(n) }
func (n *UnaryNode) String() string  { return Format(n) }
func (n *BinaryNode) String() string { return Format(n) }
