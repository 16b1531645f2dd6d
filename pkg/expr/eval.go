package expr

import (
	"fmt"

	"github.com/lemonberrylabs/calc/pkg/types"
)

// Evaluate evaluates an expression tree. It never mutates node.
func Evaluate(node Node) (types.Value, error) {
	switch n := node.(type) {
	case *NumberNode:
		return types.NewNumber(n.Value), nil
	case *UnaryNode:
		return evalUnary(n)
	case *BinaryNode:
		return evalBinary(n)
	default:
		return types.Value{}, &EvalError{Kind: UnsupportedNode, Node: fmt.Sprintf("%T", node)}
	}
}

func evalUnary(n *UnaryNode) (types.Value, error) {
	operand, err := Evaluate(n.Operand)
	if err != nil {
		return types.Value{}, err
	}

	switch n.Op {
	case OpAdd:
		return operand, nil
	case OpSub:
		return types.Neg(operand), nil
	case OpNot:
		return types.Not(operand), nil
	default:
		return types.Value{}, &EvalError{Kind: UnsupportedUnaryOp, Op: n.Op}
	}
}

func evalBinary(n *BinaryNode) (types.Value, error) {
	// Both sides are always evaluated, left first; && and || do not
	// short-circuit.
	left, err := Evaluate(n.Left)
	if err != nil {
		return types.Value{}, err
	}
	right, err := Evaluate(n.Right)
	if err != nil {
		return types.Value{}, err
	}

	switch n.Op {
	case OpAdd:
		return types.Add(left, right), nil
	case OpSub:
		return types.Sub(left, right), nil
	case OpMul:
		return types.Mul(left, right), nil
	case OpDiv:
		// Checked on the uncoerced divisor so Bool(false) is rejected too.
		if types.IsZero(right) {
			return types.Value{}, &EvalError{Kind: DivisionByZero, Op: n.Op}
		}
		return types.Div(left, right), nil
	case OpEq:
		return types.NewBool(types.Equal(left, right)), nil
	case OpNeq:
		return types.NewBool(!types.Equal(left, right)), nil
	case OpGt:
		return types.NewBool(types.Less(right, left)), nil
	case OpGte:
		return types.NewBool(types.LessOrEqual(right, left)), nil
	case OpLt:
		return types.NewBool(types.Less(left, right)), nil
	case OpLte:
		return types.NewBool(types.LessOrEqual(left, right)), nil
	case OpAnd:
		return types.And(left, right), nil
	case OpOr:
		return types.Or(left, right), nil
	default:
		return types.Value{}, &EvalError{Kind: UnsupportedBinaryOp, Op: n.Op}
	}
}
