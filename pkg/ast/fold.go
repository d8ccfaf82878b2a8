package ast

import (
	"github.com/xplshn/ilc/pkg/token"
)

// HasVars reports whether the expression reads any storage: a variable or an
// array element. Only expressions without such references can be folded.
func HasVars(node *Node) bool {
	if node == nil {
		return false
	}
	switch d := node.Data.(type) {
	case NumberNode:
		return false
	case IdentNode, ArrayElemNode:
		return true
	case BinaryOpNode:
		return HasVars(d.Left) || HasVars(d.Right)
	}
	return false
}

// EvalConst evaluates a storage-free expression with the run-time operator
// semantics. Division and modulo truncate toward zero. Shift right folds as
// modulo, matching the long-standing behaviour of the folder; the backends
// emit a real shift for it.
//
// ok is false when the expression cannot be folded: it reads storage, divides
// by zero or shifts by a negative count. The caller then evaluates it at run
// time.
func EvalConst(node *Node) (val int64, ok bool) {
	if node == nil {
		return 0, false
	}
	switch d := node.Data.(type) {
	case NumberNode:
		return d.Value, true
	case BinaryOpNode:
		if d.Op.IsUnary() {
			r, ok := EvalConst(d.Right)
			if !ok {
				return 0, false
			}
			if d.Op == token.Not {
				return boolToInt(r == 0), true
			}
			return -r, true
		}

		l, ok := EvalConst(d.Left)
		if !ok {
			return 0, false
		}
		r, ok := EvalConst(d.Right)
		if !ok {
			return 0, false
		}
		switch d.Op {
		case token.Plus:
			return l + r, true
		case token.Minus:
			return l - r, true
		case token.Star:
			return l * r, true
		case token.Slash:
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case token.Rem, token.Shr:
			if r == 0 {
				return 0, false
			}
			return l % r, true
		case token.Shl:
			if r < 0 {
				return 0, false
			}
			return l << uint64(r), true
		case token.Lt:
			return boolToInt(l < r), true
		case token.Gt:
			return boolToInt(l > r), true
		case token.EqEq:
			return boolToInt(l == r), true
		case token.Neq:
			return boolToInt(l != r), true
		case token.Lte:
			return boolToInt(l <= r), true
		case token.Gte:
			return boolToInt(l >= r), true
		case token.And:
			return boolToInt(l != 0 && r != 0), true
		case token.Or:
			return boolToInt(l != 0 || r != 0), true
		}
	}
	return 0, false
}

// UsesShr reports whether the expression contains a shift right.
func UsesShr(node *Node) bool {
	found := false
	Walk(node, func(n *Node) {
		if d, ok := n.Data.(BinaryOpNode); ok && d.Op == token.Shr {
			found = true
		}
	})
	return found
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
