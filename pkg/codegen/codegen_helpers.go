package codegen

import (
	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/token"
	"github.com/xplshn/ilc/pkg/util"
)

// compareHelpers are the runtime routines behind the comparison operators.
// Each takes its operands in rdi and rsi and returns 0 or 1 in rax.
var compareHelpers = map[token.Type]string{
	token.Lt:   "cmp_less",
	token.Gt:   "cmp_great",
	token.EqEq: "cmp_eq",
	token.Neq:  "cmp_neq",
	token.Lte:  "cmp_leq",
	token.Gte:  "cmp_geq",
}

// genExpr leaves the value of an expression in rax. Every operand is always
// evaluated; nothing short-circuits.
func (b *x86Backend) genExpr(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		b.emit("mov rax, %d", d.Value)

	case ast.IdentNode:
		b.emit("mov rax, QWORD PTR [rbp-%d]", frameOffset(b.ctx.slot(node, d.Name)))

	case ast.ArrayElemNode:
		info := b.ctx.array(node, d.Name)
		b.genExpr(d.Index)
		b.genElemAddr(info)
		if info.Kind == binder.Static {
			b.emit("mov r9, rax")
			b.emit("mov rax, QWORD PTR [rbp+r9]")
		} else {
			b.emit("mov rdi, rax")
			b.emit("mov rax, QWORD PTR [rdi]")
		}

	case ast.BinaryOpNode:
		if d.Op.IsUnary() {
			b.genUnaryOp(node, d)
			return
		}
		b.genBinaryOp(node, d)

	default:
		util.Error(node.Tok, "internal error: unhandled expression in x86 backend: %s", node.Type)
	}
}

func (b *x86Backend) genUnaryOp(node *ast.Node, d ast.BinaryOpNode) {
	b.genExpr(d.Right)
	switch d.Op {
	case token.Not:
		b.emit("cmp rax, 0")
		b.emit("sete al")
		b.emit("movzx rax, al")
	case token.Neg:
		b.emit("mov r8, -1")
		b.emit("mul r8")
	default:
		util.Error(node.Tok, "internal error: unhandled unary operator %s", d.Op)
	}
}

func (b *x86Backend) genBinaryOp(node *ast.Node, d ast.BinaryOpNode) {
	b.genExpr(d.Left)
	b.emit("push rax")
	b.genExpr(d.Right)

	switch d.Op {
	case token.Plus:
		b.emit("pop rbx")
		b.emit("add rax, rbx")
	case token.Star:
		b.emit("pop rbx")
		b.emit("imul rax, rbx")
	case token.And:
		b.emit("pop rbx")
		b.emit("and rax, rbx")
	case token.Or:
		b.emit("pop rbx")
		b.emit("or rax, rbx")

	case token.Minus:
		b.genOperandSwap()
		b.emit("sub rax, rbx")

	case token.Slash, token.Rem:
		b.genOperandSwap()
		b.emit("cqo")
		b.emit("idiv rbx")
		if d.Op == token.Rem {
			b.emit("mov rax, rdx")
		}

	case token.Shl, token.Shr:
		b.genOperandSwap()
		b.emit("mov rdi, rax")
		b.emit("mov rsi, rbx")
		if d.Op == token.Shl {
			b.emit("call shlf")
		} else {
			b.emit("call shrf")
		}

	default:
		helper, ok := compareHelpers[d.Op]
		if !ok {
			util.Error(node.Tok, "internal error: unhandled binary operator %s", d.Op)
		}
		b.genOperandSwap()
		b.emit("mov rdi, rax")
		b.emit("mov rsi, rbx")
		b.emit("call %s", helper)
	}
}

// genOperandSwap moves the parked left operand into rax and the right one
// into rbx.
func (b *x86Backend) genOperandSwap() {
	b.emit("push rax")
	b.emit("pop rbx")
	b.emit("pop rax")
}
