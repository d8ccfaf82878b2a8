package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/token"
	"github.com/xplshn/ilc/pkg/util"
)

// qbeBackend writes QBE IL. Variables live in one alloc16 block addressed
// downward from %fp, so slot offsets match the x86_64 backend. Control flow
// uses the same label ordinals, prefixed with '@'.
type qbeBackend struct {
	out       *strings.Builder
	ctx       *Context
	tempCount int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

var qbeOps = map[token.Type]string{
	token.Plus:  "add",
	token.Minus: "sub",
	token.Star:  "mul",
	token.Slash: "div",
	token.Rem:   "rem",
	token.Shl:   "shl",
	token.Shr:   "sar",
	token.And:   "and",
	token.Or:    "or",
	token.Lt:    "csltl",
	token.Gt:    "csgtl",
	token.EqEq:  "ceql",
	token.Neq:   "cnel",
	token.Lte:   "cslel",
	token.Gte:   "csgel",
}

func (b *qbeBackend) GenerateIR(unit *binder.Unit, cfg *config.Config) (string, error) {
	ctx, err := NewContext(unit, cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	b.out, b.ctx, b.tempCount = &sb, ctx, 0

	fmt.Fprintf(b.out, "data $print_format = { b %s, b 0 }\n", strconv.Quote("%ld\n"))
	fmt.Fprintf(b.out, "data $scan_format = { b %s, b 0 }\n\n", strconv.Quote("%ld"))

	b.out.WriteString("export function w $main() {\n")
	b.label("start")
	size := ctx.frame.Size
	if size < frameAlign {
		size = frameAlign
	}
	if ctx.cfg.IsFeatureEnabled(config.FeatFrameComments) {
		fmt.Fprintf(b.out, "# scans %d, vars %d\n", ctx.frame.Scans, ctx.frame.Vars)
	}
	b.emit("%%frame =l alloc16 %d", size)
	b.emit("%%fp =l add %%frame, %d", size)

	b.genStmts(ast.NextStmt(unit.Root))

	b.emit("ret 0")
	b.out.WriteString("}\n")
	return sb.String(), nil
}

func (b *qbeBackend) newTemp() string {
	b.tempCount++
	return fmt.Sprintf("%%t%d", b.tempCount)
}

func (b *qbeBackend) emit(format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *qbeBackend) label(format string, args ...interface{}) {
	b.out.WriteByte('@')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

// slotAddr returns a temporary holding the address of a frame slot.
func (b *qbeBackend) slotAddr(slot int) string {
	t := b.newTemp()
	b.emit("%s =l sub %%fp, %d", t, frameOffset(slot))
	return t
}

// elemAddr returns a temporary holding the address of element index.
func (b *qbeBackend) elemAddr(info binder.ArrayInfo, index string) string {
	scaled := b.newTemp()
	addr := b.newTemp()
	if info.Kind == binder.Static {
		b.emit("%s =l mul %s, -8", scaled, index)
		base := b.slotAddr(info.Base)
		b.emit("%s =l add %s, %s", addr, base, scaled)
		return addr
	}
	b.emit("%s =l mul %s, 8", scaled, index)
	ptr := b.newTemp()
	b.emit("%s =l loadl %s", ptr, b.slotAddr(info.Base))
	b.emit("%s =l add %s, %s", addr, ptr, scaled)
	return addr
}

func (b *qbeBackend) genStmts(node *ast.Node) {
	for ; node != nil; node = ast.NextStmt(node) {
		b.genStmt(node)
	}
}

func (b *qbeBackend) genStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.AssignNode:
		v := b.genExpr(d.Value)
		b.emit("storel %s, %s", v, b.slotAddr(b.ctx.slot(node, d.Name)))

	case ast.ArrayElemAssignNode:
		info := b.ctx.array(node, d.Name)
		addr := b.elemAddr(info, b.genExpr(d.Index))
		v := b.genExpr(d.Value)
		b.emit("storel %s, %s", v, addr)

	case ast.PrintNode:
		v := b.genExpr(d.Value)
		b.emit("call $printf(l $print_format, ..., l %s)", v)

	case ast.ReadNode:
		addr := b.slotAddr(b.ctx.slot(node, d.Name))
		b.emit("call $scanf(l $scan_format, ..., l %s)", addr)

	case ast.StaticArrayDeclNode:
		slots := b.ctx.elements(node)
		for i, v := range d.Values {
			val := b.genExpr(v)
			b.emit("storel %s, %s", val, b.slotAddr(slots[i]))
		}

	case ast.DynamicArrayDeclNode:
		b.genDynamicArray(node, d)

	case ast.IfNode:
		b.genIf(node, d)

	case ast.WhileNode:
		b.genWhile(node, d)

	default:
		util.Error(node.Tok, "internal error: unhandled statement in qbe backend: %s", node.Type)
	}
}

func (b *qbeBackend) genDynamicArray(node *ast.Node, d ast.DynamicArrayDeclNode) {
	info := b.ctx.array(node, d.Name)
	n := b.ctx.ordinals(node).ArrLoop

	var count string
	if v, ok := b.ctx.foldedSize(d.Size); ok {
		count = strconv.FormatInt(v, 10)
	} else {
		count = b.genExpr(d.Size)
	}
	nbytes := b.newTemp()
	b.emit("%s =l mul %s, 8", nbytes, count)
	ptr := b.newTemp()
	b.emit("%s =l call $malloc(l %s)", ptr, nbytes)
	b.emit("storel %s, %s", ptr, b.slotAddr(info.Base))

	// The index is reassigned on every iteration; QBE builds SSA form itself.
	idx := fmt.Sprintf("%%i%d", n)
	b.emit("%s =l copy 0", idx)
	b.label("arr_loop%d", n)
	more := b.newTemp()
	b.emit("%s =w csltl %s, %s", more, idx, count)
	b.emit("jnz %s, @arr_body%d, @arr_next%d", more, n, n)
	b.label("arr_body%d", n)
	v := b.genExpr(d.Fill)
	b.emit("storel %s, %s", v, b.elemAddr(info, idx))
	b.emit("%s =l add %s, 1", idx, idx)
	b.emit("jmp @arr_loop%d", n)
	b.label("arr_next%d", n)
}

func (b *qbeBackend) genGuard(cond *ast.Node) string {
	v := b.genExpr(cond)
	t := b.newTemp()
	b.emit("%s =w ceql %s, 1", t, v)
	return t
}

func (b *qbeBackend) genIf(node *ast.Node, d ast.IfNode) {
	ord := b.ctx.ordinals(node)
	target, fused := b.ctx.exitLabel(d.Next, ord)
	b.label("if%d", ord.If)

	n := len(d.Branches)
	if n == 1 {
		c := b.genGuard(d.Branches[0].Cond)
		b.emit("jnz %s, @cond%d, @%s", c, ord.Conds[0], target)
		b.label("cond%d", ord.Conds[0])
		b.genStmts(d.Branches[0].Body)
		b.emit("jmp @%s", target)
	} else {
		for i := 1; i < n; i++ {
			c := b.genGuard(d.Branches[i].Cond)
			b.emit("jnz %s, @cond%d, @if%d.%d", c, ord.Conds[i-1], ord.If, i)
			b.label("if%d.%d", ord.If, i)
		}
		b.emit("jmp @cond%d", ord.Conds[n-1])
		for i := 1; i < n; i++ {
			b.label("cond%d", ord.Conds[i-1])
			b.genStmts(d.Branches[i].Body)
			b.emit("jmp @%s", target)
		}
		b.label("cond%d", ord.Conds[n-1])
		b.genStmts(d.Branches[0].Body)
		b.emit("jmp @%s", target)
	}

	if !fused {
		b.label("%s", target)
	}
}

func (b *qbeBackend) genWhile(node *ast.Node, d ast.WhileNode) {
	ord := b.ctx.ordinals(node)
	target, fused := b.ctx.exitLabel(d.Next, ord)

	b.label("loop%d", ord.Loop)
	v := b.genExpr(d.Cond)
	c := b.newTemp()
	b.emit("%s =w cnel %s, 0", c, v)
	b.emit("jnz %s, @loop%d.body, @%s", c, ord.Loop, target)
	b.label("loop%d.body", ord.Loop)
	b.genStmts(d.Body)
	b.emit("jmp @loop%d", ord.Loop)

	if !fused {
		b.label("%s", target)
	}
}

// genExpr returns the temporary or constant holding the expression's value.
func (b *qbeBackend) genExpr(node *ast.Node) string {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return strconv.FormatInt(d.Value, 10)

	case ast.IdentNode:
		t := b.newTemp()
		b.emit("%s =l loadl %s", t, b.slotAddr(b.ctx.slot(node, d.Name)))
		return t

	case ast.ArrayElemNode:
		info := b.ctx.array(node, d.Name)
		addr := b.elemAddr(info, b.genExpr(d.Index))
		t := b.newTemp()
		b.emit("%s =l loadl %s", t, addr)
		return t

	case ast.BinaryOpNode:
		t := b.newTemp()
		switch d.Op {
		case token.Not:
			b.emit("%s =l ceql %s, 0", t, b.genExpr(d.Right))
			return t
		case token.Neg:
			b.emit("%s =l neg %s", t, b.genExpr(d.Right))
			return t
		}
		op, ok := qbeOps[d.Op]
		if !ok {
			util.Error(node.Tok, "internal error: unhandled operator %s in qbe backend", d.Op)
		}
		l := b.genExpr(d.Left)
		r := b.genExpr(d.Right)
		b.emit("%s =l %s %s, %s", t, op, l, r)
		return t
	}
	util.Error(node.Tok, "internal error: unhandled expression in qbe backend: %s", node.Type)
	return ""
}
