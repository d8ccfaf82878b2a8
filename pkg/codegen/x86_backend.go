package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/util"
)

// x86Backend writes Intel-syntax x86_64 assembly for a single `main`.
// Expressions leave their value in rax; binary operators park the left
// operand on the machine stack while the right one is evaluated.
type x86Backend struct {
	out *strings.Builder
	ctx *Context
}

// calleeSaved are the callee-saved registers the generated code uses as
// scratch. They are pushed below the frame; savePad keeps rsp 16-byte
// aligned at calls.
var calleeSaved = []string{"rbx", "r12", "r13"}

const savePad = 8

func NewX86Backend() Backend { return &x86Backend{} }

func (b *x86Backend) Generate(unit *binder.Unit, cfg *config.Config) (*bytes.Buffer, error) {
	asm, err := b.GenerateIR(unit, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(asm), nil
}

func (b *x86Backend) GenerateIR(unit *binder.Unit, cfg *config.Config) (string, error) {
	ctx, err := NewContext(unit, cfg)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	b.out, b.ctx = &sb, ctx

	b.genPrologue()
	b.genStmts(ast.NextStmt(unit.Root))
	b.genEpilogue()

	return sb.String(), nil
}

func (b *x86Backend) emit(format string, args ...interface{}) {
	b.out.WriteString("  ")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *x86Backend) label(format string, args ...interface{}) {
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteString(":\n")
}

func (b *x86Backend) genPrologue() {
	b.out.WriteString(".intel_syntax noprefix\n\n")
	b.out.WriteString(".data\n")
	b.out.WriteString("  print_format: .asciz \"%ld\\n\"\n")
	b.out.WriteString("  scan_format: .asciz \"%ld\"\n\n")
	b.out.WriteString(".text\n\n")
	b.out.WriteString(".global main\n")
	b.label("main")
	b.emit("push rbp")
	b.emit("mov rbp, rsp")
	if b.ctx.cfg.IsFeatureEnabled(config.FeatFrameComments) {
		fmt.Fprintf(b.out, "#SCANS: %d\n", b.ctx.frame.Scans)
		fmt.Fprintf(b.out, "#VARS: %d\n", b.ctx.frame.Vars)
	}
	b.emit("sub rsp, %d", b.ctx.frame.Size)
	for _, r := range calleeSaved {
		b.emit("push %s", r)
	}
	b.emit("sub rsp, %d", savePad)
}

func (b *x86Backend) genEpilogue() {
	b.emit("xor rax, rax")
	b.emit("add rsp, %d", savePad)
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		b.emit("pop %s", calleeSaved[i])
	}
	b.emit("leave")
	b.emit("ret")
	b.out.WriteString("\n\n")
}

// genStmts lowers a statement chain in order.
func (b *x86Backend) genStmts(node *ast.Node) {
	for ; node != nil; node = ast.NextStmt(node) {
		b.genStmt(node)
	}
}

func (b *x86Backend) genStmt(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.AssignNode:
		b.genExpr(d.Value)
		b.emit("mov QWORD PTR [rbp-%d], rax", frameOffset(b.ctx.slot(node, d.Name)))

	case ast.ArrayElemAssignNode:
		info := b.ctx.array(node, d.Name)
		b.genExpr(d.Index)
		b.genElemAddr(info)
		b.emit("push rax")
		b.genExpr(d.Value)
		b.emit("pop r9")
		if info.Kind == binder.Static {
			b.emit("mov QWORD PTR [rbp+r9], rax")
		} else {
			b.emit("mov QWORD PTR [r9], rax")
		}

	case ast.PrintNode:
		b.genExpr(d.Value)
		b.emit("lea rdi, print_format")
		b.emit("mov rsi, rax")
		b.emit("xor rax, rax")
		b.emit("call printf")

	case ast.ReadNode:
		b.emit("lea rdi, scan_format")
		b.emit("lea rsi, [rbp-%d]", frameOffset(b.ctx.slot(node, d.Name)))
		b.emit("xor rax, rax")
		b.emit("call scanf")

	case ast.StaticArrayDeclNode:
		slots := b.ctx.elements(node)
		for i, v := range d.Values {
			b.genExpr(v)
			b.emit("mov QWORD PTR [rbp-%d], rax", frameOffset(slots[i]))
		}

	case ast.DynamicArrayDeclNode:
		b.genDynamicArray(node, d)

	case ast.IfNode:
		b.genIf(node, d)

	case ast.WhileNode:
		b.genWhile(node, d)

	default:
		util.Error(node.Tok, "internal error: unhandled statement in x86 backend: %s", node.Type)
	}
}

// genElemAddr turns the index in rax into an element address. For a static
// array the result is an offset from rbp; for a dynamic one it is absolute.
func (b *x86Backend) genElemAddr(info binder.ArrayInfo) {
	if info.Kind == binder.Static {
		b.emit("mov r8, -8")
		b.emit("mul r8")
		b.emit("sub rax, %d", frameOffset(info.Base))
		return
	}
	b.emit("mov r8, 8")
	b.emit("mul r8")
	b.emit("mov rdx, rax")
	b.emit("mov rax, QWORD PTR [rbp-%d]", frameOffset(info.Base))
	b.emit("add rax, rdx")
}

// genDynamicArray allocates count*8 bytes with malloc, stores the pointer in
// the array's slot and fills every element with the fill expression,
// evaluated once per element. r12 counts elements and r13 holds the count.
func (b *x86Backend) genDynamicArray(node *ast.Node, d ast.DynamicArrayDeclNode) {
	info := b.ctx.array(node, d.Name)
	n := b.ctx.ordinals(node).ArrLoop

	if v, ok := b.ctx.foldedSize(d.Size); ok {
		b.emit("mov rax, %d", v)
	} else {
		b.genExpr(d.Size)
	}
	b.emit("mov r13, rax")
	b.emit("sal rax, 3")
	b.emit("mov r12, 0")
	b.emit("mov rdi, rax")
	b.emit("call malloc")
	b.emit("mov QWORD PTR [rbp-%d], rax", frameOffset(info.Base))

	b.label("arr_loop%d", n)
	b.emit("cmp r12, r13")
	b.emit("jge arr_next%d", n)
	b.genExpr(d.Fill)
	b.emit("push rax")
	b.emit("mov rax, r12")
	b.genElemAddr(info)
	b.emit("mov rdi, rax")
	b.emit("pop rax")
	b.emit("mov QWORD PTR [rdi], rax")
	b.emit("inc r12")
	b.emit("jmp arr_loop%d", n)
	b.label("arr_next%d", n)
}

func (b *x86Backend) genIf(node *ast.Node, d ast.IfNode) {
	ord := b.ctx.ordinals(node)
	target, fused := b.ctx.exitLabel(d.Next, ord)
	b.label("if%d", ord.If)

	n := len(d.Branches)
	if n == 1 {
		b.genExpr(d.Branches[0].Cond)
		b.emit("cmp rax, 1")
		b.emit("je cond%d", ord.Conds[0])
		b.emit("jmp %s", target)
		b.label("cond%d", ord.Conds[0])
		b.genStmts(d.Branches[0].Body)
		b.emit("jmp %s", target)
	} else {
		for i := 1; i < n; i++ {
			b.genExpr(d.Branches[i].Cond)
			b.emit("cmp rax, 1")
			b.emit("je cond%d", ord.Conds[i-1])
		}
		b.emit("jmp cond%d", ord.Conds[n-1])
		for i := 1; i < n; i++ {
			b.label("cond%d", ord.Conds[i-1])
			b.genStmts(d.Branches[i].Body)
			b.emit("jmp %s", target)
		}
		b.label("cond%d", ord.Conds[n-1])
		b.genStmts(d.Branches[0].Body)
		b.emit("jmp %s", target)
	}

	if !fused {
		b.label("%s", target)
	}
}

func (b *x86Backend) genWhile(node *ast.Node, d ast.WhileNode) {
	ord := b.ctx.ordinals(node)
	target, fused := b.ctx.exitLabel(d.Next, ord)

	b.label("loop%d", ord.Loop)
	b.genExpr(d.Cond)
	b.emit("cmp rax, 0")
	b.emit("je %s", target)
	b.genStmts(d.Body)
	b.emit("jmp loop%d", ord.Loop)

	if !fused {
		b.label("%s", target)
	}
}
