// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
// handed to the backend by the parser.
package ast

import (
	"github.com/xplshn/ilc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Ident
	ArrayElem
	BinaryOp

	// Statements
	Program
	Assign
	ArrayElemAssign
	Print
	Read
	StaticArrayDecl
	DynamicArrayDecl
	If
	While
)

var nodeTypeNames = [...]string{
	Number:           "number",
	Ident:            "var",
	ArrayElem:        "array-elem",
	BinaryOp:         "binary",
	Program:          "program",
	Assign:           "assign",
	ArrayElemAssign:  "array-assign",
	Print:            "print",
	Read:             "read",
	StaticArrayDecl:  "static-array",
	DynamicArrayDecl: "dynamic-array",
	If:               "if",
	While:            "while",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "unknown"
}

// Node represents a node in the Abstract Syntax Tree. The tree is never
// restructured after the parser builds it; passes key their results by the
// node pointer.
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
}

// Line is the 1-based source line the node was parsed from.
func (n *Node) Line() int { return n.Tok.Line }

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type IdentNode struct{ Name string }
type ArrayElemNode struct {
	Name  string
	Index *Node
}

// BinaryOpNode also carries the unary tags (Not, Neg); for those Left is nil
// and the operand is Right.
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type ProgramNode struct{ Next *Node }
type AssignNode struct {
	Name  string
	Value *Node
	Next  *Node
}
type ArrayElemAssignNode struct {
	Name  string
	Index *Node
	Value *Node
	Next  *Node
}
type PrintNode struct{ Value, Next *Node }
type ReadNode struct {
	Name string
	Next *Node
}
type StaticArrayDeclNode struct {
	Name   string
	Size   int
	Values []*Node
	Next   *Node
}
type DynamicArrayDeclNode struct {
	Name string
	Size *Node
	Fill *Node
	Next *Node
}

// Branch is one (guard, body) pair of a conditional. The fallback branch at
// position 0 of a multi-branch conditional has no guard.
type Branch struct{ Cond, Body *Node }

// IfNode holds the branch list: position 0 is the fallback body, positions
// 1..n-1 the guarded branches in source order. A single-element list is a
// plain `if` whose only branch is guarded.
type IfNode struct {
	Branches []Branch
	Next     *Node
}
type WhileNode struct{ Cond, Body, Next *Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewArrayElem(tok token.Token, name string, index *Node) *Node {
	return newNode(tok, ArrayElem, ArrayElemNode{Name: name, Index: index}, index)
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, operand *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Right: operand}, operand)
}
func NewProgram(tok token.Token, first *Node) *Node {
	return newNode(tok, Program, ProgramNode{Next: first}, first)
}
func NewAssign(tok token.Token, name string, value, next *Node) *Node {
	return newNode(tok, Assign, AssignNode{Name: name, Value: value, Next: next}, value, next)
}
func NewArrayElemAssign(tok token.Token, name string, index, value, next *Node) *Node {
	return newNode(tok, ArrayElemAssign, ArrayElemAssignNode{Name: name, Index: index, Value: value, Next: next}, index, value, next)
}
func NewPrint(tok token.Token, value, next *Node) *Node {
	return newNode(tok, Print, PrintNode{Value: value, Next: next}, value, next)
}
func NewRead(tok token.Token, name string, next *Node) *Node {
	return newNode(tok, Read, ReadNode{Name: name, Next: next}, next)
}
func NewStaticArrayDecl(tok token.Token, name string, size int, values []*Node, next *Node) *Node {
	node := newNode(tok, StaticArrayDecl, StaticArrayDeclNode{Name: name, Size: size, Values: values, Next: next}, next)
	for _, v := range values {
		if v != nil {
			v.Parent = node
		}
	}
	return node
}
func NewDynamicArrayDecl(tok token.Token, name string, size, fill, next *Node) *Node {
	return newNode(tok, DynamicArrayDecl, DynamicArrayDeclNode{Name: name, Size: size, Fill: fill, Next: next}, size, fill, next)
}
func NewIf(tok token.Token, branches []Branch, next *Node) *Node {
	node := newNode(tok, If, IfNode{Branches: branches, Next: next}, next)
	for _, b := range branches {
		if b.Cond != nil {
			b.Cond.Parent = node
		}
		if b.Body != nil {
			b.Body.Parent = node
		}
	}
	return node
}
func NewWhile(tok token.Token, cond, body, next *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body, Next: next}, cond, body, next)
}

// NextStmt returns the statement that follows node in its chain, or nil for
// expressions and the last statement.
func NextStmt(node *Node) *Node {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ProgramNode:
		return d.Next
	case AssignNode:
		return d.Next
	case ArrayElemAssignNode:
		return d.Next
	case PrintNode:
		return d.Next
	case ReadNode:
		return d.Next
	case StaticArrayDeclNode:
		return d.Next
	case DynamicArrayDeclNode:
		return d.Next
	case IfNode:
		return d.Next
	case WhileNode:
		return d.Next
	}
	return nil
}

// IsControl reports whether node is a conditional or a while loop, the two
// constructs that start with a jump target label.
func IsControl(node *Node) bool {
	return node != nil && (node.Type == If || node.Type == While)
}

// Walk visits node and every node reachable from it, depth first, children
// in evaluation order.
func Walk(node *Node, visitor func(n *Node)) {
	if node == nil {
		return
	}
	visitor(node)

	switch d := node.Data.(type) {
	case ArrayElemNode:
		Walk(d.Index, visitor)
	case BinaryOpNode:
		Walk(d.Left, visitor)
		Walk(d.Right, visitor)
	case ProgramNode:
		Walk(d.Next, visitor)
	case AssignNode:
		Walk(d.Value, visitor)
		Walk(d.Next, visitor)
	case ArrayElemAssignNode:
		Walk(d.Index, visitor)
		Walk(d.Value, visitor)
		Walk(d.Next, visitor)
	case PrintNode:
		Walk(d.Value, visitor)
		Walk(d.Next, visitor)
	case ReadNode:
		Walk(d.Next, visitor)
	case StaticArrayDeclNode:
		for _, v := range d.Values {
			Walk(v, visitor)
		}
		Walk(d.Next, visitor)
	case DynamicArrayDeclNode:
		Walk(d.Size, visitor)
		Walk(d.Fill, visitor)
		Walk(d.Next, visitor)
	case IfNode:
		for _, b := range d.Branches {
			Walk(b.Cond, visitor)
			Walk(b.Body, visitor)
		}
		Walk(d.Next, visitor)
	case WhileNode:
		Walk(d.Cond, visitor)
		Walk(d.Body, visitor)
		Walk(d.Next, visitor)
	}
}
