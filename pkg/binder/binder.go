// Package binder resolves names in a program tree, assigns frame slots to
// variables and array storage, and numbers the labels of every control
// construct for the code generator.
package binder

import (
	"fmt"
	"strings"

	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/token"
	"github.com/xplshn/ilc/pkg/util"
)

type ErrKind int

const (
	ErrUndefinedVariable ErrKind = iota + 1
	ErrUndefinedArray
)

func (k ErrKind) String() string {
	switch k {
	case ErrUndefinedVariable:
		return "undefined variable"
	case ErrUndefinedArray:
		return "undefined array"
	}
	return "ok"
}

// Error is an unresolved name. A bind reports at most one.
type Error struct {
	Kind ErrKind
	Line int
	Msg  string
	Tok  token.Token
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

func undefinedVariable(tok token.Token, name string) *Error {
	return &Error{Kind: ErrUndefinedVariable, Line: tok.Line, Tok: tok, Msg: "Variable '" + name + "' not defined!"}
}

func undefinedArray(tok token.Token, name string) *Error {
	return &Error{Kind: ErrUndefinedArray, Line: tok.Line, Tok: tok, Msg: "Unknown array '" + strings.Trim(name, "[]") + "'!"}
}

// first returns the first non-nil error.
func first(errs ...*Error) *Error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// varOnly drops everything but an undefined-variable error. Array indexes
// only surface variable errors.
func varOnly(e *Error) *Error {
	if e != nil && e.Kind == ErrUndefinedVariable {
		return e
	}
	return nil
}

// Unit is a bound program: the tree plus everything the binder assigned.
type Unit struct {
	Root        *ast.Node
	Symbols     *SymbolTable
	Arrays      *ArrayTable
	Elements    ElementSlots
	Annotations Annotations
}

type Binder struct {
	cfg     *config.Config
	symbols *SymbolTable
	arrays  *ArrayTable
	alloc   *Allocator
	elems   ElementSlots
	notes   Annotations
}

// NewBinder returns a binder with fresh tables; use one per compilation.
func NewBinder(cfg *config.Config) *Binder {
	return &Binder{
		cfg:     cfg,
		symbols: NewSymbolTable(),
		arrays:  NewArrayTable(),
		alloc:   NewAllocator(),
		elems:   make(ElementSlots),
		notes:   make(Annotations),
	}
}

// Bind walks the whole tree once. Every node is visited even after an error
// is found, so slots and ordinals do not depend on errors; the returned
// error is the first one in structural priority order. The unit is returned
// in both cases.
func (b *Binder) Bind(root *ast.Node) (*Unit, error) {
	unit := &Unit{Root: root, Symbols: b.symbols, Arrays: b.arrays, Elements: b.elems, Annotations: b.notes}
	if err := b.bind(root); err != nil {
		return unit, err
	}
	return unit, nil
}

func (b *Binder) bind(node *ast.Node) *Error {
	if node == nil {
		return nil
	}

	switch d := node.Data.(type) {
	case ast.NumberNode:
		return nil

	case ast.IdentNode:
		if _, ok := b.symbols.Lookup(d.Name); !ok {
			return undefinedVariable(node.Tok, d.Name)
		}
		return nil

	case ast.ArrayElemNode:
		_, known := b.arrays.Lookup(d.Name)
		index := b.bind(d.Index)
		if !known {
			return undefinedArray(node.Tok, d.Name)
		}
		return varOnly(index)

	case ast.BinaryOpNode:
		lhs := b.bind(d.Left)
		rhs := b.bind(d.Right)
		return first(lhs, rhs)

	case ast.ProgramNode:
		return b.bind(d.Next)

	case ast.AssignNode:
		val := b.bind(d.Value)
		if _, ok := b.symbols.Lookup(d.Name); !ok {
			b.symbols.Define(d.Name, b.alloc.NextSlot())
		}
		res := b.bind(d.Next)
		return first(val, res)

	case ast.ArrayElemAssignNode:
		_, known := b.arrays.Lookup(d.Name)
		index := b.bind(d.Index)
		val := b.bind(d.Value)
		res := b.bind(d.Next)
		if !known {
			return undefinedArray(node.Tok, d.Name)
		}
		return first(varOnly(index), val, res)

	case ast.PrintNode:
		val := b.bind(d.Value)
		res := b.bind(d.Next)
		return first(val, res)

	case ast.ReadNode:
		var target *Error
		if _, ok := b.symbols.Lookup(d.Name); !ok {
			target = undefinedVariable(node.Tok, d.Name)
		}
		res := b.bind(d.Next)
		return first(target, res)

	case ast.StaticArrayDeclNode:
		b.declareArray(node, d.Name, ArrayInfo{Base: b.alloc.PeekSlot(), Kind: Static})
		var val *Error
		slots := make([]int, 0, len(d.Values))
		for i, v := range d.Values {
			val = first(val, b.bind(v))
			slot := b.alloc.NextSlot()
			b.symbols.Define(ElementName(d.Name, i), slot)
			slots = append(slots, slot)
		}
		b.elems[node] = slots
		res := b.bind(d.Next)
		return first(val, res)

	case ast.DynamicArrayDeclNode:
		b.notes[node] = &Ordinals{ArrLoop: b.alloc.NextLabel(LabelArrLoop)}
		b.declareArray(node, d.Name, ArrayInfo{Base: b.alloc.NextSlot(), Kind: Dynamic})
		size := b.bind(d.Size)
		val := b.bind(d.Fill)
		res := b.bind(d.Next)
		return first(varOnly(size), val, res)

	case ast.IfNode:
		return b.bindIf(node, d)

	case ast.WhileNode:
		b.notes[node] = &Ordinals{
			Loop: b.alloc.NextLabel(LabelLoop),
			Join: b.alloc.NextLabel(LabelJoin),
		}
		cond := b.bind(d.Cond)
		stmts := b.bind(d.Body)
		res := b.bind(d.Next)
		return first(cond, stmts, res)
	}

	util.Error(node.Tok, "internal error: unhandled node type in binder: %v", node.Type)
	return nil
}

func (b *Binder) bindIf(node *ast.Node, d ast.IfNode) *Error {
	ord := &Ordinals{
		If:   b.alloc.NextLabel(LabelIf),
		Join: b.alloc.NextLabel(LabelJoin),
	}
	b.notes[node] = ord

	n := len(d.Branches)
	if n == 1 {
		ord.Conds = b.alloc.ReserveLabels(LabelCond, 1)
		cond := b.bind(d.Branches[0].Cond)
		stmts := b.bind(d.Branches[0].Body)
		res := b.bind(d.Next)
		return first(cond, stmts, res)
	}

	// One body label per guarded branch, then one for the fallback.
	ord.Conds = b.alloc.ReserveLabels(LabelCond, n)

	var cond, stmts *Error
	for i := 1; i < n; i++ {
		cond = first(cond, b.bind(d.Branches[i].Cond))
	}
	for i := 1; i < n; i++ {
		stmts = first(stmts, b.bind(d.Branches[i].Body))
	}
	fallback := b.bind(d.Branches[0].Body)
	res := b.bind(d.Next)
	return first(cond, stmts, fallback, res)
}

func (b *Binder) declareArray(node *ast.Node, name string, info ArrayInfo) {
	if !b.arrays.Define(name, info) {
		util.Warn(b.cfg, config.WarnRedeclArray, node.Tok, "Array '%s' is declared again and keeps its first storage", strings.Trim(name, "[]"))
	}
}
