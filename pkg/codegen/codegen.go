// Package codegen lowers a bound program to target code. The x86_64 backend
// writes Intel-syntax assembly directly; the qbe backend writes QBE IL and
// hands it to libqbe.
package codegen

import (
	"fmt"

	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/util"
)

// Context carries what both backends read while walking a unit.
type Context struct {
	unit  *binder.Unit
	cfg   *config.Config
	frame Frame
}

func NewContext(unit *binder.Unit, cfg *config.Config) (*Context, error) {
	if unit == nil || unit.Root == nil {
		return nil, fmt.Errorf("nothing to generate: empty unit")
	}
	if unit.Root.Type != ast.Program {
		return nil, fmt.Errorf("unit root is a %s node, want program", unit.Root.Type)
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{unit: unit, cfg: cfg, frame: ComputeFrame(unit)}, nil
}

func (ctx *Context) slot(node *ast.Node, name string) int {
	slot, ok := ctx.unit.Symbols.Lookup(name)
	if !ok {
		util.Error(node.Tok, "internal error: no slot for '%s'", name)
	}
	return slot
}

func (ctx *Context) array(node *ast.Node, name string) binder.ArrayInfo {
	info, ok := ctx.unit.Arrays.Lookup(name)
	if !ok {
		util.Error(node.Tok, "internal error: no storage for array '%s'", name)
	}
	return info
}

// elements returns the slots a static array declaration stores into.
func (ctx *Context) elements(node *ast.Node) []int {
	slots, ok := ctx.unit.Elements.Get(node)
	if !ok {
		util.Error(node.Tok, "internal error: static array declaration has no element slots")
	}
	return slots
}

func (ctx *Context) ordinals(node *ast.Node) *binder.Ordinals {
	ord, ok := ctx.unit.Annotations.Get(node)
	if !ok {
		util.Error(node.Tok, "internal error: %s node was never numbered", node.Type)
	}
	return ord
}

// exitLabel names where control goes after a conditional or loop. With
// fusion, a following conditional or loop is entered directly at its head
// and no join label is emitted.
func (ctx *Context) exitLabel(next *ast.Node, ord *binder.Ordinals) (label string, fused bool) {
	if next != nil && ctx.cfg.IsFeatureEnabled(config.FeatFusion) {
		switch next.Type {
		case ast.If:
			return fmt.Sprintf("if%d", ctx.ordinals(next).If), true
		case ast.While:
			return fmt.Sprintf("loop%d", ctx.ordinals(next).Loop), true
		}
	}
	return fmt.Sprintf("main%d", ord.Join), false
}

// foldedSize reports the compile-time value of a dynamic array size, if it
// has one and folding is on.
func (ctx *Context) foldedSize(size *ast.Node) (int64, bool) {
	if !ctx.cfg.IsFeatureEnabled(config.FeatFoldSize) || ast.HasVars(size) {
		return 0, false
	}
	v, ok := ast.EvalConst(size)
	if !ok {
		return 0, false
	}
	if ast.UsesShr(size) {
		util.Warn(ctx.cfg, config.WarnShrFold, size.Tok, "'>>' in a constant array size folds as '%%', giving %d", v)
	}
	return v, true
}

// frameOffset is the distance below the frame pointer of a slot.
func frameOffset(slot int) int { return 2 * slot }
