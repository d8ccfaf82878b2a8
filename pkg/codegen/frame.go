package codegen

import (
	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/util"
)

const frameAlign = 16

// scanBudget is the number of frame bytes reserved per read statement.
const scanBudget = 16

// Frame is the stack reservation of the generated main. The size is a
// heuristic upper bound, not a tight layout: every read statement is budgeted
// separately even if it can never run twice.
type Frame struct {
	Scans int // scanBudget bytes per reachable read statement
	Vars  int // bytes addressed by the highest slot
	Size  int
}

// CountReads counts read statements reachable from node, in every branch of
// every conditional and in loop bodies.
func CountReads(node *ast.Node) int {
	count := 0
	ast.Walk(node, func(n *ast.Node) {
		if n.Type == ast.Read {
			count++
		}
	})
	return count
}

// ComputeFrame sizes the frame of a bound unit.
func ComputeFrame(unit *binder.Unit) Frame {
	maxSlot := unit.Symbols.MaxSlot()
	if base := unit.Arrays.MaxBase(); base > maxSlot {
		maxSlot = base
	}
	if elem := unit.Elements.MaxSlot(); elem > maxSlot {
		maxSlot = elem
	}
	f := Frame{
		Scans: scanBudget * CountReads(unit.Root),
		Vars:  2 * maxSlot,
	}
	f.Size = frameSize(f.Scans, f.Vars)
	return f
}

func frameSize(scans, vars int) int {
	if scans >= vars {
		return scans
	}
	size := int(util.AlignUp(int64(vars), frameAlign))
	if size < frameAlign {
		size = frameAlign
	}
	return size
}
