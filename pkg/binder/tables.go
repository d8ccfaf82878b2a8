package binder

import (
	"strconv"

	"github.com/xplshn/ilc/pkg/ast"
)

// SlotStep is the distance between two consecutive slot values. A slot value
// s addresses the frame cell at offset 2*s below the base pointer, so
// consecutive slots are one 8-byte word apart.
const SlotStep = 4

// SymbolTable maps identifiers to slots. It lives for a whole compilation;
// entries are never removed.
type SymbolTable struct {
	slots map[string]int
	order []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{slots: make(map[string]int)}
}

func (st *SymbolTable) Lookup(name string) (int, bool) {
	slot, ok := st.slots[name]
	return slot, ok
}

// Define binds name to slot unless it is already bound. It reports whether
// the binding was added.
func (st *SymbolTable) Define(name string, slot int) bool {
	if _, ok := st.slots[name]; ok {
		return false
	}
	st.slots[name] = slot
	st.order = append(st.order, name)
	return true
}

// Names returns the bound identifiers in first-binding order.
func (st *SymbolTable) Names() []string {
	return append([]string(nil), st.order...)
}

func (st *SymbolTable) Len() int { return len(st.order) }

// MaxSlot is the highest slot value bound, 0 for an empty table.
func (st *SymbolTable) MaxSlot() int {
	maxSlot := 0
	for _, slot := range st.slots {
		if slot > maxSlot {
			maxSlot = slot
		}
	}
	return maxSlot
}

// ArrayKind is the storage representation of an array.
type ArrayKind int

const (
	// Static arrays own one slot per element, the first at Base.
	Static ArrayKind = iota
	// Dynamic arrays own one slot at Base holding a pointer to heap storage.
	Dynamic
)

func (k ArrayKind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

type ArrayInfo struct {
	Base int
	Kind ArrayKind
}

// ElementName is the symbol-table name of element i of a static array. The
// brackets keep it apart from every identifier.
func ElementName(array string, i int) string {
	return array + "[" + strconv.Itoa(i) + "]"
}

// ElementSlots maps each static array declaration, by identity, to the slots
// of its initializers in order. A re-declaration owns fresh slots.
type ElementSlots map[*ast.Node][]int

func (e ElementSlots) Get(node *ast.Node) ([]int, bool) {
	slots, ok := e[node]
	return slots, ok
}

func (e ElementSlots) MaxSlot() int {
	maxSlot := 0
	for _, slots := range e {
		for _, slot := range slots {
			if slot > maxSlot {
				maxSlot = slot
			}
		}
	}
	return maxSlot
}

type ArrayTable struct {
	arrays map[string]ArrayInfo
	order  []string
}

func NewArrayTable() *ArrayTable {
	return &ArrayTable{arrays: make(map[string]ArrayInfo)}
}

func (at *ArrayTable) Lookup(name string) (ArrayInfo, bool) {
	info, ok := at.arrays[name]
	return info, ok
}

// Define registers an array unless the name is taken; the first declaration
// keeps its storage.
func (at *ArrayTable) Define(name string, info ArrayInfo) bool {
	if _, ok := at.arrays[name]; ok {
		return false
	}
	at.arrays[name] = info
	at.order = append(at.order, name)
	return true
}

func (at *ArrayTable) Names() []string {
	return append([]string(nil), at.order...)
}

func (at *ArrayTable) MaxBase() int {
	maxBase := 0
	for _, info := range at.arrays {
		if info.Base > maxBase {
			maxBase = info.Base
		}
	}
	return maxBase
}

// LabelClass selects one of the independent ordinal sequences used to name
// generated labels.
type LabelClass int

const (
	LabelIf      LabelClass = iota // if<N>: conditional head
	LabelCond                      // cond<N>: conditional body entry
	LabelJoin                      // main<N>: join point after a conditional or loop
	LabelLoop                      // loop<N>: while head
	LabelArrLoop                   // arr_loop<N>/arr_next<N>: dynamic array fill loop
	labelClassCount
)

// Allocator hands out slots and label ordinals for one compilation. Both are
// bump allocated and never reused.
type Allocator struct {
	nextSlot int
	labels   [labelClassCount]int
}

func NewAllocator() *Allocator {
	return &Allocator{nextSlot: SlotStep}
}

// PeekSlot returns the slot the next NextSlot call will hand out.
func (a *Allocator) PeekSlot() int { return a.nextSlot }

func (a *Allocator) NextSlot() int {
	s := a.nextSlot
	a.nextSlot += SlotStep
	return s
}

func (a *Allocator) NextLabel(c LabelClass) int {
	n := a.labels[c]
	a.labels[c]++
	return n
}

// ReserveLabels allocates n contiguous ordinals of class c.
func (a *Allocator) ReserveLabels(c LabelClass, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = a.NextLabel(c)
	}
	return out
}

// Ordinals are the label numbers assigned to one control node. Only the
// fields meaningful for the node's kind are set.
type Ordinals struct {
	If      int
	Join    int
	Conds   []int
	Loop    int
	ArrLoop int
}

// Annotations map nodes, by identity, to the ordinals the binder assigned.
type Annotations map[*ast.Node]*Ordinals

func (a Annotations) Get(node *ast.Node) (*Ordinals, bool) {
	ord, ok := a[node]
	return ord, ok
}
