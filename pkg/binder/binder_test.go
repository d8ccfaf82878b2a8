package binder

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/token"
	"github.com/xplshn/ilc/pkg/util"
)

func at(line int) token.Token { return token.Token{Line: line, FileIndex: -1} }

func num(v int64) *ast.Node { return ast.NewNumber(at(0), v) }
func ref(line int, name string) *ast.Node { return ast.NewIdent(at(line), name) }

// chain links statements built with a nil next, last to first.
func chain(stmts ...func(next *ast.Node) *ast.Node) *ast.Node {
	var next *ast.Node
	for i := len(stmts) - 1; i >= 0; i-- {
		next = stmts[i](next)
	}
	return ast.NewProgram(at(0), next)
}

func assignStmt(line int, name string, value *ast.Node) func(*ast.Node) *ast.Node {
	return func(next *ast.Node) *ast.Node { return ast.NewAssign(at(line), name, value, next) }
}

func printStmt(line int, value *ast.Node) func(*ast.Node) *ast.Node {
	return func(next *ast.Node) *ast.Node { return ast.NewPrint(at(line), value, next) }
}

func readStmt(line int, name string) func(*ast.Node) *ast.Node {
	return func(next *ast.Node) *ast.Node { return ast.NewRead(at(line), name, next) }
}

func bind(t *testing.T, root *ast.Node) (*Unit, error) {
	t.Helper()
	util.SetOutput(io.Discard)
	return NewBinder(config.NewConfig()).Bind(root)
}

func TestSlotsFollowFirstAssignment(t *testing.T) {
	root := chain(
		assignStmt(1, "x", num(1)),
		assignStmt(2, "y", num(2)),
		assignStmt(3, "x", ref(3, "y")),
		assignStmt(4, "z", num(3)),
	)
	unit, err := bind(t, root)
	be.Err(t, err, nil)

	for name, want := range map[string]int{"x": 4, "y": 8, "z": 12} {
		slot, ok := unit.Symbols.Lookup(name)
		be.True(t, ok)
		be.Equal(t, slot, want)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, unit.Symbols.Names()); diff != "" {
		t.Errorf("binding order mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, unit.Symbols.MaxSlot(), 12)
}

func TestAssignmentValueSeesOldBindings(t *testing.T) {
	_, err := bind(t, chain(assignStmt(1, "x", ref(1, "x"))))
	be.Equal(t, err.Error(), "line 1: Variable 'x' not defined!")
}

func TestUndefinedNames(t *testing.T) {
	tests := []struct {
		name string
		root *ast.Node
		kind ErrKind
		want string
	}{
		{
			name: "variable",
			root: chain(printStmt(2, ref(2, "y"))),
			kind: ErrUndefinedVariable,
			want: "line 2: Variable 'y' not defined!",
		},
		{
			name: "read target",
			root: chain(readStmt(5, "x")),
			kind: ErrUndefinedVariable,
			want: "line 5: Variable 'x' not defined!",
		},
		{
			name: "array element",
			root: chain(printStmt(3, ast.NewArrayElem(at(3), "a", num(0)))),
			kind: ErrUndefinedArray,
			want: "line 3: Unknown array 'a'!",
		},
		{
			name: "array store",
			root: chain(func(next *ast.Node) *ast.Node {
				return ast.NewArrayElemAssign(at(4), "b", num(0), num(1), next)
			}),
			kind: ErrUndefinedArray,
			want: "line 4: Unknown array 'b'!",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := bind(t, test.root)
			var bindErr *Error
			be.True(t, errors.As(err, &bindErr))
			be.Equal(t, bindErr.Kind, test.kind)
			be.Equal(t, err.Error(), test.want)
		})
	}
}

func TestErrorPriority(t *testing.T) {
	t.Run("value before rest of chain", func(t *testing.T) {
		_, err := bind(t, chain(
			assignStmt(1, "x", ref(1, "y")),
			printStmt(2, ref(2, "z")),
		))
		be.Equal(t, err.Error(), "line 1: Variable 'y' not defined!")
	})

	t.Run("left operand before right", func(t *testing.T) {
		sum := ast.NewBinaryOp(at(1), token.Plus, ref(1, "l"), ref(1, "r"))
		_, err := bind(t, chain(printStmt(1, sum)))
		be.Equal(t, err.Error(), "line 1: Variable 'l' not defined!")
	})

	t.Run("unknown array before its index", func(t *testing.T) {
		elem := ast.NewArrayElem(at(2), "a", ref(2, "i"))
		_, err := bind(t, chain(printStmt(2, elem)))
		be.Equal(t, err.Error(), "line 2: Unknown array 'a'!")
	})

	t.Run("index variable of a known array", func(t *testing.T) {
		decl := func(next *ast.Node) *ast.Node {
			return ast.NewStaticArrayDecl(at(1), "a", 1, []*ast.Node{num(7)}, next)
		}
		_, err := bind(t, chain(decl, printStmt(2, ast.NewArrayElem(at(2), "a", ref(2, "i")))))
		be.Equal(t, err.Error(), "line 2: Variable 'i' not defined!")
	})

	t.Run("array store surfaces any error from the rest of the chain", func(t *testing.T) {
		decl := func(next *ast.Node) *ast.Node {
			return ast.NewStaticArrayDecl(at(1), "a", 1, []*ast.Node{num(7)}, next)
		}
		store := func(next *ast.Node) *ast.Node {
			return ast.NewArrayElemAssign(at(2), "a", num(0), num(1), next)
		}
		_, err := bind(t, chain(decl, store, printStmt(3, ast.NewArrayElem(at(3), "b", num(0)))))
		be.Equal(t, err.Error(), "line 3: Unknown array 'b'!")
	})

	t.Run("array store value before rest of chain", func(t *testing.T) {
		decl := func(next *ast.Node) *ast.Node {
			return ast.NewStaticArrayDecl(at(1), "a", 1, []*ast.Node{num(7)}, next)
		}
		store := func(next *ast.Node) *ast.Node {
			return ast.NewArrayElemAssign(at(2), "a", num(0), ref(2, "v"), next)
		}
		_, err := bind(t, chain(decl, store, printStmt(3, ref(3, "w"))))
		be.Equal(t, err.Error(), "line 2: Variable 'v' not defined!")
	})

	t.Run("guards before bodies", func(t *testing.T) {
		cond := func(next *ast.Node) *ast.Node {
			return ast.NewIf(at(1), []ast.Branch{
				{Body: ast.NewPrint(at(2), ref(2, "fallback"), nil)},
				{Cond: num(1), Body: ast.NewPrint(at(3), ref(3, "body"), nil)},
				{Cond: ref(4, "guard"), Body: nil},
			}, next)
		}
		_, err := bind(t, chain(cond))
		be.Equal(t, err.Error(), "line 4: Variable 'guard' not defined!")
	})
}

func TestBindingContinuesAfterError(t *testing.T) {
	unit, err := bind(t, chain(
		printStmt(1, ref(1, "missing")),
		assignStmt(2, "x", num(1)),
		func(next *ast.Node) *ast.Node { return ast.NewWhile(at(3), ref(3, "x"), nil, next) },
	))
	be.True(t, err != nil)
	be.True(t, unit != nil)

	slot, ok := unit.Symbols.Lookup("x")
	be.True(t, ok)
	be.Equal(t, slot, 4)
	be.Equal(t, len(unit.Annotations), 1)
}

func TestArrayStorage(t *testing.T) {
	static := func(next *ast.Node) *ast.Node {
		return ast.NewStaticArrayDecl(at(2), "a", 3, []*ast.Node{num(1), num(2), num(3)}, next)
	}
	dynamic := func(next *ast.Node) *ast.Node {
		return ast.NewDynamicArrayDecl(at(3), "d", num(4), num(0), next)
	}
	unit, err := bind(t, chain(assignStmt(1, "x", num(0)), static, dynamic, assignStmt(4, "y", num(0))))
	be.Err(t, err, nil)

	a, ok := unit.Arrays.Lookup("a")
	be.True(t, ok)
	be.Equal(t, a, ArrayInfo{Base: 8, Kind: Static})

	d, ok := unit.Arrays.Lookup("d")
	be.True(t, ok)
	be.Equal(t, d, ArrayInfo{Base: 20, Kind: Dynamic})

	y, _ := unit.Symbols.Lookup("y")
	be.Equal(t, y, 24)
	be.Equal(t, unit.Arrays.MaxBase(), 20)
	be.Equal(t, unit.Symbols.MaxSlot(), 24)
}

func TestRedeclaredArrayKeepsFirstStorage(t *testing.T) {
	decl := func(line int, name string) func(*ast.Node) *ast.Node {
		return func(next *ast.Node) *ast.Node {
			return ast.NewStaticArrayDecl(at(line), name, 1, []*ast.Node{num(1)}, next)
		}
	}
	var out bytes.Buffer
	util.SetOutput(&out)
	defer util.SetOutput(io.Discard)

	unit, err := NewBinder(config.NewConfig()).Bind(chain(decl(1, "a"), decl(2, "a")))
	be.Err(t, err, nil)

	info, _ := unit.Arrays.Lookup("a")
	be.Equal(t, info.Base, 4)
	be.True(t, strings.Contains(out.String(), "Array 'a' is declared again"))
	be.True(t, strings.Contains(out.String(), "[-Wredecl-array]"))
}

func TestArrayElementsDoNotShadowVariables(t *testing.T) {
	var decl *ast.Node
	root := chain(
		assignStmt(1, "a0", num(5)),
		func(next *ast.Node) *ast.Node {
			decl = ast.NewStaticArrayDecl(at(2), "a", 1, []*ast.Node{num(9)}, next)
			return decl
		},
		printStmt(3, ref(3, "a0")),
	)
	unit, err := bind(t, root)
	be.Err(t, err, nil)

	a0, _ := unit.Symbols.Lookup("a0")
	be.Equal(t, a0, 4)
	elem, ok := unit.Symbols.Lookup(ElementName("a", 0))
	be.True(t, ok)
	be.Equal(t, elem, 8)
	slots, _ := unit.Elements.Get(decl)
	if diff := cmp.Diff([]int{8}, slots); diff != "" {
		t.Errorf("element slots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a0", "a[0]"}, unit.Symbols.Names()); diff != "" {
		t.Errorf("binding order mismatch (-want +got):\n%s", diff)
	}
}

func TestRedeclaredArrayOwnsFreshElementSlots(t *testing.T) {
	var firstDecl, secondDecl *ast.Node
	root := chain(
		func(next *ast.Node) *ast.Node {
			firstDecl = ast.NewStaticArrayDecl(at(1), "a", 1, []*ast.Node{num(1)}, next)
			return firstDecl
		},
		assignStmt(2, "x", num(5)),
		func(next *ast.Node) *ast.Node {
			secondDecl = ast.NewStaticArrayDecl(at(3), "a", 2, []*ast.Node{num(7), num(8)}, next)
			return secondDecl
		},
	)
	unit, err := bind(t, root)
	be.Err(t, err, nil)

	info, _ := unit.Arrays.Lookup("a")
	be.Equal(t, info.Base, 4)
	x, _ := unit.Symbols.Lookup("x")
	be.Equal(t, x, 8)

	firstSlots, _ := unit.Elements.Get(firstDecl)
	secondSlots, _ := unit.Elements.Get(secondDecl)
	if diff := cmp.Diff([]int{4}, firstSlots); diff != "" {
		t.Errorf("first declaration slots mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{12, 16}, secondSlots); diff != "" {
		t.Errorf("second declaration slots mismatch (-want +got):\n%s", diff)
	}
	be.Equal(t, unit.Elements.MaxSlot(), 16)
}

func TestRedeclaredArrayWarningCanBeDisabled(t *testing.T) {
	decl := func(next *ast.Node) *ast.Node {
		return ast.NewDynamicArrayDecl(at(1), "a", num(1), num(0), next)
	}
	var out bytes.Buffer
	util.SetOutput(&out)
	defer util.SetOutput(io.Discard)

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnRedeclArray, false)
	_, err := NewBinder(cfg).Bind(chain(decl, decl))
	be.Err(t, err, nil)
	be.Equal(t, out.String(), "")
}

func TestLabelOrdinals(t *testing.T) {
	first := ast.NewIf(at(1), []ast.Branch{{Cond: num(1)}}, nil)
	loop := ast.NewWhile(at(2), num(0), nil, nil)
	multi := ast.NewIf(at(3), []ast.Branch{{}, {Cond: num(1)}, {Cond: num(0)}}, nil)
	fill := ast.NewDynamicArrayDecl(at(4), "d", num(2), num(0), nil)
	second := ast.NewIf(at(5), []ast.Branch{{Cond: num(1)}}, nil)
	root := ast.NewProgram(at(0), link(first, loop, multi, fill, second))

	unit, err := bind(t, root)
	be.Err(t, err, nil)

	tests := []struct {
		name string
		node *ast.Node
		want Ordinals
	}{
		{"first if", first, Ordinals{If: 0, Join: 0, Conds: []int{0}}},
		{"while", loop, Ordinals{Loop: 0, Join: 1}},
		{"multi-branch if", multi, Ordinals{If: 1, Join: 2, Conds: []int{1, 2, 3}}},
		{"dynamic array", fill, Ordinals{ArrLoop: 0}},
		{"second if", second, Ordinals{If: 2, Join: 3, Conds: []int{4}}},
	}
	for _, test := range tests {
		ord, ok := unit.Annotations.Get(test.node)
		be.True(t, ok)
		if diff := cmp.Diff(test.want, *ord); diff != "" {
			t.Errorf("%s: ordinals mismatch (-want +got):\n%s", test.name, diff)
		}
	}
}

// link sets each statement's next to the following one.
func link(stmts ...*ast.Node) *ast.Node {
	for i := len(stmts) - 2; i >= 0; i-- {
		next := stmts[i+1]
		switch d := stmts[i].Data.(type) {
		case ast.IfNode:
			d.Next = next
			stmts[i].Data = d
		case ast.WhileNode:
			d.Next = next
			stmts[i].Data = d
		case ast.DynamicArrayDeclNode:
			d.Next = next
			stmts[i].Data = d
		}
		next.Parent = stmts[i]
	}
	return stmts[0]
}

func TestBindIsDeterministic(t *testing.T) {
	build := func() *ast.Node {
		return chain(
			assignStmt(1, "x", num(3)),
			func(next *ast.Node) *ast.Node {
				return ast.NewWhile(at(2), ref(2, "x"), ast.NewAssign(at(3), "y", ref(3, "x"), nil), next)
			},
			printStmt(4, ref(4, "y")),
		)
	}
	a, errA := bind(t, build())
	b, errB := bind(t, build())
	be.Err(t, errA, nil)
	be.Err(t, errB, nil)
	if diff := cmp.Diff(a.Symbols.Names(), b.Symbols.Names()); diff != "" {
		t.Errorf("binding order differs between runs:\n%s", diff)
	}
	be.Equal(t, a.Symbols.MaxSlot(), b.Symbols.MaxSlot())
}
