package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xplshn/ilc/pkg/token"
)

// wireNode is the JSON shape the parser emits. "value" and "size" are either
// an integer or a nested node depending on the kind.
type wireNode struct {
	Kind     string          `json:"kind"`
	Line     int             `json:"line"`
	Column   int             `json:"column,omitempty"`
	Name     string          `json:"name,omitempty"`
	Op       string          `json:"op,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Size     json.RawMessage `json:"size,omitempty"`
	Index    *wireNode       `json:"index,omitempty"`
	Left     *wireNode       `json:"left,omitempty"`
	Right    *wireNode       `json:"right,omitempty"`
	Fill     *wireNode       `json:"fill,omitempty"`
	Cond     *wireNode       `json:"cond,omitempty"`
	Body     *wireNode       `json:"body,omitempty"`
	Values   []*wireNode     `json:"values,omitempty"`
	Branches []wireBranch    `json:"branches,omitempty"`
	Next     *wireNode       `json:"next,omitempty"`
}

type wireBranch struct {
	Cond *wireNode `json:"cond,omitempty"`
	Body *wireNode `json:"body,omitempty"`
}

// Decode reads a JSON encoded tree. fileIndex is recorded in every node's
// token so diagnostics can find the source file.
func Decode(r io.Reader, fileIndex int) (*Node, error) {
	var w wireNode
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding tree: %w", err)
	}
	d := decoder{fileIndex: fileIndex}
	return d.node(&w, "$")
}

type decoder struct{ fileIndex int }

func (d *decoder) tok(w *wireNode) token.Token {
	return token.Token{FileIndex: d.fileIndex, Line: w.Line, Column: w.Column, Value: w.Name}
}

func (d *decoder) required(w *wireNode, path, field string) (*Node, error) {
	if w == nil {
		return nil, fmt.Errorf("%s: missing %q", path, field)
	}
	return d.node(w, path+"."+field)
}

func (d *decoder) optional(w *wireNode, path string) (*Node, error) {
	if w == nil {
		return nil, nil
	}
	return d.node(w, path)
}

func (d *decoder) rawNode(raw json.RawMessage, path, field string) (*Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: missing %q", path, field)
	}
	var w wireNode
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", path, field, err)
	}
	return d.node(&w, path+"."+field)
}

func (d *decoder) name(w *wireNode, path string) (string, error) {
	if w.Name == "" {
		return "", fmt.Errorf("%s: %s node without a name", path, w.Kind)
	}
	return w.Name, nil
}

func (d *decoder) node(w *wireNode, path string) (*Node, error) {
	tok := d.tok(w)
	switch w.Kind {
	case "number":
		var v int64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, fmt.Errorf("%s: number value: %w", path, err)
		}
		return NewNumber(tok, v), nil

	case "var":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		return NewIdent(tok, name), nil

	case "array-elem":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		index, err := d.required(w.Index, path, "index")
		if err != nil {
			return nil, err
		}
		return NewArrayElem(tok, name, index), nil

	case "binary":
		op, ok := token.OpMap[w.Op]
		if !ok {
			return nil, fmt.Errorf("%s: unknown operator %q", path, w.Op)
		}
		tok.Type = op
		right, err := d.required(w.Right, path, "right")
		if err != nil {
			return nil, err
		}
		if op.IsUnary() {
			return NewUnaryOp(tok, op, right), nil
		}
		left, err := d.required(w.Left, path, "left")
		if err != nil {
			return nil, err
		}
		return NewBinaryOp(tok, op, left, right), nil

	case "program":
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewProgram(tok, next), nil

	case "assign":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		value, err := d.rawNode(w.Value, path, "value")
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewAssign(tok, name, value, next), nil

	case "array-assign":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		index, err := d.required(w.Index, path, "index")
		if err != nil {
			return nil, err
		}
		value, err := d.rawNode(w.Value, path, "value")
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewArrayElemAssign(tok, name, index, value, next), nil

	case "print":
		value, err := d.rawNode(w.Value, path, "value")
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewPrint(tok, value, next), nil

	case "read":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewRead(tok, name, next), nil

	case "static-array":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		values := make([]*Node, 0, len(w.Values))
		for i, vw := range w.Values {
			v, err := d.node(vw, fmt.Sprintf("%s.values[%d]", path, i))
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		size := len(values)
		if len(w.Size) > 0 {
			if err := json.Unmarshal(w.Size, &size); err != nil {
				return nil, fmt.Errorf("%s: static array size: %w", path, err)
			}
		}
		if size != len(values) {
			return nil, fmt.Errorf("%s: array '%s' declares %d elements but has %d initializers", path, name, size, len(values))
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewStaticArrayDecl(tok, name, size, values, next), nil

	case "dynamic-array":
		name, err := d.name(w, path)
		if err != nil {
			return nil, err
		}
		size, err := d.rawNode(w.Size, path, "size")
		if err != nil {
			return nil, err
		}
		fill, err := d.required(w.Fill, path, "fill")
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewDynamicArrayDecl(tok, name, size, fill, next), nil

	case "if":
		n := len(w.Branches)
		if n == 0 {
			return nil, fmt.Errorf("%s: conditional without branches", path)
		}
		branches := make([]Branch, n)
		for i, bw := range w.Branches {
			bpath := fmt.Sprintf("%s.branches[%d]", path, i)
			guarded := n == 1 || i > 0
			if guarded {
				cond, err := d.required(bw.Cond, bpath, "cond")
				if err != nil {
					return nil, err
				}
				branches[i].Cond = cond
			} else if bw.Cond != nil {
				return nil, fmt.Errorf("%s: fallback branch must not have a guard", bpath)
			}
			body, err := d.optional(bw.Body, bpath+".body")
			if err != nil {
				return nil, err
			}
			branches[i].Body = body
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewIf(tok, branches, next), nil

	case "while":
		cond, err := d.required(w.Cond, path, "cond")
		if err != nil {
			return nil, err
		}
		body, err := d.optional(w.Body, path+".body")
		if err != nil {
			return nil, err
		}
		next, err := d.optional(w.Next, path+".next")
		if err != nil {
			return nil, err
		}
		return NewWhile(tok, cond, body, next), nil
	}
	return nil, fmt.Errorf("%s: unknown node kind %q", path, w.Kind)
}
