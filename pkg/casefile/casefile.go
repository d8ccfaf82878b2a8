// Package casefile extracts compiler test cases from Markdown. A case starts
// at a heading "Test: <name>" and collects the fenced code blocks that follow
// it until the next test heading.
package casefile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FenceType is the info string of a fenced code block inside a case.
type FenceType string

const (
	FenceTree         FenceType = "json"          // the program tree, as decoded by ast.Decode
	FenceInput        FenceType = "input"         // stdin for the compiled program
	FenceAsm          FenceType = "asm"           // lines that must appear in order in the x86_64 output
	FenceCompileError FenceType = "compile-error" // the expected bind error
	FenceOutput       FenceType = "output"        // the expected stdout of the compiled program
)

// Case is one test case from a Markdown file.
type Case struct {
	Name string
	Line int // line of the tree fence in the Markdown source

	Tree  string
	Input string

	Asm          []string
	CompileError string
	Output       string
	HasOutput    bool
}

// Hash identifies the case's inputs, for caching results across runs.
func (c *Case) Hash() uint64 {
	h := xxhash.New()
	h.WriteString(c.Tree)
	h.WriteString("\x00")
	h.WriteString(c.Input)
	return h.Sum64()
}

// HasAssertion reports whether the case checks anything.
func (c *Case) HasAssertion() bool {
	return len(c.Asm) > 0 || c.CompileError != "" || c.HasOutput
}

// Extract parses a Markdown document and returns its cases in order.
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var current *Case

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := headingText(n, markdown)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if current != nil {
				if err := validate(current); err != nil {
					return ast.WalkStop, err
				}
				cases = append(cases, *current)
			}
			current = &Case{Name: strings.TrimPrefix(heading, "Test: ")}

		case *ast.FencedCodeBlock:
			lang := FenceType(n.Language(markdown))
			line := lineNumber(n, markdown)
			if current == nil {
				if lang != "" {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", line, lang)
				}
				return ast.WalkContinue, nil
			}
			if err := current.add(lang, blockContent(n, markdown), line); err != nil {
				return ast.WalkStop, err
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown: %w", err)
	}

	if current != nil {
		if err := validate(current); err != nil {
			return nil, err
		}
		cases = append(cases, *current)
	}
	return cases, nil
}

func (c *Case) add(lang FenceType, content string, line int) error {
	switch lang {
	case FenceTree:
		if c.Tree != "" {
			return fmt.Errorf("line %d: multiple %s fences in test '%s'", line, lang, c.Name)
		}
		c.Tree, c.Line = content, line
	case FenceInput:
		if c.Input != "" {
			return fmt.Errorf("line %d: multiple %s fences in test '%s'", line, lang, c.Name)
		}
		c.Input = content
	case FenceAsm:
		for _, l := range strings.Split(content, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				c.Asm = append(c.Asm, l)
			}
		}
	case FenceCompileError:
		c.CompileError = strings.TrimRight(content, "\n")
	case FenceOutput:
		c.Output, c.HasOutput = content, true
	case "":
		// Untagged blocks are commentary.
	default:
		return fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, lang, c.Name)
	}
	return nil
}

func validate(c *Case) error {
	if c.Tree == "" {
		return fmt.Errorf("test '%s' has no %s fence", c.Name, FenceTree)
	}
	if !c.HasAssertion() {
		return fmt.Errorf("test '%s' has no assertion fences", c.Name)
	}
	if c.CompileError != "" && (len(c.Asm) > 0 || c.HasOutput) {
		return fmt.Errorf("test '%s' expects a compile error and also checks generated code", c.Name)
	}
	return nil
}

func headingText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func blockContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

func lineNumber(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:start], []byte{'\n'}) + 1
}
