package casefile

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
)

const fence = "```"

func TestExtractBasic(t *testing.T) {
	markdown := `# Printing

Some prose that is not a test.

## Test: print a literal
` + fence + `json
{"kind": "program", "next": {"kind": "print", "value": {"kind": "number", "value": 3}}}
` + fence + `
` + fence + `asm
  mov rax, 3
  call printf
` + fence + `
` + fence + `output
3
` + fence + `

## Test: read then print
` + fence + `json
{"kind": "program"}
` + fence + `
` + fence + `input
7
` + fence + `
` + fence + `output
7
` + fence

	cases, err := Extract([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	c := cases[0]
	be.Equal(t, c.Name, "print a literal")
	be.True(t, strings.HasPrefix(c.Tree, `{"kind": "program"`))
	be.Equal(t, c.Line, 7)
	if diff := cmp.Diff([]string{"mov rax, 3", "call printf"}, c.Asm); diff != "" {
		t.Errorf("asm lines mismatch (-want +got):\n%s", diff)
	}
	be.True(t, c.HasOutput)
	be.Equal(t, c.Output, "3\n")
	be.Equal(t, c.CompileError, "")

	c = cases[1]
	be.Equal(t, c.Name, "read then print")
	be.Equal(t, c.Input, "7\n")
	be.Equal(t, c.Output, "7\n")
	be.Equal(t, len(c.Asm), 0)
}

func TestExtractCompileError(t *testing.T) {
	markdown := `## Test: undefined
` + fence + `json
{"kind": "program", "next": {"kind": "print", "line": 2, "value": {"kind": "var", "line": 2, "name": "y"}}}
` + fence + `
` + fence + `compile-error
line 2: Variable 'y' not defined!
` + fence

	cases, err := Extract([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 1)
	be.Equal(t, cases[0].CompileError, "line 2: Variable 'y' not defined!")
	be.True(t, cases[0].HasAssertion())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "fence outside test",
			markdown: fence + "json\n{}\n" + fence,
			want:     "json fence found outside of test case",
		},
		{
			name:     "no tree",
			markdown: "## Test: a\n" + fence + "output\n1\n" + fence,
			want:     "test 'a' has no json fence",
		},
		{
			name:     "no assertion",
			markdown: "## Test: a\n" + fence + "json\n{}\n" + fence,
			want:     "test 'a' has no assertion fences",
		},
		{
			name:     "unknown language",
			markdown: "## Test: a\n" + fence + "json\n{}\n" + fence + "\n" + fence + "wat\nx\n" + fence,
			want:     "unknown fence language 'wat' in test 'a'",
		},
		{
			name:     "two trees",
			markdown: "## Test: a\n" + fence + "json\n{}\n" + fence + "\n" + fence + "json\n{}\n" + fence,
			want:     "multiple json fences in test 'a'",
		},
		{
			name: "error and output",
			markdown: "## Test: a\n" + fence + "json\n{}\n" + fence + "\n" + fence + "compile-error\nx\n" + fence +
				"\n" + fence + "output\n1\n" + fence,
			want: "expects a compile error and also checks generated code",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Extract([]byte(test.markdown))
			be.True(t, err != nil)
			be.True(t, strings.Contains(err.Error(), test.want))
		})
	}
}

func TestUntaggedBlocksAreIgnored(t *testing.T) {
	markdown := fence + "\nnot a test\n" + fence + `
## Test: a
` + fence + `
commentary
` + fence + `
` + fence + `json
{}
` + fence + `
` + fence + `output
` + fence

	cases, err := Extract([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 1)
	be.True(t, cases[0].HasOutput)
	be.Equal(t, cases[0].Output, "")
}

func TestHash(t *testing.T) {
	a := Case{Tree: "{}", Input: "1"}
	b := Case{Tree: "{}", Input: "1", Name: "other", Output: "x"}
	c := Case{Tree: "{}1"}
	be.Equal(t, a.Hash(), b.Hash())
	be.True(t, a.Hash() != c.Hash())
}
