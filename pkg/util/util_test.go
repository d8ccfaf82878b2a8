package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/token"
)

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want int64 }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{24, 8, 24},
		{5, 0, 5},
	}
	for _, test := range tests {
		be.Equal(t, AlignUp(test.n, test.align), test.want)
	}
}

func TestSourceLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.src")
	be.Err(t, os.WriteFile(path, []byte("x = 1\nprint y\n"), 0644), nil)

	be.Equal(t, SourceLine(path, 1), "x = 1")
	be.Equal(t, SourceLine(path, 2), "print y")
	be.Equal(t, SourceLine(path, 3), "")
	be.Equal(t, SourceLine(filepath.Join(t.TempDir(), "missing"), 1), "")
}

func TestReportLineError(t *testing.T) {
	SetOutput(io.Discard)
	path := filepath.Join(t.TempDir(), "prog.src")
	be.Err(t, os.WriteFile(path, []byte("x = 1\nprint y\n"), 0644), nil)

	var out bytes.Buffer
	ReportLineError(&out, path, 2, "Variable 'y' not defined!", true)
	be.Equal(t, out.String(), path+":2: error: Variable 'y' not defined!\n  2 | print y\n")

	out.Reset()
	ReportLineError(&out, path, 2, "Variable 'y' not defined!", false)
	be.Equal(t, out.String(), path+":2: error: Variable 'y' not defined!\n")

	out.Reset()
	ReportLineError(&out, "tree.json", 7, "Unknown array 'a'!", true)
	be.Equal(t, out.String(), "tree.json:7: error: Unknown array 'a'!\n")
}

func TestWarn(t *testing.T) {
	var out bytes.Buffer
	SetOutput(&out)
	defer SetOutput(io.Discard)
	SetSourceFiles([]SourceFileRecord{{Name: "prog.src", Content: []rune("a = 1\nb = a >> 1\n")}})
	defer SetSourceFiles(nil)

	cfg := config.NewConfig()
	tok := token.Token{FileIndex: 0, Line: 2, Column: 7, Len: 2}
	Warn(cfg, config.WarnShrFold, tok, "shift folded as %s", "modulo")
	be.Equal(t, out.String(), "prog.src:2:7: warning: shift folded as modulo [-Wshr-fold]\n  b = a >> 1\n        ^~\n")

	out.Reset()
	cfg.SetWarning(config.WarnShrFold, false)
	Warn(cfg, config.WarnShrFold, tok, "ignored")
	be.Equal(t, out.String(), "")

	Warn(nil, config.WarnShrFold, tok, "ignored")
	be.Equal(t, out.String(), "")
}

func TestErrorExits(t *testing.T) {
	var out bytes.Buffer
	SetOutput(&out)
	defer SetOutput(io.Discard)

	code := 0
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	Error(token.Token{FileIndex: -1, Line: 3}, "internal error: %d", 42)
	be.Equal(t, code, 1)
	be.Equal(t, out.String(), "unknown:3: error: internal error: 42\n")
}
