package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/ilc/pkg/config"
	"github.com/xplshn/ilc/pkg/token"
	"golang.org/x/term"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var (
	sourceFiles []SourceFileRecord
	output      io.Writer = os.Stderr
	colored               = term.IsTerminal(int(os.Stderr.Fd()))
	exit                  = os.Exit
)

// SetSourceFiles stores the source code for all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// SetOutput redirects diagnostics. Colours are only used on a terminal.
func SetOutput(w io.Writer) {
	output = w
	colored = false
	if f, ok := w.(*os.File); ok {
		colored = term.IsTerminal(int(f.Fd()))
	}
}

func paint(code, s string) string {
	if !colored {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// findFileAndLine converts a token to a file-specific location
func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "unknown", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

func location(tok token.Token) string {
	filename, line, col := findFileAndLine(tok)
	if col > 0 {
		return fmt.Sprintf("%s:%d:%d", filename, line, col)
	}
	return fmt.Sprintf("%s:%d", filename, line)
}

// printErrorLine prints the source line and, when the column is known, a caret under it
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line <= 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum > 1 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	if tok.Column <= 0 {
		return
	}

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", tok.Column-1), paint("32", caret))
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...interface{}) {
	fmt.Fprintf(output, "%s: %s ", location(tok), paint("31", "error:"))
	fmt.Fprintf(output, format, args...)
	fmt.Fprintln(output)
	printErrorLine(output, tok)
	exit(1)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(output, "%s: %s ", location(tok), paint("33", "warning:"))
	fmt.Fprintf(output, format, args...)
	fmt.Fprintf(output, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(output, tok)
}

// SourceLine returns the text of the 1-based line of the file at path. It
// returns an empty string when the file cannot be read or is shorter.
func SourceLine(path string, line int) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for i := 1; sc.Scan(); i++ {
		if i == line {
			return sc.Text()
		}
	}
	return ""
}

// ReportLineError renders a diagnostic for a message that only knows its
// line. With quote set, that line is quoted from the file at path.
func ReportLineError(w io.Writer, path string, line int, msg string, quote bool) {
	fmt.Fprintf(w, "%s:%d: %s %s\n", path, line, paint("31", "error:"), msg)
	if !quote {
		return
	}
	if text := SourceLine(path, line); text != "" {
		fmt.Fprintf(w, "  %d | %s\n", line, text)
	}
}

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int64) int64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
