// Package runtime holds the assembly helpers that generated x86_64 programs
// call for comparisons and shifts. The driver assembles them next to the
// program and links both with the C library.
package runtime

import (
	_ "embed"
	"io"
	"os"
	"strings"
)

//go:embed helpers.asm
var source string

// Symbols are the routines the helpers define. Each takes its operands in
// rdi and rsi and returns the result in rax.
var Symbols = []string{
	"cmp_less", "cmp_great", "cmp_eq", "cmp_neq", "cmp_leq", "cmp_geq",
	"shlf", "shrf",
}

// Source returns the helpers as Intel-syntax GNU assembly.
func Source() string { return source }

// WriteTo writes the helper assembly to w.
func WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, strings.NewReader(source))
}

// WriteFile writes the helper assembly to a new file at path.
func WriteFile(path string) error {
	return os.WriteFile(path, []byte(source), 0644)
}
