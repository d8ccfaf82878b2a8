package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestSourceDefinesEverySymbol(t *testing.T) {
	src := Source()
	be.True(t, strings.HasPrefix(src, ".intel_syntax noprefix"))
	for _, sym := range Symbols {
		be.True(t, strings.Contains(src, ".global "+sym+"\n"))
		be.True(t, strings.Contains(src, "\n"+sym+":\n"))
	}
}

func TestShiftRightIsArithmetic(t *testing.T) {
	i := strings.Index(Source(), "shrf:")
	be.True(t, i >= 0)
	be.True(t, strings.Contains(Source()[i:], "sar rax, cl"))
}

func TestWriteTo(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteTo(&buf)
	be.Err(t, err, nil)
	be.Equal(t, n, int64(len(Source())))
	be.Equal(t, buf.String(), Source())
}
