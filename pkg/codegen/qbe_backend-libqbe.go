//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/config"
	"modernc.org/libqbe"
)

func (b *qbeBackend) Generate(unit *binder.Unit, cfg *config.Config) (*bytes.Buffer, error) {
	qbeIR, err := b.GenerateIR(unit, cfg)
	if err != nil {
		return nil, err
	}

	var asmBuf bytes.Buffer
	err = libqbe.Main(cfg.QbeTarget, "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil)
	if err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", qbeIR, err)
	}
	return &asmBuf, nil
}
