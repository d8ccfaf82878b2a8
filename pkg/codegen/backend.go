package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/config"
)

// Backend is the interface that all code generation backends must implement.
// Both methods expect a unit the binder accepted without error.
type Backend interface {
	// GenerateIR produces the backend's own textual output: final assembly for
	// the x86_64 backend, QBE IL for the qbe backend.
	GenerateIR(unit *binder.Unit, cfg *config.Config) (string, error)
	// Generate produces the target assembly.
	Generate(unit *binder.Unit, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the backend registered under name.
func SelectBackend(name string) (Backend, error) {
	switch name {
	case config.BackendX86, "":
		return NewX86Backend(), nil
	case config.BackendQBE:
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", name)
}
