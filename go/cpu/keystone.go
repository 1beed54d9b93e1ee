package cpu

import (
	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	"github.com/pkg/errors"
)

// Assembler builds 32-bit x86 user images from source text.
type Assembler struct {
	ks *ks.Keystone
}

func NewAssembler() (*Assembler, error) {
	k, err := ks.New(ks.ARCH_X86, ks.MODE_32)
	if err != nil {
		return nil, errors.Wrap(err, "ks.New() failed")
	}
	return &Assembler{ks: k}, nil
}

// Asm assembles src as if loaded at addr.
func (a *Assembler) Asm(src string, addr uint64) ([]byte, error) {
	out, _, ok := a.ks.Assemble(src, addr)
	if !ok {
		return nil, errors.Wrap(a.ks.LastError(), "ks.Assemble() failed")
	}
	return out, nil
}

func (a *Assembler) Close() error {
	return a.ks.Close()
}
