package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mem wraps MemSim to make a Memory interface-compatible address space.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask  uint64
	hooks *Hooks
	// MemSim is private, so any kernel-facing functionality needs to be wrapped by Mem
	sim *MemSim

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	m := &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
	m.hooks = NewHooks(m)
	return m
}

func (m *Mem) Bits() uint                  { return m.bits }
func (m *Mem) ByteOrder() binary.ByteOrder { return m.order }

// Mappings returns the current region list, sorted by address.
func (m *Mem) Mappings() Pages {
	return m.sim.Mem
}

// Accessible reports whether every byte of [addr, addr+size) is mapped with
// at least prot. It never runs fault hooks.
func (m *Mem) Accessible(addr, size uint64, prot int) bool {
	mapped, protected := m.sim.RangeValid(addr, size, prot)
	return mapped && protected
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	addr, size = Align(addr, size)
	if (addr+size-1)&m.mask != addr+size-1 {
		return errors.Errorf("region %#x+%#x outside memory range", addr, size)
	}
	m.sim.Map(addr, size, prot)
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	addr, size = Align(addr, size)
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	addr, size = Align(addr, size)
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

func (m *Mem) fault(err error, addr uint64, size int, val int64) error {
	if merr, ok := err.(*MemError); ok {
		m.hooks.OnFault(merr.Enum, addr, size, val)
	}
	return err
}

// Read while checking protections. Faults run the HOOK_MEM_ERR chain.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, m.fault(err, addr, int(size), 0)
	}
	return p, nil
}

// Write while checking protections. Faults run the HOOK_MEM_ERR chain.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	if err := m.sim.Write(addr, p, prot); err != nil {
		var val int64
		if len(p) > 0 {
			val = int64(p[0])
		}
		return m.fault(err, addr, len(p), val)
	}
	return nil
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	switch size {
	case 8:
		return m.order.Uint64(p), nil
	case 4:
		return uint64(m.order.Uint32(p)), nil
	case 2:
		return uint64(m.order.Uint16(p)), nil
	case 1:
		return uint64(p[0]), nil
	}
	return 0, errors.Errorf("unsupported uint size: %d", size)
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	switch size {
	case 8:
		m.order.PutUint64(buf[:], val)
	case 4:
		m.order.PutUint32(buf[:], uint32(val))
	case 2:
		m.order.PutUint16(buf[:], uint16(val))
	case 1:
		buf[0] = byte(val)
	default:
		return errors.Errorf("unsupported uint size: %d", size)
	}
	return m.WriteProt(addr, buf[:size], prot)
}

func (m *Mem) HookAdd(htype int, cb interface{}, begin, end uint64, extra ...int) (Hook, error) {
	return m.hooks.HookAdd(htype, cb, begin, end, extra...)
}

func (m *Mem) HookDel(hook Hook) error {
	return m.hooks.HookDel(hook)
}
