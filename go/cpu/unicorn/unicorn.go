// Package unicorn runs user processes as 32-bit x86 code under the Unicorn
// emulator.
package unicorn

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/ukern/go/models/cpu"
)

// Task is one process's CPU and address space. A shadow MemSim tracks
// mappings so kernel accesses can be checked without touching the emulator.
type Task struct {
	uc.Unicorn

	sim   cpu.MemSim
	hooks *cpu.Hooks
}

func NewTask() (*Task, error) {
	u, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_32)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	t := &Task{Unicorn: u}
	t.hooks = cpu.NewHooks(t)
	return t, nil
}

func (t *Task) MemMapProt(addr, size uint64, prot int) error {
	addr, size = cpu.Align(addr, size)
	if err := t.Unicorn.MemMapProt(addr, size, prot); err != nil {
		return errors.Wrapf(err, "MemMapProt(%#x, %#x) failed", addr, size)
	}
	t.sim.Map(addr, size, prot)
	return nil
}

func (t *Task) MemProt(addr, size uint64, prot int) error {
	addr, size = cpu.Align(addr, size)
	if err := t.Unicorn.MemProtect(addr, size, prot); err != nil {
		return errors.Wrapf(err, "MemProtect(%#x, %#x) failed", addr, size)
	}
	t.sim.Prot(addr, size, prot)
	return nil
}

func (t *Task) MemUnmap(addr, size uint64) error {
	addr, size = cpu.Align(addr, size)
	for _, mm := range t.sim.Mem.FindRange(addr, size) {
		start, end := mm.Addr, mm.Addr+mm.Size
		if start < addr {
			start = addr
		}
		if end > addr+size {
			end = addr + size
		}
		if err := t.Unicorn.MemUnmap(start, end-start); err != nil {
			return errors.Wrapf(err, "MemUnmap(%#x, %#x) failed", start, end-start)
		}
	}
	t.sim.Unmap(addr, size)
	return nil
}

func (t *Task) check(addr, size uint64, prot int, write bool) error {
	mapped, protected := t.sim.RangeValid(addr, size, prot)
	switch {
	case !mapped && write:
		return &cpu.MemError{Addr: addr, Size: int(size), Enum: cpu.MEM_WRITE_UNMAPPED}
	case !mapped:
		return &cpu.MemError{Addr: addr, Size: int(size), Enum: cpu.MEM_READ_UNMAPPED}
	case !protected && write:
		return &cpu.MemError{Addr: addr, Size: int(size), Enum: cpu.MEM_WRITE_PROT}
	case !protected:
		return &cpu.MemError{Addr: addr, Size: int(size), Enum: cpu.MEM_READ_PROT}
	}
	return nil
}

// ReadProt reads through the emulator after checking the shadow mappings.
// Faults run the HOOK_MEM_ERR chain.
func (t *Task) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	if err := t.check(addr, size, prot, false); err != nil {
		t.hooks.OnFault(err.(*cpu.MemError).Enum, addr, int(size), 0)
		return nil, err
	}
	return t.Unicorn.MemRead(addr, size)
}

func (t *Task) WriteProt(addr uint64, p []byte, prot int) error {
	if err := t.check(addr, uint64(len(p)), prot, true); err != nil {
		var val int64
		if len(p) > 0 {
			val = int64(p[0])
		}
		t.hooks.OnFault(err.(*cpu.MemError).Enum, addr, len(p), val)
		return err
	}
	return t.Unicorn.MemWrite(addr, p)
}

// HookAdd registers kernel fault hooks on the task and forwards interrupt
// hooks to the emulator.
func (t *Task) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (cpu.Hook, error) {
	switch htype {
	case cpu.HOOK_MEM_ERR:
		return t.hooks.HookAdd(htype, cb, start, end, extra...)
	case cpu.HOOK_INTR:
		cbc, ok := cb.(func(cpu.Cpu, uint32))
		if !ok {
			return nil, errors.Errorf("bad callback type %T for HOOK_INTR", cb)
		}
		wrap := func(_ uc.Unicorn, intno uint32) { cbc(t, intno) }
		hh, err := t.Unicorn.HookAdd(uc.HOOK_INTR, wrap, start, end, extra...)
		return hh, errors.Wrap(err, "HookAdd(HOOK_INTR) failed")
	}
	return nil, errors.Errorf("unsupported hook type: %d", htype)
}

func (t *Task) HookDel(hh cpu.Hook) error {
	if uh, ok := hh.(uc.Hook); ok {
		return t.Unicorn.HookDel(uh)
	}
	return t.hooks.HookDel(hh)
}
