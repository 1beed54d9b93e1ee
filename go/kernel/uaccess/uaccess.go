// Package uaccess is the only code allowed to touch user addresses from the
// kernel. Every access is a single byte, checked against PhysBase and then
// attempted inside a probe window: a page fault raised during the attempt is
// claimed by the space's fault hook and turned into a failed result.
package uaccess

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/models/cpu"
)

// PhysBase splits user addresses (below) from kernel-only addresses.
const PhysBase = 0xC0000000

// ErrFault is the cause of every error returned for a bad user address.
var ErrFault = errors.New("bad user address")

// KernelFault is the panic value for a page fault raised by kernel code
// outside a probe window.
type KernelFault struct {
	Access int
	Addr   uint64
}

func (k *KernelFault) Error() string {
	return fmt.Sprintf("kernel page fault (access %d) at %#x", k.Access, k.Addr)
}

// Space is one process's view of its user memory. It belongs to the process
// thread and is not safe for concurrent use.
type Space struct {
	mem  cpu.Memory
	hook cpu.Hook

	probing bool
	faulted bool
}

// NewSpace installs the fault hook that cooperates with GetUser and PutUser.
func NewSpace(mem cpu.Memory) (*Space, error) {
	s := &Space{mem: mem}
	hh, err := mem.HookAdd(cpu.HOOK_MEM_ERR, cpu.MemFaultCb(s.pageFault), 1, 0)
	if err != nil {
		return nil, errors.Wrap(err, "installing fault hook")
	}
	s.hook = hh
	return s, nil
}

func (s *Space) Memory() cpu.Memory {
	return s.mem
}

// Release removes the fault hook. The space must not be used afterwards.
func (s *Space) Release() error {
	if s.hook == nil {
		return nil
	}
	err := s.mem.HookDel(s.hook)
	s.hook = nil
	return err
}

func (s *Space) pageFault(_ cpu.Memory, access int, addr uint64, size int, val int64) bool {
	if !s.probing {
		panic(&KernelFault{Access: access, Addr: addr})
	}
	s.faulted = true
	return true
}

// GetUser reads the byte at addr. It reports false for kernel addresses
// (never touched) and for unmapped or unreadable user addresses.
func (s *Space) GetUser(addr uint64) (byte, bool) {
	if addr >= PhysBase {
		return 0, false
	}
	s.probing, s.faulted = true, false
	p, err := s.mem.ReadProt(addr, 1, cpu.PROT_READ)
	s.probing = false
	if err != nil || s.faulted {
		return 0, false
	}
	return p[0], true
}

// PutUser writes b to addr. It reports false, with nothing written, for
// kernel addresses and for unmapped or read-only user addresses.
func (s *Space) PutUser(addr uint64, b byte) bool {
	if addr >= PhysBase {
		return false
	}
	s.probing, s.faulted = true, false
	err := s.mem.WriteProt(addr, []byte{b}, cpu.PROT_WRITE)
	s.probing = false
	return err == nil && !s.faulted
}

// CopyIn fills dst from user memory at addr, stopping at the first bad byte.
func (s *Space) CopyIn(addr uint64, dst []byte) error {
	for i := range dst {
		b, ok := s.GetUser(addr + uint64(i))
		if !ok {
			return errors.Wrapf(ErrFault, "read %#x", addr+uint64(i))
		}
		dst[i] = b
	}
	return nil
}

// CopyOut stores src into user memory at addr, stopping at the first bad byte.
// Bytes before the failing one have already been written.
func (s *Space) CopyOut(addr uint64, src []byte) error {
	for i, b := range src {
		if !s.PutUser(addr+uint64(i), b) {
			return errors.Wrapf(ErrFault, "write %#x", addr+uint64(i))
		}
	}
	return nil
}

// ReadString copies a NUL-terminated string from addr. Strings longer than
// max bytes are truncated at max.
func (s *Space) ReadString(addr uint64, max int) (string, error) {
	var out []byte
	for i := 0; i < max; i++ {
		b, ok := s.GetUser(addr + uint64(i))
		if !ok {
			return "", errors.Wrapf(ErrFault, "string byte %#x", addr+uint64(i))
		}
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out), nil
}

// CheckRange validates every page of [addr, addr+size). With write set, each
// probed byte is read and written back unchanged so read-only pages fail too.
func (s *Space) CheckRange(addr, size uint64, write bool) error {
	if size == 0 {
		return nil
	}
	last := addr + size - 1
	if last < addr || last >= PhysBase {
		return errors.Wrapf(ErrFault, "range %#x+%#x", addr, size)
	}
	for a := addr; ; {
		b, ok := s.GetUser(a)
		if ok && write {
			ok = s.PutUser(a, b)
		}
		if !ok {
			return errors.Wrapf(ErrFault, "range %#x+%#x at %#x", addr, size, a)
		}
		if a == last {
			return nil
		}
		next := cpu.PageDown(a) + cpu.PAGE_SIZE
		if next > last {
			next = last
		}
		a = next
	}
}

// IsFault reports whether err came from a bad user address.
func IsFault(err error) bool {
	return err != nil && errors.Cause(err) == ErrFault
}
