package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// StackSize is the user stack mapped just below PhysBase.
const StackSize = cpu.PAGE_SIZE

var ErrArgsTooLong = errors.New("arguments do not fit on the stack")

// argFrame is what a new process finds at its stack pointer: a null return
// address, argc, argv, then the argv array itself.
type argFrame struct {
	Ret  uint32   `struc:"uint32"`
	Argc uint32   `struc:"uint32,sizeof=Ptrs"`
	Argv uint32   `struc:"uint32"`
	Ptrs []uint32 `struc:"[]uint32"`
	Null uint32   `struc:"uint32"`
}

// SetupStack maps the stack page and pushes argv in the usual 80x86 layout:
// the strings at the top, word-aligned, then the frame. It returns the
// initial stack pointer.
func SetupStack(mem cpu.Memory, argv []string) (uint32, error) {
	top := uint64(uaccess.PhysBase)
	base := top - StackSize
	if err := mem.MemMapProt(base, StackSize, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
		return 0, errors.Wrap(err, "mapping stack")
	}
	frame := &argFrame{Ptrs: make([]uint32, len(argv))}
	sp := top
	for i := len(argv) - 1; i >= 0; i-- {
		s := append([]byte(argv[i]), 0)
		if sp-base < uint64(len(s)) {
			return 0, errors.WithStack(ErrArgsTooLong)
		}
		sp -= uint64(len(s))
		if err := mem.MemWrite(sp, s); err != nil {
			return 0, err
		}
		frame.Ptrs[i] = uint32(sp)
	}
	sp &^= 3

	var buf bytes.Buffer
	size, err := struc.Sizeof(frame)
	if err != nil {
		return 0, errors.Wrap(err, "struc.Sizeof() failed")
	}
	if sp-base < uint64(size) {
		return 0, errors.WithStack(ErrArgsTooLong)
	}
	sp -= uint64(size)
	frame.Argv = uint32(sp) + 12
	if err := struc.PackWithOrder(&buf, frame, binary.LittleEndian); err != nil {
		return 0, errors.Wrap(err, "struc.Pack() failed")
	}
	if err := mem.MemWrite(sp, buf.Bytes()); err != nil {
		return 0, err
	}
	return uint32(sp), nil
}
