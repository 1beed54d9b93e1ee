package uaccess

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// WordSize is the width of the call number and of every argument slot.
const WordSize = 4

// Word reads the little-endian 32-bit word at addr.
func (s *Space) Word(addr uint64) (uint32, error) {
	var buf [WordSize]byte
	if err := s.CopyIn(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Unpack copies the argument block at addr into kernel storage and decodes it
// into v, a pointer to a struct of 32-bit struc fields. Nothing is decoded
// unless every byte of the block was readable.
func (s *Space) Unpack(addr uint64, v interface{}) error {
	n, err := struc.Sizeof(v)
	if err != nil {
		return errors.Wrap(err, "struc.Sizeof() failed")
	}
	buf := make([]byte, n)
	if err := s.CopyIn(addr, buf); err != nil {
		return err
	}
	return errors.Wrap(struc.UnpackWithOrder(bytes.NewReader(buf), v, binary.LittleEndian), "struc.Unpack() failed")
}

// ArgsAt returns where argument 1 lives for a trap with stack pointer sp.
func ArgsAt(sp uint32) uint64 {
	return uint64(sp) + WordSize
}
