// Package loader turns executable files into memory images for user
// processes: 32-bit x86 ELF executables, or flat binaries loaded at FlatBase.
package loader

import (
	"bytes"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// FlatBase is where flat binaries are loaded and entered.
const FlatBase = 0x08048000

var ErrEmpty = errors.New("empty executable")

// Segment is one mapped region of an image. Data is copied to Addr and the
// rest of Size is zero.
type Segment struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte
}

type Image struct {
	Entry    uint64
	Segments []Segment
}

// Load identifies p by its magic and lays it out.
func Load(p []byte) (*Image, error) {
	if len(p) == 0 {
		return nil, errors.WithStack(ErrEmpty)
	}
	r := bytes.NewReader(p)
	var img *Image
	var err error
	if MatchElf(r) {
		img, err = LoadElf(r)
	} else {
		img, err = LoadFlat(p)
	}
	if err != nil {
		return nil, err
	}
	for _, seg := range img.Segments {
		if seg.Addr+seg.Size < seg.Addr || seg.Addr+seg.Size > uaccess.PhysBase-StackSize {
			return nil, errors.Errorf("segment %#x+%#x overlaps the stack or kernel", seg.Addr, seg.Size)
		}
	}
	return img, nil
}

// Map maps and fills every segment of img in mem. A page shared by two
// segments gets the union of their protections.
func (img *Image) Map(mem cpu.Memory) error {
	prots := make(map[uint64]int)
	var pages []uint64
	for _, seg := range img.Segments {
		for addr := cpu.PageDown(seg.Addr); addr < seg.Addr+seg.Size; addr += cpu.PAGE_SIZE {
			if _, ok := prots[addr]; !ok {
				pages = append(pages, addr)
			}
			prots[addr] |= seg.Prot
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	for _, addr := range pages {
		if err := mem.MemMapProt(addr, cpu.PAGE_SIZE, prots[addr]); err != nil {
			return errors.Wrapf(err, "mapping %#x", addr)
		}
	}
	for _, seg := range img.Segments {
		if err := mem.MemWrite(seg.Addr, seg.Data); err != nil {
			return errors.Wrapf(err, "writing %#x", seg.Addr)
		}
	}
	return nil
}

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}
