package loader

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/models/cpu"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

func MatchElf(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r), elfMagic)
}

// LoadElf reads the PT_LOAD segments of a 32-bit x86 executable.
func LoadElf(r io.ReaderAt) (*Image, error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "elf.NewFile() failed")
	}
	if file.Class != elf.ELFCLASS32 || file.Machine != elf.EM_386 {
		return nil, errors.Errorf("unsupported ELF: %s %s", file.Class, file.Machine)
	}
	if file.Type != elf.ET_EXEC {
		return nil, errors.Errorf("unsupported ELF type: %s", file.Type)
	}
	img := &Image{Entry: file.Entry}
	for _, prog := range file.Progs {
		switch prog.Type {
		case elf.PT_LOAD:
		case elf.PT_DYNAMIC, elf.PT_INTERP, elf.PT_SHLIB:
			return nil, errors.Errorf("dynamic executables are not supported (%s)", prog.Type)
		default:
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, errors.Errorf("segment at %#x: file size exceeds memory size", prog.Vaddr)
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "reading segment at %#x", prog.Vaddr)
		}
		img.Segments = append(img.Segments, Segment{
			Addr: prog.Vaddr,
			Size: prog.Memsz,
			Prot: progProt(prog.Flags),
			Data: data,
		})
	}
	if len(img.Segments) == 0 {
		return nil, errors.New("ELF has no loadable segments")
	}
	return img, nil
}

func progProt(flags elf.ProgFlag) int {
	prot := 0
	if flags&elf.PF_R != 0 {
		prot |= cpu.PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= cpu.PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= cpu.PROT_EXEC
	}
	return prot
}
