package cpu

import (
	"fmt"
	"sort"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sorted list of mapped regions. It does no alignment of its own.
type MemSim struct {
	Mem Pages
}

// Checks whether the address range exists in the currently-mapped memory.
// If prot > 0, ensures that each region has the entire protection mask provided.
func (m *MemSim) RangeValid(addr, size uint64, prot int) (mapGood bool, protGood bool) {
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return false, false
	}
	protGood = true
	end := addr + size
	for _, mm := range m.Mem[first:] {
		if !mm.Contains(addr) {
			break
		}
		if prot > 0 && mm.Prot&prot != prot {
			protGood = false
		}
		addr = mm.Addr + mm.Size
		if addr >= end {
			break
		}
	}
	return addr >= end, protGood
}

// Maps <addr> - <addr>+<size> with prot, zero filled.
// Overlapped regions are unmapped first.
func (m *MemSim) Map(addr, size uint64, prot int) *Page {
	m.Unmap(addr, size)
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: make([]byte, size)}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// splits regions at the edges of addr:size and calls fn on each overlapping piece.
// fn returns false to drop the piece.
func (m *MemSim) carve(addr, size uint64, fn func(mm *Page) bool) {
	tmp := make(Pages, 0, len(m.Mem))
	for _, mm := range m.Mem {
		if !mm.Overlaps(addr, size) {
			tmp = append(tmp, mm)
			continue
		}
		left, right := mm.Split(addr, size)
		if left != nil {
			tmp = append(tmp, left)
		}
		if fn(mm) {
			tmp = append(tmp, mm)
		}
		if right != nil {
			tmp = append(tmp, right)
		}
	}
	m.Mem = tmp
}

func (m *MemSim) Prot(addr, size uint64, prot int) {
	m.carve(addr, size, func(mm *Page) bool {
		mm.Prot = prot
		return true
	})
}

func (m *MemSim) Unmap(addr, size uint64) {
	m.carve(addr, size, func(*Page) bool { return false })
}

func (m *MemSim) copy(addr uint64, p []byte, write bool) {
	i := m.Mem.bsearch(addr)
	if i < 0 {
		return
	}
	for _, mm := range m.Mem[i:] {
		if len(p) == 0 || !mm.Contains(addr) {
			break
		}
		o := addr - mm.Addr
		var n int
		if write {
			n = copy(mm.Data[o:], p)
		} else {
			n = copy(p, mm.Data[o:])
		}
		addr, p = addr+uint64(n), p[n:]
	}
}

// Read fills p from addr. Nothing is copied unless the whole range is valid.
func (m *MemSim) Read(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		if prot&PROT_EXEC == PROT_EXEC {
			return &MemError{Addr: addr, Size: len(p), Enum: MEM_FETCH_UNMAPPED}
		}
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	} else if !gprot {
		if prot&PROT_EXEC == PROT_EXEC {
			return &MemError{Addr: addr, Size: len(p), Enum: MEM_FETCH_PROT}
		}
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_PROT}
	}
	m.copy(addr, p, false)
	return nil
}

// Write stores p at addr. Nothing is written unless the whole range is valid.
func (m *MemSim) Write(addr uint64, p []byte, prot int) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_PROT}
	}
	m.copy(addr, p, true)
	return nil
}
