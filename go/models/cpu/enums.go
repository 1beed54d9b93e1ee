package cpu

// base hook enums on Unicorn's for simplicity
// https://github.com/unicorn-engine/unicorn/blob/master/bindings/go/unicorn/unicorn_const.go
const (
	// hook CPU interrupts
	HOOK_INTR = 1

	// hook all memory errors
	HOOK_MEM_ERR = 1008
)

// these errors are used for HOOK_MEM_ERR
const (
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
	MEM_FETCH_UNMAPPED = 21
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_FETCH_PROT     = 14
)

// these constants are used for memory protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)

// PAGE_SIZE is the mapping granularity. Map, Prot and Unmap round to it.
const PAGE_SIZE = 0x1000

// Align widens [addr, addr+size) to whole pages.
func Align(addr, size uint64) (uint64, uint64) {
	end := (addr + size + PAGE_SIZE - 1) &^ (PAGE_SIZE - 1)
	addr &^= PAGE_SIZE - 1
	return addr, end - addr
}

// PageDown rounds addr down to a page boundary.
func PageDown(addr uint64) uint64 {
	return addr &^ (PAGE_SIZE - 1)
}
