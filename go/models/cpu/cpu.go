package cpu

type Hook interface{}

// Memory is the minimum an address space backend must provide to the kernel.
// Both the simulated Mem and the unicorn-backed task satisfy it.
type Memory interface {
	// memory mapping
	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	// unchecked memory IO, for loaders
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error

	// memory IO with protection checks; failures run the HOOK_MEM_ERR chain
	ReadProt(addr, size uint64, prot int) ([]byte, error)
	WriteProt(addr uint64, p []byte, prot int) error

	// hooks
	HookAdd(htype int, cb interface{}, begin, end uint64, extra ...int) (Hook, error)
	HookDel(hook Hook) error
}

// Cpu abstracts an emulator able to run user code on top of a Memory.
type Cpu interface {
	Memory

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// execution
	Start(begin, until uint64) error
	Stop() error

	// cleanup
	Close() error
}
