package script

import (
	"encoding/binary"

	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/kernel/syscalls"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/loader"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// Context is the user-mode view a Func runs with.
type Context struct {
	Argv []string
	Pid  int

	mem  *cpu.Mem
	sp   uint32
	heap uint64
	p    *proc.Process
	trap proc.Trapper
}

// Mem is the program's address space, for setup that bypasses protection.
func (c *Context) Mem() *cpu.Mem {
	return c.mem
}

// SP is the stack pointer the next trap would start from.
func (c *Context) SP() uint32 {
	return c.sp
}

// Alloc reserves size zeroed bytes in the data region, 4-byte aligned.
func (c *Context) Alloc(size int) uint32 {
	addr := c.heap
	c.heap = (c.heap + uint64(size) + 3) &^ 3
	if c.heap > loader.FlatBase+DataSize {
		panic("script: data region exhausted")
	}
	return uint32(addr)
}

// Bytes copies p into the data region.
func (c *Context) Bytes(p []byte) uint32 {
	addr := c.Alloc(len(p))
	c.Poke(uint64(addr), p)
	return addr
}

// String copies s and a NUL terminator into the data region.
func (c *Context) String(s string) uint32 {
	return c.Bytes(append([]byte(s), 0))
}

// Peek reads n bytes as user code would. A bad address faults the program.
func (c *Context) Peek(addr uint64, n int) []byte {
	if addr >= uaccess.PhysBase || !c.mem.Accessible(addr, uint64(n), cpu.PROT_READ) {
		panic(&UserFault{Addr: addr})
	}
	p, err := c.mem.MemRead(addr, uint64(n))
	if err != nil {
		panic(&UserFault{Addr: addr})
	}
	return p
}

// Poke writes p as user code would. A bad address faults the program.
func (c *Context) Poke(addr uint64, p []byte) {
	if addr >= uaccess.PhysBase || !c.mem.Accessible(addr, uint64(len(p)), cpu.PROT_WRITE) {
		panic(&UserFault{Addr: addr})
	}
	if err := c.mem.MemWrite(addr, p); err != nil {
		panic(&UserFault{Addr: addr})
	}
}

// TrapAt raises the system call trap with an arbitrary stack pointer and
// returns the result register.
func (c *Context) TrapAt(esp uint32) uint32 {
	f := &models.TrapFrame{Esp: esp}
	if outcome := c.trap.Trap(c.p, f); outcome != models.Resume {
		panic(stop{outcome})
	}
	return f.Eax
}

// Syscall pushes num and args below the stack pointer and traps.
func (c *Context) Syscall(num syscalls.Num, args ...uint32) uint32 {
	words := append([]uint32{uint32(num)}, args...)
	esp := c.sp - uint32(4*len(words))
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	c.Poke(uint64(esp), buf)
	return c.TrapAt(esp)
}

func (c *Context) Halt() {
	c.Syscall(syscalls.SYS_HALT)
}

func (c *Context) Exit(code int) {
	c.Syscall(syscalls.SYS_EXIT, uint32(int32(code)))
}

func (c *Context) Exec(cmdline string) int {
	return int(int32(c.Syscall(syscalls.SYS_EXEC, c.String(cmdline))))
}

func (c *Context) Wait(pid int) int {
	return int(int32(c.Syscall(syscalls.SYS_WAIT, uint32(int32(pid)))))
}

func (c *Context) Create(name string, size uint32) bool {
	return c.Syscall(syscalls.SYS_CREATE, c.String(name), size) != 0
}

func (c *Context) Remove(name string) bool {
	return c.Syscall(syscalls.SYS_REMOVE, c.String(name)) != 0
}

func (c *Context) Open(name string) int {
	return int(int32(c.Syscall(syscalls.SYS_OPEN, c.String(name))))
}

func (c *Context) Filesize(fd int) int {
	return int(int32(c.Syscall(syscalls.SYS_FILESIZE, uint32(int32(fd)))))
}

// Read reads into the user buffer at buf.
func (c *Context) Read(fd int, buf uint32, size uint32) int {
	return int(int32(c.Syscall(syscalls.SYS_READ, uint32(int32(fd)), buf, size)))
}

// Write writes from the user buffer at buf.
func (c *Context) Write(fd int, buf uint32, size uint32) int {
	return int(int32(c.Syscall(syscalls.SYS_WRITE, uint32(int32(fd)), buf, size)))
}

// Print writes s to the console.
func (c *Context) Print(s string) int {
	return c.Write(1, c.Bytes([]byte(s)), uint32(len(s)))
}

func (c *Context) Seek(fd int, pos uint32) {
	c.Syscall(syscalls.SYS_SEEK, uint32(int32(fd)), pos)
}

func (c *Context) Tell(fd int) uint32 {
	return c.Syscall(syscalls.SYS_TELL, uint32(int32(fd)))
}

func (c *Context) Close(fd int) {
	c.Syscall(syscalls.SYS_CLOSE, uint32(int32(fd)))
}
