// Package syscalls decodes system call traps and carries them out on behalf
// of the trapping process.
package syscalls

import "fmt"

// TrapVector is the software interrupt user programs raise for a system call.
const TrapVector = 0x30

// Num is a system call number, the first word on the user stack at the trap.
type Num uint32

const (
	SYS_HALT Num = iota
	SYS_EXIT
	SYS_EXEC
	SYS_WAIT
	SYS_CREATE
	SYS_REMOVE
	SYS_OPEN
	SYS_FILESIZE
	SYS_READ
	SYS_WRITE
	SYS_SEEK
	SYS_TELL
	SYS_CLOSE
)

func (n Num) String() string {
	if e, ok := table[n]; ok {
		return e.name
	}
	return fmt.Sprintf("syscall_%d", uint32(n))
}
