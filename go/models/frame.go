package models

import "fmt"

// TrapFrame is the part of the saved user context the syscall layer touches:
// the user stack pointer at the trap, and the return value slot.
type TrapFrame struct {
	Esp uint32
	Eax uint32
}

func (f *TrapFrame) String() string {
	return fmt.Sprintf("esp=%#08x eax=%#08x", f.Esp, f.Eax)
}

// Outcome tells the trap entry what to do with the trapping process.
type Outcome int

const (
	// Resume returns to user mode with Eax as the result.
	Resume Outcome = iota
	// Terminate means the process is gone and must not run again.
	Terminate
	// Halt means the machine is powering off.
	Halt
)

func (o Outcome) String() string {
	switch o {
	case Resume:
		return "resume"
	case Terminate:
		return "terminate"
	case Halt:
		return "halt"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}
