package proc

import (
	"fmt"

	"github.com/lunixbochs/ukern/go/kernel/fd"
	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// Program is a loaded user image ready to run on its own thread.
type Program interface {
	// Run executes user code, calling trap for every system call, and returns
	// once trap answers something other than Resume. A non-nil error means
	// user code faulted and the process must be killed.
	Run(p *Process, trap Trapper) (models.Outcome, error)
	Memory() cpu.Memory
	// Executable is the image file held open for the process lifetime, or nil.
	Executable() filesys.File
	Close() error
}

// Loader builds a Program from an argument vector. argv[0] names the image.
type Loader interface {
	Load(argv []string) (Program, error)
}

// Trapper handles a system call trap raised by p.
type Trapper interface {
	Trap(p *Process, f *models.TrapFrame) models.Outcome
}

type child struct {
	exit   *ExitRecord
	waited bool
}

// Process is a running user program. Everything but Exit belongs to the
// process's own thread; Exit is shared with the parent.
type Process struct {
	Pid     int
	Name    string
	Cmdline string
	Parent  *Process
	Files   *fd.Table
	Space   *uaccess.Space
	Exit    *ExitRecord

	exe      filesys.File
	children map[int]*child
	finished chan struct{}
}

func (p *Process) String() string {
	return fmt.Sprintf("%s[%d]", p.Name, p.Pid)
}

// Finished is closed once p's thread has returned and its address space and
// program are released. It follows Exit.Done.
func (p *Process) Finished() <-chan struct{} {
	return p.finished
}

// Children returns the pids this process may still wait for.
func (p *Process) Children() []int {
	var pids []int
	for pid, c := range p.children {
		if !c.waited {
			pids = append(pids, pid)
		}
	}
	return pids
}
