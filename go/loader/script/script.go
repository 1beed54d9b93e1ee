// Package script runs user programs written as Go functions against a
// simulated address space. Programs reach the kernel only through the same
// trap path as machine code: Context.Syscall pushes the call number and
// arguments on the user stack and raises the trap.
package script

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/loader"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// DataSize is the read-write region mapped at loader.FlatBase for Alloc.
const DataSize = 16 * cpu.PAGE_SIZE

// Func is a user program. Its return value is passed to exit.
type Func func(c *Context) int

// Loader maps program names to functions. When FS is set, a program also
// needs a file of the same name, which is held open and write-denied while
// the program runs.
type Loader struct {
	FS filesys.FS

	mu    sync.Mutex
	progs map[string]Func
}

func NewLoader(fs filesys.FS) *Loader {
	return &Loader{FS: fs, progs: make(map[string]Func)}
}

func (l *Loader) Register(name string, fn Func) {
	l.mu.Lock()
	l.progs[name] = fn
	l.mu.Unlock()
}

func (l *Loader) Load(argv []string) (proc.Program, error) {
	l.mu.Lock()
	fn, ok := l.progs[argv[0]]
	l.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("%s: no such program", argv[0])
	}
	var exe filesys.File
	if l.FS != nil {
		if exe, ok = l.FS.Open(argv[0]); !ok {
			return nil, errors.Errorf("%s: no such file", argv[0])
		}
		exe.DenyWrite()
	}
	mem := cpu.NewMem(32, binary.LittleEndian)
	if err := mem.MemMapProt(loader.FlatBase, DataSize, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
		if exe != nil {
			exe.Close()
		}
		return nil, errors.Wrap(err, "mapping data")
	}
	sp, err := loader.SetupStack(mem, argv)
	if err != nil {
		if exe != nil {
			exe.Close()
		}
		return nil, err
	}
	return &program{fn: fn, argv: argv, mem: mem, exe: exe, sp: sp}, nil
}

type program struct {
	fn   Func
	argv []string
	mem  *cpu.Mem
	exe  filesys.File
	sp   uint32
}

func (pr *program) Memory() cpu.Memory       { return pr.mem }
func (pr *program) Executable() filesys.File { return pr.exe }
func (pr *program) Close() error             { return nil }

// stop unwinds a program once the kernel says it must not resume.
type stop struct {
	outcome models.Outcome
}

// UserFault is a page fault raised by user code itself.
type UserFault struct {
	Addr uint64
}

func (u *UserFault) Error() string {
	return fmt.Sprintf("user page fault at %#x", u.Addr)
}

func (pr *program) Run(p *proc.Process, trap proc.Trapper) (outcome models.Outcome, err error) {
	c := &Context{
		Argv: pr.argv,
		Pid:  p.Pid,
		mem:  pr.mem,
		sp:   pr.sp,
		heap: loader.FlatBase,
		p:    p,
		trap: trap,
	}
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case stop:
				outcome, err = v.outcome, nil
			case *UserFault:
				outcome, err = models.Resume, v
			default:
				panic(r)
			}
		}
	}()
	code := pr.fn(c)
	c.Exit(code)
	return models.Resume, errors.New("exit returned")
}
