package unicorn

import (
	"runtime"

	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/kernel/syscalls"
	"github.com/lunixbochs/ukern/go/loader"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// Loader reads executables from FS. The file stays open and write-denied
// for as long as the process runs.
type Loader struct {
	FS filesys.FS
}

func (l *Loader) Load(argv []string) (proc.Program, error) {
	exe, ok := l.FS.Open(argv[0])
	if !ok {
		return nil, errors.Errorf("%s: no such file", argv[0])
	}
	exe.DenyWrite()
	prog, err := l.load(exe, argv)
	if err != nil {
		exe.Close()
		return nil, err
	}
	return prog, nil
}

func (l *Loader) load(exe filesys.File, argv []string) (*program, error) {
	image := make([]byte, exe.Length())
	if n := exe.Read(image); int(n) != len(image) {
		return nil, errors.Errorf("short read of %s: %d/%d", argv[0], n, len(image))
	}
	img, err := loader.Load(image)
	if err != nil {
		return nil, err
	}
	task, err := NewTask()
	if err != nil {
		return nil, err
	}
	if err := setup(task, img, argv); err != nil {
		task.Close()
		return nil, err
	}
	return &program{task: task, exe: exe, entry: img.Entry}, nil
}

func setup(task *Task, img *loader.Image, argv []string) error {
	if err := img.Map(task); err != nil {
		return err
	}
	sp, err := loader.SetupStack(task, argv)
	if err != nil {
		return err
	}
	return errors.Wrap(task.RegWrite(uc.X86_REG_ESP, uint64(sp)), "setting stack pointer")
}

type program struct {
	task  *Task
	exe   filesys.File
	entry uint64
}

func (pr *program) Memory() cpu.Memory       { return pr.task }
func (pr *program) Executable() filesys.File { return pr.exe }

func (pr *program) Close() error {
	return pr.task.Close()
}

// Run emulates until the kernel stops the process. Every int 0x30 becomes a
// trap; any other interrupt, and any emulator error, is a user fault.
func (pr *program) Run(p *proc.Process, trap proc.Trapper) (models.Outcome, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	outcome := models.Resume
	var fault error
	hh, err := pr.task.HookAdd(cpu.HOOK_INTR, func(c cpu.Cpu, intno uint32) {
		if intno != syscalls.TrapVector {
			fault = errors.Errorf("unexpected interrupt %#x", intno)
			c.Stop()
			return
		}
		esp, err := c.RegRead(uc.X86_REG_ESP)
		if err != nil {
			fault = errors.Wrap(err, "reading esp")
			c.Stop()
			return
		}
		f := &models.TrapFrame{Esp: uint32(esp)}
		outcome = trap.Trap(p, f)
		if outcome != models.Resume {
			c.Stop()
			return
		}
		if err := c.RegWrite(uc.X86_REG_EAX, uint64(f.Eax)); err != nil {
			fault = errors.Wrap(err, "writing eax")
			c.Stop()
		}
	}, 1, 0)
	if err != nil {
		return models.Resume, err
	}
	defer pr.task.HookDel(hh)

	log.L.Trace("entering user mode", "pid", p.Pid, "entry", pr.entry)
	err = pr.task.Start(pr.entry, 0)
	switch {
	case outcome != models.Resume:
		return outcome, nil
	case fault != nil:
		return models.Resume, fault
	case err != nil:
		return models.Resume, errors.Wrap(err, "user fault")
	}
	return models.Resume, errors.New("user code stopped without exiting")
}
