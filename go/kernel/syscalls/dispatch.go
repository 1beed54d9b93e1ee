package syscalls

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// Console is the keyboard and display shared by every process.
type Console interface {
	io.Writer
	ReadByte() (byte, error)
}

type Power interface {
	Halt()
	Halted() bool
}

// Dispatcher is installed as the trap handler of every process.
type Dispatcher struct {
	FS      filesys.FS
	Procs   *proc.Manager
	Console Console
	Power   Power
	Config  *models.Config

	trace *tracer
}

func NewDispatcher(config *models.Config, fs filesys.FS, procs *proc.Manager, console Console, power Power) *Dispatcher {
	d := &Dispatcher{
		FS:      fs,
		Procs:   procs,
		Console: console,
		Power:   power,
		Config:  config,
	}
	if config.TraceSys {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		d.trace = &tracer{out: out, strsize: config.Strsize, color: config.Color}
	}
	return d
}

// Trap decodes and runs the system call p raised. The call number is the
// word at f.Esp and argument n is the word at f.Esp+4n. A bad user address
// anywhere in the call kills p, as does an unknown number; neither writes a
// return value. Once the machine is halted no call runs and every trap
// answers Halt.
func (d *Dispatcher) Trap(p *proc.Process, f *models.TrapFrame) models.Outcome {
	if d.Power.Halted() {
		return models.Halt
	}
	word, err := p.Space.Word(uint64(f.Esp))
	if err != nil {
		return d.kill(p, "", errors.Wrap(err, "call number"))
	}
	num := Num(word)
	e, ok := table[num]
	if !ok {
		return d.kill(p, num.String(), errors.Wrapf(ErrUnknown, "number %d", word))
	}
	c := e.new()
	if e.argc > 0 {
		if err := p.Space.Unpack(uaccess.ArgsAt(f.Esp), c); err != nil {
			return d.kill(p, e.name, errors.Wrapf(err, "%s arguments", e.name))
		}
	}
	var line string
	if d.trace != nil {
		line = d.trace.enter(p, e.name, c)
	}
	res, err := c.do(d, p)
	if err != nil {
		return d.kill(p, line, errors.Wrap(err, e.name))
	}
	if d.trace != nil {
		d.trace.exit(p, line, c, res)
	}
	if res.hasRet {
		f.Eax = res.ret
	}
	return res.outcome
}

func (d *Dispatcher) kill(p *proc.Process, line string, err error) models.Outcome {
	if d.trace != nil {
		d.trace.killed(p, line)
	}
	log.L.Debug("killing process", "pid", p.Pid, "err", err)
	d.Procs.Kill(p, err)
	return models.Terminate
}

// userString copies a NUL-terminated string from user memory. Strings
// longer than a page are truncated.
func (d *Dispatcher) userString(p *proc.Process, addr Str) (string, error) {
	return p.Space.ReadString(uint64(addr), cpu.PAGE_SIZE)
}
