// Package ukern wires the kernel together: file system, console, process
// manager and system call dispatcher.
package ukern

import (
	"os"

	"github.com/lunixbochs/ukern/go/kernel/console"
	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/kernel/syscalls"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
)

type Machine struct {
	Config   *models.Config
	FS       *filesys.MemFS
	Console  *console.Console
	Power    *console.Power
	Procs    *proc.Manager
	Syscalls *syscalls.Dispatcher
}

// NewMachine builds a machine whose processes are loaded by loader. A nil fs
// gets a fresh file system of config.DiskSize bytes.
func NewMachine(config *models.Config, fs *filesys.MemFS, loader proc.Loader) *Machine {
	if fs == nil {
		fs = filesys.NewMemFS(config.DiskSize)
	}
	in, out := config.Stdin, config.Stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	m := &Machine{
		Config:  config,
		FS:      fs,
		Console: console.New(in, out),
		Power:   console.NewPower(),
	}
	m.Procs = proc.NewManager(loader, m.Console)
	m.Syscalls = syscalls.NewDispatcher(config, fs, m.Procs, m.Console, m.Power)
	m.Procs.SetTrapper(m.Syscalls)
	return m
}

// Run boots cmdline as the initial process. It returns that process's exit
// status once it exits and its program is closed, or 0 if the machine halts
// first. Other processes may still be running when Run returns.
func (m *Machine) Run(cmdline string) (models.ExitStatus, error) {
	p, err := m.Procs.Start(nil, cmdline)
	if err != nil {
		return models.KilledStatus, err
	}
	log.L.Debug("booted", "pid", p.Pid, "cmdline", cmdline)
	select {
	case <-p.Exit.Done():
		<-p.Finished()
		code, _ := p.Exit.Code()
		return models.ExitStatus(code), nil
	case <-m.Power.Off():
		log.L.Debug("powering off")
		return 0, nil
	}
}

func (m *Machine) Halted() bool {
	return m.Power.Halted()
}
