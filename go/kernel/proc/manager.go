package proc

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/lunixbochs/ukern/go/kernel/fd"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
)

// Manager owns the process table. Each process runs on its own goroutine.
type Manager struct {
	Loader Loader
	// Console receives the "<name>: exit(<code>)" line of every exiting process.
	Console io.Writer
	// MaxFiles bounds each process's descriptor table.
	MaxFiles int

	mu      sync.Mutex
	procs   map[int]*Process
	nextPid int
	trap    Trapper
	wg      sync.WaitGroup
}

func NewManager(loader Loader, console io.Writer) *Manager {
	return &Manager{
		Loader:   loader,
		Console:  console,
		MaxFiles: fd.DefaultMax,
		procs:    make(map[int]*Process),
		nextPid:  1,
	}
}

// SetTrapper installs the system call handler. It must be called before the
// first Spawn.
func (m *Manager) SetTrapper(t Trapper) {
	m.trap = t
}

// Start loads cmdline and runs it on a new thread. The new process becomes a
// child of parent, which may be nil for the initial process. Load failures are
// reported before Start returns.
func (m *Manager) Start(parent *Process, cmdline string) (*Process, error) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	if m.trap == nil {
		return nil, errors.New("no trap handler installed")
	}
	prog, err := m.Loader.Load(argv)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", argv[0])
	}
	space, err := uaccess.NewSpace(prog.Memory())
	if err != nil {
		if exe := prog.Executable(); exe != nil {
			exe.AllowWrite()
			exe.Close()
		}
		prog.Close()
		return nil, err
	}
	m.mu.Lock()
	pid := m.nextPid
	m.nextPid++
	p := &Process{
		Pid:      pid,
		Name:     argv[0],
		Cmdline:  cmdline,
		Parent:   parent,
		Files:    fd.NewTable(m.MaxFiles),
		Space:    space,
		Exit:     NewExitRecord(),
		exe:      prog.Executable(),
		finished: make(chan struct{}),
		children: make(map[int]*child),
	}
	m.procs[pid] = p
	m.mu.Unlock()

	if parent != nil {
		parent.children[pid] = &child{exit: p.Exit}
	}
	log.L.Debug("process start", "pid", pid, "cmdline", cmdline)

	m.wg.Add(1)
	go m.run(p, prog)
	return p, nil
}

func (m *Manager) run(p *Process, prog Program) {
	defer m.wg.Done()
	defer close(p.finished)
	outcome, err := prog.Run(p, m.trap)
	switch {
	case err != nil:
		log.L.Debug("process fault", "pid", p.Pid, "err", err)
		m.Kill(p, err)
	case outcome == models.Resume:
		m.Kill(p, errors.New("program stopped without exiting"))
	}
	if err := p.Space.Release(); err != nil {
		log.L.Warn("releasing address space", "pid", p.Pid, "err", err)
	}
	if err := prog.Close(); err != nil {
		log.L.Warn("closing program", "pid", p.Pid, "err", err)
	}
}

// Spawn is Start for the exec system call: it returns the new pid, or -1 when
// the program could not be loaded.
func (m *Manager) Spawn(parent *Process, cmdline string) int {
	p, err := m.Start(parent, cmdline)
	if err != nil {
		log.L.Debug("exec failed", "cmdline", cmdline, "err", err)
		return -1
	}
	return p.Pid
}

// WaitFor blocks until child pid of parent exits and returns its exit code.
// It returns -1 if pid is not a direct child of parent or was already waited
// for.
func (m *Manager) WaitFor(parent *Process, pid int) int {
	c, ok := parent.children[pid]
	if !ok || c.waited {
		return -1
	}
	c.waited = true
	code := c.exit.Wait()
	delete(parent.children, pid)
	return code
}

// Exit terminates p with code. It prints the exit line, releases every open
// file and the executable, gives up p's claim on its children, and finally
// publishes code to the parent. It is called from p's own thread.
func (m *Manager) Exit(p *Process, code int) {
	fmt.Fprintf(m.Console, "%s: exit(%d)\n", p.Name, code)
	log.L.Debug("process exit", "pid", p.Pid, "code", code)

	p.Files.CloseAll()
	if p.exe != nil {
		p.exe.AllowWrite()
		p.exe.Close()
		p.exe = nil
	}
	p.children = nil

	m.mu.Lock()
	delete(m.procs, p.Pid)
	m.mu.Unlock()

	p.Exit.MarkExited(code)
}

// Kill terminates p with the killed status.
func (m *Manager) Kill(p *Process, reason error) {
	log.L.Debug("process killed", "pid", p.Pid, "reason", reason)
	m.Exit(p, int(models.KilledStatus))
}

// Lookup returns the live process with pid.
func (m *Manager) Lookup(pid int) (*Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[pid]
	return p, ok
}

// Live returns the number of processes that have not exited.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}

// Wait blocks until every process thread has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
