package syscalls_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/ukern/go/kernel/console"
	"github.com/lunixbochs/ukern/go/kernel/filesys"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	. "github.com/lunixbochs/ukern/go/kernel/syscalls"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/loader"
	"github.com/lunixbochs/ukern/go/loader/script"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type rig struct {
	fs     *filesys.MemFS
	loader *script.Loader
	procs  *proc.Manager
	power  *console.Power
	out    *syncBuffer
	trace  *syncBuffer
}

func newRig(t *testing.T, stdin string, traced bool) *rig {
	r := &rig{
		fs:    filesys.NewMemFS(0),
		power: console.NewPower(),
		out:   &syncBuffer{},
		trace: &syncBuffer{},
	}
	r.loader = script.NewLoader(nil)
	con := console.New(strings.NewReader(stdin), r.out)
	r.procs = proc.NewManager(r.loader, con)
	config := &models.Config{TraceSys: traced, Output: r.trace, Strsize: 32}
	r.procs.SetTrapper(NewDispatcher(config, r.fs, r.procs, con, r.power))
	return r
}

// run starts fn as the initial process and returns its exit code, or false if
// the machine halted first.
func (r *rig) run(t *testing.T, name string, fn script.Func) (int, bool) {
	r.loader.Register(name, fn)
	p, err := r.procs.Start(nil, name)
	require.NoError(t, err)
	select {
	case <-p.Exit.Done():
	case <-r.power.Off():
	}
	r.procs.Wait()
	return p.Exit.Code()
}

func TestConsoleWrite(t *testing.T) {
	r := newRig(t, "", false)
	var n int
	code, ok := r.run(t, "hello", func(c *script.Context) int {
		n = c.Print("hello, world\n")
		return 3
	})
	require.True(t, ok)
	require.Equal(t, 3, code)
	require.Equal(t, 13, n)
	require.Equal(t, "hello, world\nhello: exit(3)\n", r.out.String())
}

func TestFileRoundTrip(t *testing.T) {
	r := newRig(t, "", false)
	var got []byte
	var results []int
	var tell uint32
	code, _ := r.run(t, "files", func(c *script.Context) int {
		if !c.Create("notes", 11) {
			return 1
		}
		fd := c.Open("notes")
		results = append(results, fd)
		results = append(results, c.Write(fd, c.Bytes([]byte("hello world")), 11))
		results = append(results, c.Filesize(fd))
		tell = c.Tell(fd)
		c.Seek(fd, 0)
		buf := c.Alloc(32)
		results = append(results, c.Read(fd, buf, 32))
		got = c.Peek(uint64(buf), 11)
		results = append(results, c.Read(fd, buf, 32))
		c.Close(fd)
		results = append(results, c.Filesize(fd))
		return 0
	})
	require.Equal(t, 0, code)
	require.Equal(t, []int{3, 11, 11, 11, 0, -1}, results)
	require.Equal(t, uint32(11), tell)
	require.Equal(t, "hello world", string(got))
}

func TestFdsNeverReused(t *testing.T) {
	r := newRig(t, "", false)
	require.True(t, r.fs.Create("a", 1))
	var fds []int
	r.run(t, "fds", func(c *script.Context) int {
		fds = append(fds, c.Open("a"), c.Open("a"))
		c.Close(fds[0])
		fds = append(fds, c.Open("a"), c.Open("missing"), c.Open("a"))
		return 0
	})
	require.Equal(t, []int{3, 4, 5, -1, 6}, fds)
}

func TestBufferPastMappingKills(t *testing.T) {
	r := newRig(t, "", false)
	reached := false
	code, _ := r.run(t, "overrun", func(c *script.Context) int {
		end := uint32(loader.FlatBase + script.DataSize)
		c.Write(1, end-cpu.PAGE_SIZE, cpu.PAGE_SIZE+1)
		reached = true
		return 0
	})
	require.Equal(t, -1, code)
	require.False(t, reached)
	require.Equal(t, "overrun: exit(-1)\n", r.out.String())
}

func TestReadIntoReadOnlyKills(t *testing.T) {
	r := newRig(t, "", false)
	require.NoError(t, r.fs.Put("data", []byte("payload")))
	reached := false
	code, _ := r.run(t, "ro", func(c *script.Context) int {
		fd := c.Open("data")
		buf := c.Alloc(cpu.PAGE_SIZE)
		page := cpu.PageDown(uint64(buf)) + cpu.PAGE_SIZE
		if err := c.Mem().MemProt(page, cpu.PAGE_SIZE, cpu.PROT_READ); err != nil {
			return 1
		}
		c.Read(fd, uint32(page)-2, 4)
		reached = true
		return 0
	})
	require.Equal(t, -1, code)
	require.False(t, reached)
}

func TestKernelAddressKills(t *testing.T) {
	cases := map[string]script.Func{
		"write": func(c *script.Context) int { c.Write(1, uaccess.PhysBase, 1); return 0 },
		"read":  func(c *script.Context) int { c.Read(0, uaccess.PhysBase-1, 2); return 0 },
		"open":  func(c *script.Context) int { c.Syscall(SYS_OPEN, uaccess.PhysBase); return 0 },
		"null":  func(c *script.Context) int { c.Syscall(SYS_CREATE, 0, 10); return 0 },
		"exec":  func(c *script.Context) int { c.Syscall(SYS_EXEC, 0); return 0 },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRig(t, "abc", false)
			code, _ := r.run(t, name, fn)
			require.Equal(t, -1, code)
		})
	}
}

func TestUnknownCallKills(t *testing.T) {
	r := newRig(t, "", true)
	reached := false
	code, _ := r.run(t, "bogus", func(c *script.Context) int {
		c.Syscall(Num(99), 1, 2, 3)
		reached = true
		return 0
	})
	require.Equal(t, -1, code)
	require.False(t, reached)
	require.Contains(t, r.trace.String(), "syscall_99 = killed")
}

func TestBadStackPointerKills(t *testing.T) {
	for name, esp := range map[string]uint32{
		"kernel":   uaccess.PhysBase,
		"null":     0,
		"straddle": uaccess.PhysBase - 2,
	} {
		t.Run(name, func(t *testing.T) {
			r := newRig(t, "", false)
			code, _ := r.run(t, "sp", func(c *script.Context) int {
				c.TrapAt(esp)
				return 0
			})
			require.Equal(t, -1, code)
		})
	}
}

func TestArgumentsPastStackKill(t *testing.T) {
	r := newRig(t, "", false)
	code, _ := r.run(t, "args", func(c *script.Context) int {
		// the call number is readable but its argument is a kernel address
		esp := uint32(uaccess.PhysBase - 4)
		c.Poke(uint64(esp), []byte{byte(SYS_EXIT), 0, 0, 0})
		c.TrapAt(esp)
		return 0
	})
	require.Equal(t, -1, code)
}

func TestMissingDescriptors(t *testing.T) {
	r := newRig(t, "", false)
	var results []int
	var tell uint32
	code, _ := r.run(t, "nofd", func(c *script.Context) int {
		buf := c.Alloc(8)
		c.Seek(42, 7)
		c.Close(42)
		c.Close(0)
		c.Close(1)
		tell = c.Tell(42)
		results = append(results,
			c.Filesize(42),
			c.Read(42, buf, 8),
			c.Write(42, buf, 8),
			c.Write(0, buf, 8),
			c.Read(1, buf, 8),
			c.Open("missing"),
			c.Print("still here\n"),
		)
		return 0
	})
	require.Equal(t, 0, code)
	require.Equal(t, uint32(0xffffffff), tell)
	require.Equal(t, []int{-1, -1, -1, -1, -1, -1, 11}, results)
	require.Equal(t, "still here\nnofd: exit(0)\n", r.out.String())
}

func TestZeroSizeValidatesNothing(t *testing.T) {
	r := newRig(t, "", false)
	var results []int
	code, _ := r.run(t, "zero", func(c *script.Context) int {
		results = append(results, c.Write(1, 0, 0), c.Read(0, uaccess.PhysBase, 0))
		return 0
	})
	require.Equal(t, 0, code)
	require.Equal(t, []int{0, 0}, results)
}

func TestConsoleRead(t *testing.T) {
	r := newRig(t, "abcdef", false)
	var got []byte
	var n, short int
	r.run(t, "cat", func(c *script.Context) int {
		buf := c.Alloc(8)
		n = c.Read(0, buf, 3)
		got = c.Peek(uint64(buf), 3)
		short = c.Read(0, buf, 8)
		return 0
	})
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(got))
	require.Equal(t, 3, short)
}

func TestCreateRemove(t *testing.T) {
	r := newRig(t, "", false)
	var results []bool
	var reopened int
	r.run(t, "fsops", func(c *script.Context) int {
		results = append(results,
			c.Create("", 1),
			c.Create("this-name-is-too-long", 1),
			c.Create("ok", 4),
			c.Create("ok", 4),
			c.Remove("ok"),
			c.Remove("ok"),
		)
		reopened = c.Open("ok")
		return 0
	})
	require.Equal(t, []bool{false, false, true, false, true, false}, results)
	require.Equal(t, -1, reopened)
}

func TestHalt(t *testing.T) {
	r := newRig(t, "", false)
	reached := false
	_, exited := r.run(t, "init", func(c *script.Context) int {
		c.Halt()
		reached = true
		return 0
	})
	require.False(t, exited)
	require.False(t, reached)
	require.True(t, r.power.Halted())
	require.Equal(t, "", r.out.String())
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("display unplugged") }

func TestConsoleWriteError(t *testing.T) {
	r := newRig(t, "", false)
	con := console.New(strings.NewReader(""), brokenWriter{})
	r.procs = proc.NewManager(r.loader, r.out)
	r.procs.SetTrapper(NewDispatcher(&models.Config{}, r.fs, r.procs, con, r.power))
	var n int
	code, ok := r.run(t, "hello", func(c *script.Context) int {
		n = c.Print("hello")
		return 0
	})
	require.True(t, ok)
	require.Equal(t, 0, code)
	require.Equal(t, 0, n)
}

func TestHaltStopsOtherProcesses(t *testing.T) {
	r := newRig(t, "", false)
	var started, printed, created bool
	r.loader.Register("bg", func(c *script.Context) int {
		started = true
		<-r.power.Off()
		c.Print("after halt\n")
		printed = true
		c.Create("postmortem", 0)
		created = true
		return 0
	})
	var pid int
	_, exited := r.run(t, "boot", func(c *script.Context) int {
		pid = c.Exec("bg")
		c.Halt()
		return 0
	})
	require.False(t, exited)
	require.Equal(t, 2, pid)
	require.True(t, started)
	require.False(t, printed)
	require.False(t, created)
	require.Empty(t, r.fs.Names())
	require.Equal(t, "", r.out.String())

	bg, ok := r.procs.Lookup(pid)
	require.True(t, ok)
	require.False(t, bg.Exit.Exited())
}

func TestExecWait(t *testing.T) {
	r := newRig(t, "", false)
	var childArgv []string
	r.loader.Register("child", func(c *script.Context) int {
		childArgv = c.Argv
		return 7
	})
	var results []int
	code, _ := r.run(t, "parent", func(c *script.Context) int {
		pid := c.Exec("child  one two")
		results = append(results, pid, c.Wait(pid), c.Wait(pid), c.Wait(pid+100), c.Exec("nonexistent"))
		return 0
	})
	require.Equal(t, 0, code)
	require.Equal(t, []int{2, 7, -1, -1, -1}, results)
	require.Equal(t, []string{"child", "one", "two"}, childArgv)
	require.Equal(t, "child: exit(7)\nparent: exit(0)\n", r.out.String())
}

func TestWaitKilledChild(t *testing.T) {
	r := newRig(t, "", false)
	r.loader.Register("crash", func(c *script.Context) int {
		c.Peek(0, 1)
		return 0
	})
	var status int
	r.run(t, "parent", func(c *script.Context) int {
		status = c.Wait(c.Exec("crash"))
		return 0
	})
	require.Equal(t, -1, status)
	require.Equal(t, "crash: exit(-1)\nparent: exit(0)\n", r.out.String())
}

func TestWaitGrandchild(t *testing.T) {
	r := newRig(t, "", false)
	pids := make(chan int, 1)
	release := make(chan struct{})
	r.loader.Register("leaf", func(c *script.Context) int {
		<-release
		return 5
	})
	r.loader.Register("middle", func(c *script.Context) int {
		pid := c.Exec("leaf")
		pids <- pid
		return c.Wait(pid)
	})
	var results []int
	r.run(t, "top", func(c *script.Context) int {
		middle := c.Exec("middle")
		leaf := <-pids
		results = append(results, c.Wait(leaf))
		close(release)
		results = append(results, c.Wait(middle))
		return 0
	})
	require.Equal(t, []int{-1, 5}, results)
}

func TestTrace(t *testing.T) {
	r := newRig(t, "", true)
	r.run(t, "traced", func(c *script.Context) int {
		c.Print("hi")
		c.Open("missing")
		return 2
	})
	trace := r.trace.String()
	require.Contains(t, trace, `[1] write(1, "hi", 2) = 2`)
	require.Contains(t, trace, `[1] open("missing") = -1`)
	require.Contains(t, trace, `[1] exit(2)`)
}
