package syscalls

import (
	"github.com/lunixbochs/ukern/go/kernel/fd"
	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/log"
	"github.com/lunixbochs/ukern/go/models"
	"github.com/lunixbochs/ukern/go/models/cpu"
)

// call is one decoded system call. Every implementation lives in this file;
// the struct fields are the call's argument words in stack order.
type call interface {
	do(d *Dispatcher, p *proc.Process) (result, error)
}

// result is what a call leaves behind for the trap entry.
type result struct {
	ret     uint32
	hasRet  bool
	outcome models.Outcome
}

func ret(v int32) result {
	return result{ret: uint32(v), hasRet: true}
}

func retBool(ok bool) result {
	if ok {
		return ret(1)
	}
	return ret(0)
}

var noRet = result{outcome: models.Resume}

type entry struct {
	name string
	argc int
	new  func() call
}

var table = map[Num]entry{
	SYS_HALT:     {"halt", 0, func() call { return &haltCall{} }},
	SYS_EXIT:     {"exit", 1, func() call { return &exitCall{} }},
	SYS_EXEC:     {"exec", 1, func() call { return &execCall{} }},
	SYS_WAIT:     {"wait", 1, func() call { return &waitCall{} }},
	SYS_CREATE:   {"create", 2, func() call { return &createCall{} }},
	SYS_REMOVE:   {"remove", 1, func() call { return &removeCall{} }},
	SYS_OPEN:     {"open", 1, func() call { return &openCall{} }},
	SYS_FILESIZE: {"filesize", 1, func() call { return &filesizeCall{} }},
	SYS_READ:     {"read", 3, func() call { return &readCall{} }},
	SYS_WRITE:    {"write", 3, func() call { return &writeCall{} }},
	SYS_SEEK:     {"seek", 2, func() call { return &seekCall{} }},
	SYS_TELL:     {"tell", 1, func() call { return &tellCall{} }},
	SYS_CLOSE:    {"close", 1, func() call { return &closeCall{} }},
}

type haltCall struct{}

func (c *haltCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	d.Power.Halt()
	return result{outcome: models.Halt}, nil
}

type exitCall struct {
	Status Int `struc:"int32"`
}

func (c *exitCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	d.Procs.Exit(p, int(c.Status))
	return result{outcome: models.Terminate}, nil
}

type execCall struct {
	Cmdline Str `struc:"uint32"`
}

func (c *execCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	cmdline, err := d.userString(p, c.Cmdline)
	if err != nil {
		return result{}, err
	}
	return ret(int32(d.Procs.Spawn(p, cmdline))), nil
}

type waitCall struct {
	Pid Int `struc:"int32"`
}

func (c *waitCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	return ret(int32(d.Procs.WaitFor(p, int(c.Pid)))), nil
}

type createCall struct {
	Name Str `struc:"uint32"`
	Size Len `struc:"uint32"`
}

func (c *createCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	name, err := d.userString(p, c.Name)
	if err != nil {
		return result{}, err
	}
	return retBool(d.FS.Create(name, uint32(c.Size))), nil
}

type removeCall struct {
	Name Str `struc:"uint32"`
}

func (c *removeCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	name, err := d.userString(p, c.Name)
	if err != nil {
		return result{}, err
	}
	return retBool(d.FS.Remove(name)), nil
}

type openCall struct {
	Name Str `struc:"uint32"`
}

func (c *openCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	name, err := d.userString(p, c.Name)
	if err != nil {
		return result{}, err
	}
	f, ok := d.FS.Open(name)
	if !ok {
		return ret(-1), nil
	}
	n, ok := p.Files.Add(f)
	if !ok {
		f.Close()
		return ret(-1), nil
	}
	return ret(n), nil
}

type filesizeCall struct {
	Fd Fd `struc:"int32"`
}

func (c *filesizeCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	f, ok := p.Files.Get(int32(c.Fd))
	if !ok {
		return ret(-1), nil
	}
	return ret(f.Length()), nil
}

type readCall struct {
	Fd   Fd   `struc:"int32"`
	Buf  Obuf `struc:"uint32"`
	Size Len  `struc:"uint32"`
}

func (c *readCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	addr, size := uint64(c.Buf), uint64(c.Size)
	if err := p.Space.CheckRange(addr, size, true); err != nil {
		return result{}, err
	}
	if c.Fd == fd.Stdin {
		var n uint64
		for ; n < size; n++ {
			b, err := d.Console.ReadByte()
			if err != nil {
				break
			}
			if err := p.Space.CopyOut(addr+n, []byte{b}); err != nil {
				return result{}, err
			}
		}
		return ret(int32(n)), nil
	}
	f, ok := p.Files.Get(int32(c.Fd))
	if !ok {
		return ret(-1), nil
	}
	var total uint64
	chunk := make([]byte, cpu.PAGE_SIZE)
	for total < size {
		want := chunk
		if left := size - total; left < uint64(len(want)) {
			want = want[:left]
		}
		n := f.Read(want)
		if n <= 0 {
			break
		}
		if err := p.Space.CopyOut(addr+total, want[:n]); err != nil {
			return result{}, err
		}
		total += uint64(n)
		if int(n) < len(want) {
			break
		}
	}
	return ret(int32(total)), nil
}

type writeCall struct {
	Fd   Fd  `struc:"int32"`
	Buf  Buf `struc:"uint32"`
	Size Len `struc:"uint32"`
}

func (c *writeCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	addr, size := uint64(c.Buf), uint64(c.Size)
	if err := p.Space.CheckRange(addr, size, false); err != nil {
		return result{}, err
	}
	if c.Fd == fd.Stdout {
		kbuf := make([]byte, size)
		if err := p.Space.CopyIn(addr, kbuf); err != nil {
			return result{}, err
		}
		n, err := d.Console.Write(kbuf)
		if err != nil {
			log.L.Warn("console write", "pid", p.Pid, "err", err)
		}
		return ret(int32(n)), nil
	}
	f, ok := p.Files.Get(int32(c.Fd))
	if !ok {
		return ret(-1), nil
	}
	var total uint64
	chunk := make([]byte, cpu.PAGE_SIZE)
	for total < size {
		want := chunk
		if left := size - total; left < uint64(len(want)) {
			want = want[:left]
		}
		if err := p.Space.CopyIn(addr+total, want); err != nil {
			return result{}, err
		}
		n := f.Write(want)
		if n > 0 {
			total += uint64(n)
		}
		if int(n) < len(want) {
			break
		}
	}
	return ret(int32(total)), nil
}

type seekCall struct {
	Fd  Fd  `struc:"int32"`
	Pos Off `struc:"uint32"`
}

func (c *seekCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	if f, ok := p.Files.Get(int32(c.Fd)); ok {
		f.Seek(uint32(c.Pos))
	}
	return noRet, nil
}

type tellCall struct {
	Fd Fd `struc:"int32"`
}

func (c *tellCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	f, ok := p.Files.Get(int32(c.Fd))
	if !ok {
		return ret(-1), nil
	}
	return result{ret: f.Tell(), hasRet: true}, nil
}

type closeCall struct {
	Fd Fd `struc:"int32"`
}

func (c *closeCall) do(d *Dispatcher, p *proc.Process) (result, error) {
	p.Files.Close(int32(c.Fd))
	return noRet, nil
}
