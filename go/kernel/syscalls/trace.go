package syscalls

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/lunixbochs/ukern/go/kernel/proc"
	"github.com/lunixbochs/ukern/go/kernel/uaccess"
	"github.com/lunixbochs/ukern/go/models"
)

var (
	colorName   = ansi.ColorCode("cyan")
	colorKilled = ansi.ColorCode("red+b")
)

type tracer struct {
	out     io.Writer
	strsize int
	color   bool
}

func (t *tracer) paint(color, s string) string {
	if !t.color {
		return s
	}
	return color + s + ansi.Reset
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// peek reads up to n user bytes for display. It stops at the first bad byte.
func peek(s *uaccess.Space, addr, n uint64) []byte {
	var out []byte
	for i := uint64(0); i < n; i++ {
		b, ok := s.GetUser(addr + i)
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

func (t *tracer) arg(p *proc.Process, vals []reflect.Value) string {
	switch arg := vals[0].Interface().(type) {
	case Buf:
		if len(vals) > 1 {
			if length, ok := vals[1].Interface().(Len); ok {
				n := uint64(length)
				if t.strsize > 0 && n > uint64(t.strsize) {
					n = uint64(t.strsize)
				}
				return models.Repr(peek(p.Space, uint64(arg), n), t.strsize)
			}
		}
		return hex(uint64(arg))
	case Obuf:
		return hex(uint64(arg))
	case Str:
		s, err := p.Space.ReadString(uint64(arg), 256)
		if err != nil {
			return hex(uint64(arg))
		}
		return models.Repr([]byte(s), t.strsize)
	case Off:
		return hex(uint64(arg))
	case Fd:
		return fmt.Sprintf("%d", int32(arg))
	case Int:
		return fmt.Sprintf("%d", int32(arg))
	default:
		return fmt.Sprintf("%v", arg)
	}
}

func fields(c call) []reflect.Value {
	v := reflect.ValueOf(c).Elem()
	out := make([]reflect.Value, v.NumField())
	for i := range out {
		out[i] = v.Field(i)
	}
	return out
}

func (t *tracer) enter(p *proc.Process, name string, c call) string {
	vals := fields(c)
	args := make([]string, len(vals))
	for i := range vals {
		args[i] = t.arg(p, vals[i:])
	}
	return fmt.Sprintf("[%d] %s(%s)", p.Pid, t.paint(colorName, name), strings.Join(args, ", "))
}

func (t *tracer) exit(p *proc.Process, line string, c call, res result) {
	var out []string
	if r, ok := c.(*readCall); ok && res.hasRet && int32(res.ret) > 0 {
		n := uint64(res.ret)
		if t.strsize > 0 && n > uint64(t.strsize) {
			n = uint64(t.strsize)
		}
		out = append(out, models.Repr(peek(p.Space, uint64(r.Buf), n), t.strsize))
	}
	if res.hasRet {
		out = append(out, fmt.Sprintf("%d", int32(res.ret)))
	}
	if len(out) > 0 {
		line += " = " + strings.Join(out, ", ")
	}
	fmt.Fprintln(t.out, line)
}

func (t *tracer) killed(p *proc.Process, line string) {
	if line == "" {
		line = fmt.Sprintf("[%d] ?", p.Pid)
	} else if !strings.HasPrefix(line, "[") {
		line = fmt.Sprintf("[%d] %s", p.Pid, t.paint(colorName, line))
	}
	fmt.Fprintln(t.out, line+" = "+t.paint(colorKilled, "killed"))
}
