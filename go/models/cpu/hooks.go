package cpu

import (
	"github.com/pkg/errors"
)

// MemFaultCb is called when a checked access fails. Returning true marks the
// fault as handled, which stops the chain.
type MemFaultCb func(mem Memory, access int, addr uint64, size int, val int64) bool

type hookInfo struct {
	htype int
	start uint64
	end   uint64
}

func (h *hookInfo) Type() int {
	return h.htype
}

// start > end covers the whole address space
func (h *hookInfo) Contains(addr uint64) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type memFaultHook struct {
	hookInfo
	cb MemFaultCb
}

// Hooks holds fault callbacks for a Memory implementation that has no native
// hook support.
type Hooks struct {
	mem      Memory
	memFault []*memFaultHook
}

func NewHooks(mem Memory) *Hooks {
	return &Hooks{mem: mem}
}

func (h *Hooks) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (Hook, error) {
	info := hookInfo{htype, start, end}
	switch htype {
	case HOOK_MEM_ERR:
		var fn MemFaultCb
		switch v := cb.(type) {
		case MemFaultCb:
			fn = v
		case func(Memory, int, uint64, int, int64) bool:
			fn = v
		default:
			return nil, errors.Errorf("bad callback type %T for HOOK_MEM_ERR", cb)
		}
		hh := &memFaultHook{info, fn}
		h.memFault = append(h.memFault, hh)
		return hh, nil
	default:
		return nil, errors.Errorf("unsupported hook type: %d", htype)
	}
}

func (h *Hooks) HookDel(hh Hook) error {
	fh, ok := hh.(*memFaultHook)
	if !ok {
		return errors.Errorf("unknown hook %T", hh)
	}
	var tmp []*memFaultHook
	for _, v := range h.memFault {
		if v != fh {
			tmp = append(tmp, v)
		}
	}
	h.memFault = tmp
	return nil
}

// OnFault runs fault hooks covering addr until one reports the fault handled.
func (h *Hooks) OnFault(access int, addr uint64, size int, val int64) bool {
	for _, v := range h.memFault {
		if v.Contains(addr) {
			if v.cb(h.mem, access, addr, size, val) {
				return true
			}
		}
	}
	return false
}
