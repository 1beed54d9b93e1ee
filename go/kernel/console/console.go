// Package console holds the machine's character devices: the keyboard and
// display shared by every process, and the power switch.
package console

import (
	"bufio"
	"io"
	"sync"
)

// Console serializes output so each Write reaches the display in one piece.
type Console struct {
	rmu sync.Mutex
	in  *bufio.Reader

	wmu sync.Mutex
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// ReadByte blocks for one byte of keyboard input. It fails only when the
// input stream has ended.
func (c *Console) ReadByte() (byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	return c.in.ReadByte()
}

// Write puts p on the display without interleaving with other writers.
func (c *Console) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.out.Write(p)
}

// Power is the machine's off switch.
type Power struct {
	once sync.Once
	off  chan struct{}
}

func NewPower() *Power {
	return &Power{off: make(chan struct{})}
}

// Halt powers the machine off. Later calls do nothing.
func (p *Power) Halt() {
	p.once.Do(func() { close(p.off) })
}

// Off is closed once the machine has halted.
func (p *Power) Off() <-chan struct{} {
	return p.off
}

func (p *Power) Halted() bool {
	select {
	case <-p.off:
		return true
	default:
		return false
	}
}
