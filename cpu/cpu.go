package cpu

import (
	"fmt"

	"github.com/mit-pdos/go-rvbio/param"
)

//
// Per-hart state. A hart's supervisor interrupt-enable bit (sstatus.SIE)
// is simulated by a flag, and interrupt disabling is counted so that
// critical sections nest. A CPU is driven by one goroutine at a time;
// nothing in here is safe to touch from another hart.
//

type CPU struct {
	id     int
	sie    bool // sstatus.SIE
	noff   int  // depth of PushOff nesting
	intena bool // were interrupts enabled before the outermost PushOff?
}

func (c *CPU) Id() int {
	return c.id
}

func (c *CPU) IntrOn() {
	c.sie = true
}

func (c *CPU) IntrOff() {
	c.sie = false
}

func (c *CPU) IntrGet() bool {
	return c.sie
}

// PushOff and PopOff are like IntrOff and IntrOn except that they are
// matched: it takes two PopOff to undo two PushOff. If interrupts are
// initially off, then PushOff, PopOff leaves them off.
func (c *CPU) PushOff() {
	old := c.IntrGet()
	c.IntrOff()
	if c.noff == 0 {
		c.intena = old
	}
	c.noff += 1
}

func (c *CPU) PopOff() {
	if c.IntrGet() {
		panic("pop_off - interruptible")
	}
	if c.noff < 1 {
		panic("pop_off")
	}
	c.noff -= 1
	if c.noff == 0 && c.intena {
		c.IntrOn()
	}
}

// Noff reports the current PushOff depth.
func (c *CPU) Noff() int {
	return c.noff
}

func (c *CPU) String() string {
	return fmt.Sprintf("hart%d", c.id)
}

type Table struct {
	cpus [param.NCPU]CPU
}

func MkTable() *Table {
	t := &Table{}
	for i := range t.cpus {
		t.cpus[i].id = i
	}
	return t
}

func (t *Table) Get(id int) *CPU {
	if id < 0 || id >= param.NCPU {
		panic("cpu.Get")
	}
	return &t.cpus[id]
}
