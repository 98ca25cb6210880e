package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-rvbio/param"
)

func TestPushPopNested(t *testing.T) {
	assert := assert.New(t)
	c := MkTable().Get(0)
	c.IntrOn()

	c.PushOff()
	c.PushOff()
	assert.False(c.IntrGet())
	assert.Equal(2, c.Noff())

	c.PopOff()
	assert.False(c.IntrGet(), "inner pop must leave interrupts off")
	c.PopOff()
	assert.True(c.IntrGet(), "outer pop restores interrupts")
	assert.Equal(0, c.Noff())
}

func TestPushPopInterruptsInitiallyOff(t *testing.T) {
	c := MkTable().Get(1)
	c.IntrOff()
	c.PushOff()
	c.PopOff()
	assert.False(t, c.IntrGet())
}

func TestPopWithoutPush(t *testing.T) {
	c := MkTable().Get(2)
	assert.PanicsWithValue(t, "pop_off", func() { c.PopOff() })
}

func TestPopInterruptible(t *testing.T) {
	c := MkTable().Get(3)
	c.PushOff()
	c.IntrOn()
	assert.PanicsWithValue(t, "pop_off - interruptible", func() { c.PopOff() })
}

func TestTableIds(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable()
	for i := 0; i < param.NCPU; i++ {
		assert.Equal(i, tbl.Get(i).Id())
	}
	assert.Panics(func() { tbl.Get(param.NCPU) })
	assert.Panics(func() { tbl.Get(-1) })
}
