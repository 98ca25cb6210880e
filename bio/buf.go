package bio

import (
	"github.com/mit-pdos/go-journal/common"

	"github.com/mit-pdos/go-rvbio/cpu"
	"github.com/mit-pdos/go-rvbio/sleeplock"
)

// Buf is a locked buffer for one block, returned by Read. Holding a Buf
// is holding the slot's sleep lock; only a Buf can reach the slot's data.
// Release it when done, typically with defer.
type Buf struct {
	bc      *Bcache
	index   int
	dev     uint32
	blockno common.Bnum
	data    *sleeplock.Guard[BufData] // nil once released
}

func (b *Buf) Dev() uint32 {
	return b.dev
}

func (b *Buf) Blockno() common.Bnum {
	return b.blockno
}

// Data gives access to the block's bytes while b is held.
func (b *Buf) Data() *BufData {
	if b.data == nil {
		panic("buf: released")
	}
	return b.data.Data()
}

// Write writes b's contents to disk.
func (b *Buf) Write() error {
	if b.data == nil {
		panic("bwrite")
	}
	return b.bc.bwrite(b)
}

// Release unlocks b's data and then gives its reference back to the
// cache, so the cache never sees the slot unreferenced while its data is
// still locked.
func (b *Buf) Release(c *cpu.CPU) {
	if b.data == nil {
		panic("brelse")
	}
	b.data.Unlock()
	b.data = nil
	b.bc.brelse(c, b.index)
}
