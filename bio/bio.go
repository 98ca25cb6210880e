package bio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/lockmap"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-rvbio/cpu"
	"github.com/mit-pdos/go-rvbio/param"
	"github.com/mit-pdos/go-rvbio/sleeplock"
	"github.com/mit-pdos/go-rvbio/spinlock"
)

//
// Buffer cache.
//
// The cache holds NBUF copies of disk blocks. Caching blocks in memory
// reduces the number of disk reads and also provides a synchronization
// point for blocks used by multiple harts.
//
// Interface:
// * To get a buffer for a particular disk block, call Read.
// * After changing buffer data, call Write to write it to disk.
// * When done with the buffer, call Release.
// * Only one holder at a time can use a buffer, so do not keep them
//   longer than necessary.
//
// Two kinds of locks are involved. The spinlock ctrl protects identity,
// reference counts and the recency list of every slot. Each slot's data
// sits behind its own sleep lock, which is held across device I/O. ctrl
// is never held while sleeping on a slot or waiting for the device.
//

var ErrIO = errors.New("block device error")

// Device is the block driver: a synchronous read or write of one block.
type Device interface {
	Rw(data []byte, dev uint32, blockno common.Bnum, write bool) error
}

type BufData [param.BSIZE]byte

type bufInner struct {
	// valid is guarded by both the ctrl spinlock and the slot's sleep
	// lock; holding either is enough to access it.
	valid atomic.Bool
	data  *sleeplock.SleepLock[BufData]
}

type Bcache struct {
	ctrl   *spinlock.SpinLock[bufLru]
	bufs   []bufInner
	disk   Device
	inited atomic.Bool
	ops    [nOps]statOp
}

func MkBcache(d Device) *Bcache {
	return mkBcache(d, param.NBUF)
}

func mkBcache(d Device, nbuf int) *Bcache {
	bc := &Bcache{
		ctrl: spinlock.New(mkBufLru(nbuf), "bcache"),
		bufs: make([]bufInner, nbuf),
		disk: d,
	}
	locks := lockmap.MkLockMap()
	for i := range bc.bufs {
		bc.bufs[i].data = sleeplock.New(locks, uint64(i), BufData{}, "buffer")
	}
	return bc
}

// Init links every slot into the recency list. It must be called exactly
// once, before any other operation and before other harts use the cache.
func (bc *Bcache) Init(c *cpu.CPU) {
	if !bc.inited.CompareAndSwap(false, true) {
		panic("binit")
	}
	g := bc.ctrl.Lock(c)
	g.Data().init()
	g.Unlock()
	util.DPrintf(1, "binit: %d buffers of %d bytes\n", len(bc.bufs), param.BSIZE)
}

func (bc *Bcache) mustInit() {
	if !bc.inited.Load() {
		panic("bcache: not initialized")
	}
}

// bget returns the slot for (dev, blockno) with its sleep lock held. The
// slot's content is not necessarily valid.
func (bc *Bcache) bget(c *cpu.CPU, dev uint32, blockno common.Bnum) *Buf {
	start := time.Now()
	g := bc.ctrl.Lock(c)
	lru := g.Data()

	index, ok := lru.findCached(dev, blockno)
	if ok {
		g.Unlock()
		bc.ops[hitOp].Record(start)
		util.DPrintf(5, "%v: bget %d/%d hit slot %d\n", c, dev, blockno, index)
		return bc.lockSlot(c, index, dev, blockno)
	}

	// not cached; recycle the least recently used unused slot
	index, ok = lru.recycle(dev, blockno)
	if !ok {
		g.Unlock()
		panic("bget: no buffers")
	}
	bc.bufs[index].valid.Store(false)
	g.Unlock()
	bc.ops[missOp].Record(start)
	util.DPrintf(5, "%v: bget %d/%d miss, slot %d\n", c, dev, blockno, index)
	return bc.lockSlot(c, index, dev, blockno)
}

func (bc *Bcache) lockSlot(c *cpu.CPU, index int, dev uint32, blockno common.Bnum) *Buf {
	if c.Noff() != 0 {
		panic("bget: sleep holding spinlock")
	}
	return &Buf{
		bc:      bc,
		index:   index,
		dev:     dev,
		blockno: blockno,
		data:    bc.bufs[index].data.Lock(),
	}
}

// Read returns a locked buffer with the contents of the indicated block.
// A device error releases the buffer and is returned wrapped in ErrIO.
func (bc *Bcache) Read(c *cpu.CPU, dev uint32, blockno common.Bnum) (*Buf, error) {
	bc.mustInit()
	b := bc.bget(c, dev, blockno)
	inner := &bc.bufs[b.index]
	if !inner.valid.Load() {
		start := time.Now()
		err := bc.disk.Rw(b.Data()[:], dev, blockno, false)
		if err != nil {
			b.Release(c)
			return nil, fmt.Errorf("bread %d/%d: %w: %w", dev, blockno, ErrIO, err)
		}
		inner.valid.Store(true)
		bc.ops[readOp].Record(start)
	}
	return b, nil
}

func (bc *Bcache) bwrite(b *Buf) error {
	start := time.Now()
	err := bc.disk.Rw(b.Data()[:], b.dev, b.blockno, true)
	if err != nil {
		return fmt.Errorf("bwrite %d/%d: %w: %w", b.dev, b.blockno, ErrIO, err)
	}
	bc.ops[writeOp].Record(start)
	return nil
}

// brelse drops a reference on slot index and moves it to the head of
// the recency list if it is no longer used. The slot's sleep lock must
// already be released.
func (bc *Bcache) brelse(c *cpu.CPU, index int) {
	start := time.Now()
	g := bc.ctrl.Lock(c)
	g.Data().moveIfNoRef(index)
	g.Unlock()
	bc.ops[releaseOp].Record(start)
}

type SlotInfo struct {
	Index   int
	Dev     uint32
	Blockno common.Bnum
	Refcnt  uint64
	Valid   bool
}

// Slots describes every slot, most recently used first.
func (bc *Bcache) Slots(c *cpu.CPU) []SlotInfo {
	bc.mustInit()
	g := bc.ctrl.Lock(c)
	defer g.Unlock()
	lru := g.Data()
	var slots []SlotInfo
	for _, i := range lru.order() {
		b := &lru.inner[i]
		slots = append(slots, SlotInfo{
			Index:   i,
			Dev:     b.dev,
			Blockno: b.blockno,
			Refcnt:  b.refcnt,
			Valid:   bc.bufs[i].valid.Load(),
		})
	}
	return slots
}

// Check verifies the recency list.
func (bc *Bcache) Check(c *cpu.CPU) error {
	bc.mustInit()
	g := bc.ctrl.Lock(c)
	defer g.Unlock()
	return g.Data().check()
}
