package spinlock

import (
	"runtime"
	"sync/atomic"

	"github.com/mit-pdos/go-rvbio/cpu"
)

//
// Mutual-exclusion lock that wraps the data it protects. Acquiring it
// disables interrupts on the calling hart (nested through PushOff) and
// busy-waits; it must only be held for short bookkeeping, never across
// device I/O. Re-acquiring on the holding hart and releasing from a hart
// that does not hold it are bugs and panic.
//
// sync/atomic operations are sequentially consistent, so the swap that
// takes the lock and the store that frees it order the critical
// section's loads and stores for every observer.
//

type SpinLock[T any] struct {
	name   string
	locked atomic.Uint32
	holder atomic.Int32 // hart id + 1; 0 when free
	data   T
}

func New[T any](data T, name string) *SpinLock[T] {
	return &SpinLock[T]{name: name, data: data}
}

func (lk *SpinLock[T]) Name() string {
	return lk.name
}

// Holding reports whether c holds lk.
func (lk *SpinLock[T]) Holding(c *cpu.CPU) bool {
	c.PushOff()
	r := lk.holding(c)
	c.PopOff()
	return r
}

func (lk *SpinLock[T]) holding(c *cpu.CPU) bool {
	return lk.locked.Load() == 1 && lk.holder.Load() == int32(c.Id()+1)
}

// Lock acquires lk on behalf of c. The returned guard is the only way to
// reach the data; call Unlock on it, typically with defer.
func (lk *SpinLock[T]) Lock(c *cpu.CPU) *Guard[T] {
	c.PushOff()
	if lk.holding(c) {
		panic("acquire " + lk.name)
	}
	for !lk.locked.CompareAndSwap(0, 1) {
		// let the holder's goroutine run
		runtime.Gosched()
	}
	lk.holder.Store(int32(c.Id() + 1))
	return &Guard[T]{lk: lk, c: c}
}

func (lk *SpinLock[T]) unlock(c *cpu.CPU) {
	if !lk.holding(c) {
		panic("release " + lk.name)
	}
	lk.holder.Store(0)
	lk.locked.Store(0)
	c.PopOff()
}

type Guard[T any] struct {
	lk   *SpinLock[T]
	c    *cpu.CPU
	done bool
}

func (g *Guard[T]) Data() *T {
	if g.done {
		panic("spinlock: use after unlock " + g.lk.name)
	}
	return &g.lk.data
}

// Unlock releases the lock. It must run on the hart that locked it.
func (g *Guard[T]) Unlock() {
	if g.done {
		panic("release " + g.lk.name)
	}
	g.done = true
	g.lk.unlock(g.c)
}
