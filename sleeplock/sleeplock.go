package sleeplock

import (
	"sync/atomic"

	"github.com/mit-pdos/go-journal/lockmap"
)

//
// Long-term lock for data that is held across device I/O. A waiter is
// parked on a condition variable instead of spinning, so it yields its
// hart. Locks are addresses in a shared lockmap; each SleepLock owns one
// address. Waiters are woken in no particular order.
//
// Never acquire a sleep lock while holding a spinlock.
//

type SleepLock[T any] struct {
	name  string
	locks *lockmap.LockMap
	addr  uint64
	held  atomic.Bool
	data  T
}

func New[T any](locks *lockmap.LockMap, addr uint64, data T, name string) *SleepLock[T] {
	return &SleepLock[T]{
		name:  name,
		locks: locks,
		addr:  addr,
		data:  data,
	}
}

func (lk *SleepLock[T]) Name() string {
	return lk.name
}

// Locked reports whether some holder currently owns lk. Racy; for
// assertions and diagnostics only.
func (lk *SleepLock[T]) Locked() bool {
	return lk.held.Load()
}

// Lock blocks until lk is free and returns the guard that grants access
// to the data.
func (lk *SleepLock[T]) Lock() *Guard[T] {
	lk.locks.Acquire(lk.addr)
	lk.held.Store(true)
	return &Guard[T]{lk: lk}
}

type Guard[T any] struct {
	lk   *SleepLock[T]
	done bool
}

func (g *Guard[T]) Data() *T {
	if g.done {
		panic("sleeplock: use after unlock " + g.lk.name)
	}
	return &g.lk.data
}

func (g *Guard[T]) Unlock() {
	if g.done {
		panic("release " + g.lk.name)
	}
	g.done = true
	g.lk.held.Store(false)
	g.lk.locks.Release(g.lk.addr)
}
