package sleeplock

import (
	"sync"
	"testing"
	"time"

	"github.com/mit-pdos/go-journal/lockmap"
	"github.com/stretchr/testify/assert"
)

func TestLockUnlock(t *testing.T) {
	assert := assert.New(t)
	lk := New(lockmap.MkLockMap(), 0, []byte{0}, "buf")
	g := lk.Lock()
	assert.True(lk.Locked())
	(*g.Data())[0] = 7
	g.Unlock()
	assert.False(lk.Locked())
	assert.Equal(byte(7), lk.data[0])
	assert.Panics(func() { g.Unlock() })
	assert.Panics(func() { g.Data() })
}

func TestWaiterBlocksUntilRelease(t *testing.T) {
	assert := assert.New(t)
	lk := New(lockmap.MkLockMap(), 3, 0, "buf")
	g := lk.Lock()

	got := make(chan int)
	go func() {
		g2 := lk.Lock()
		v := *g2.Data()
		g2.Unlock()
		got <- v
	}()

	select {
	case <-got:
		t.Fatal("second holder got the lock while it was held")
	case <-time.After(20 * time.Millisecond):
	}
	*g.Data() = 42
	g.Unlock()
	assert.Equal(42, <-got)
}

func TestIndependentAddresses(t *testing.T) {
	locks := lockmap.MkLockMap()
	a := New(locks, 0, 0, "a")
	b := New(locks, 1, 0, "b")
	ga := a.Lock()
	gb := b.Lock() // must not block on a
	gb.Unlock()
	ga.Unlock()
}

func TestMutualExclusion(t *testing.T) {
	lk := New(lockmap.MkLockMap(), 9, 0, "counter")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				g := lk.Lock()
				*g.Data() += 1
				g.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8*500, lk.data)
}
