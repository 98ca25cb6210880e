package bio

import (
	"fmt"

	"github.com/mit-pdos/go-journal/common"
)

// Control record of one slot. prev and next are slot indices into
// bufLru.inner; nilIndex ends the list.
type bufCtrl struct {
	dev     uint32
	blockno common.Bnum
	prev    int
	next    int
	refcnt  uint64
	index   int
}

const nilIndex = -1

//
// Bookkeeping for the cache: every slot's control record, linked into one
// list ordered by recency. head is the most recently released slot, tail
// the least. Records are never added or removed, only moved, so the list
// always spans every slot. Callers hold the bcache spinlock.
//

type bufLru struct {
	inner []bufCtrl // allocated once; never resized
	head  int
	tail  int
}

func mkBufLru(n int) bufLru {
	if n < 1 {
		panic("mkBufLru")
	}
	return bufLru{inner: make([]bufCtrl, n)}
}

func (l *bufLru) init() {
	n := len(l.inner)
	l.head = 0
	l.tail = n - 1
	for i := range l.inner {
		b := &l.inner[i]
		b.index = i
		b.prev = i - 1
		b.next = i + 1
	}
	l.inner[0].prev = nilIndex
	l.inner[n-1].next = nilIndex
}

// findCached looks for (dev, blockno) starting at the head and takes a
// reference on it if found.
func (l *bufLru) findCached(dev uint32, blockno common.Bnum) (int, bool) {
	for i := l.head; i != nilIndex; i = l.inner[i].next {
		b := &l.inner[i]
		if b.dev == dev && b.blockno == blockno {
			b.refcnt += 1
			return b.index, true
		}
	}
	return 0, false
}

// recycle takes the least recently used slot without references,
// scanning from the tail, and gives it identity (dev, blockno).
func (l *bufLru) recycle(dev uint32, blockno common.Bnum) (int, bool) {
	for i := l.tail; i != nilIndex; i = l.inner[i].prev {
		b := &l.inner[i]
		if b.refcnt == 0 {
			b.dev = dev
			b.blockno = blockno
			b.refcnt += 1
			return b.index, true
		}
	}
	return 0, false
}

// moveIfNoRef drops a reference on slot index and, if that was the last
// one, moves the slot to the head.
func (l *bufLru) moveIfNoRef(index int) {
	b := &l.inner[index]
	if b.refcnt == 0 {
		panic("brelse: refcnt")
	}
	b.refcnt -= 1
	if b.refcnt != 0 || l.head == index {
		return
	}

	// b is not the head, so it has a prev
	if l.tail == index && b.prev != nilIndex {
		l.tail = b.prev
	}

	// detach
	if b.next != nilIndex {
		l.inner[b.next].prev = b.prev
	}
	if b.prev != nilIndex {
		l.inner[b.prev].next = b.next
	}

	// attach at head
	b.prev = nilIndex
	b.next = l.head
	l.inner[l.head].prev = index
	l.head = index
}

// order returns slot indices from head to tail.
func (l *bufLru) order() []int {
	var idx []int
	for i := l.head; i != nilIndex && len(idx) <= len(l.inner); i = l.inner[i].next {
		idx = append(idx, i)
	}
	return idx
}

// check verifies the list structure.
func (l *bufLru) check() error {
	n := len(l.inner)
	if l.inner[l.head].prev != nilIndex {
		return fmt.Errorf("head %d has prev %d", l.head, l.inner[l.head].prev)
	}
	if l.inner[l.tail].next != nilIndex {
		return fmt.Errorf("tail %d has next %d", l.tail, l.inner[l.tail].next)
	}
	seen := make([]bool, n)
	count := 0
	last := nilIndex
	for i := l.head; i != nilIndex; i = l.inner[i].next {
		if count >= n {
			return fmt.Errorf("cycle in lru list")
		}
		b := &l.inner[i]
		if b.index != i {
			return fmt.Errorf("slot %d has index %d", i, b.index)
		}
		if seen[i] {
			return fmt.Errorf("slot %d linked twice", i)
		}
		seen[i] = true
		if b.prev != last {
			return fmt.Errorf("slot %d prev %d, want %d", i, b.prev, last)
		}
		last = i
		count += 1
	}
	if count != n {
		return fmt.Errorf("lru list has %d records, want %d", count, n)
	}
	if last != l.tail {
		return fmt.Errorf("list ends at %d, tail is %d", last, l.tail)
	}
	for i := range l.inner {
		a := &l.inner[i]
		if a.refcnt == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			b := &l.inner[j]
			if b.refcnt != 0 && a.dev == b.dev && a.blockno == b.blockno {
				return fmt.Errorf("slots %d and %d both hold %d/%d", i, j, a.dev, a.blockno)
			}
		}
	}
	return nil
}
