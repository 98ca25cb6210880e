package virtio

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-rvbio/param"
	"github.com/mit-pdos/go-rvbio/util/timed_disk"
)

//
// Stand-in for the virtio block driver. Each device number is backed by a
// goose disk (in memory or a file) and every request is synchronous: Rw
// returns once the block has been transferred. Requests for different
// blocks may run concurrently.
//

var (
	ErrNoDevice   = errors.New("no such device")
	ErrOutOfRange = errors.New("block out of range")
	ErrBadBuffer  = errors.New("buffer is not one block")
	ErrInjected   = errors.New("injected device failure")
)

type fault struct {
	dev   uint32
	write bool
}

type Disk struct {
	mu     *sync.Mutex
	devs   map[uint32]*timed_disk.Disk
	faults map[fault]bool
}

func MkDisk() *Disk {
	return &Disk{
		mu:     new(sync.Mutex),
		devs:   make(map[uint32]*timed_disk.Disk),
		faults: make(map[fault]bool),
	}
}

// Attach makes d available as device dev.
func (vd *Disk) Attach(dev uint32, d disk.Disk) error {
	if dev >= param.NDEV {
		return fmt.Errorf("attach %d: %w", dev, ErrNoDevice)
	}
	vd.mu.Lock()
	defer vd.mu.Unlock()
	if _, ok := vd.devs[dev]; ok {
		return fmt.Errorf("attach %d: device already attached", dev)
	}
	vd.devs[dev] = timed_disk.New(d)
	util.DPrintf(1, "virtio: attach dev %d, %d blocks\n", dev, d.Size())
	return nil
}

// Open attaches a MemDisk of nblocks if path is empty and a FileDisk at
// path otherwise.
func (vd *Disk) Open(dev uint32, path string, nblocks uint64) error {
	var d disk.Disk
	if path == "" {
		d = disk.NewMemDisk(nblocks)
	} else {
		fd, err := disk.NewFileDisk(path, nblocks)
		if err != nil {
			return fmt.Errorf("could not create disk %s: %w", path, err)
		}
		d = fd
	}
	return vd.Attach(dev, d)
}

func (vd *Disk) device(dev uint32) (*timed_disk.Disk, error) {
	vd.mu.Lock()
	defer vd.mu.Unlock()
	d, ok := vd.devs[dev]
	if !ok {
		return nil, ErrNoDevice
	}
	return d, nil
}

// FailNext makes the next read (or write) on dev fail with ErrInjected.
func (vd *Disk) FailNext(dev uint32, write bool) {
	vd.mu.Lock()
	vd.faults[fault{dev: dev, write: write}] = true
	vd.mu.Unlock()
}

func (vd *Disk) takeFault(dev uint32, write bool) bool {
	vd.mu.Lock()
	defer vd.mu.Unlock()
	f := fault{dev: dev, write: write}
	if vd.faults[f] {
		delete(vd.faults, f)
		return true
	}
	return false
}

// Size returns the number of blocks on dev, or 0 if there is no such device.
func (vd *Disk) Size(dev uint32) uint64 {
	d, err := vd.device(dev)
	if err != nil {
		return 0
	}
	return d.Size()
}

// Rw transfers one block between data and block blockno of dev.
func (vd *Disk) Rw(data []byte, dev uint32, blockno common.Bnum, write bool) error {
	op := "read"
	if write {
		op = "write"
	}
	d, err := vd.device(dev)
	if err != nil {
		return fmt.Errorf("virtio %s %d/%d: %w", op, dev, blockno, err)
	}
	if uint64(len(data)) != disk.BlockSize {
		return fmt.Errorf("virtio %s %d/%d: %w", op, dev, blockno, ErrBadBuffer)
	}
	a := uint64(blockno)
	if a >= d.Size() {
		return fmt.Errorf("virtio %s %d/%d: %w", op, dev, blockno, ErrOutOfRange)
	}
	if vd.takeFault(dev, write) {
		return fmt.Errorf("virtio %s %d/%d: %w", op, dev, blockno, ErrInjected)
	}
	util.DPrintf(5, "virtio: %s %d/%d\n", op, dev, blockno)
	if write {
		blk := make(disk.Block, disk.BlockSize)
		copy(blk, data)
		d.Write(a, blk)
		d.Barrier()
	} else {
		copy(data, d.Read(a))
	}
	return nil
}

func (vd *Disk) devNums() []uint32 {
	vd.mu.Lock()
	defer vd.mu.Unlock()
	var devs []uint32
	for dev := range vd.devs {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i] < devs[j] })
	return devs
}

// Reads returns the number of blocks read from dev.
func (vd *Disk) Reads(dev uint32) uint32 {
	d, err := vd.device(dev)
	if err != nil {
		return 0
	}
	return d.Reads()
}

// Writes returns the number of blocks written to dev.
func (vd *Disk) Writes(dev uint32) uint32 {
	d, err := vd.device(dev)
	if err != nil {
		return 0
	}
	return d.Writes()
}

func (vd *Disk) WriteStats(w io.Writer) {
	for _, dev := range vd.devNums() {
		d, _ := vd.device(dev)
		fmt.Fprintf(w, "dev %d\n", dev)
		d.WriteStats(w)
	}
}

func (vd *Disk) Close() {
	for _, dev := range vd.devNums() {
		d, _ := vd.device(dev)
		d.Close()
	}
}
