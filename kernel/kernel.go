package kernel

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-rvbio/bio"
	"github.com/mit-pdos/go-rvbio/config"
	"github.com/mit-pdos/go-rvbio/cpu"
	"github.com/mit-pdos/go-rvbio/virtio"
)

// Work is what a hart runs once the kernel is up.
type Work func(c *cpu.CPU, bc *bio.Bcache) error

type Kernel struct {
	cfg     config.Config
	cpus    *cpu.Table
	disk    *virtio.Disk
	bc      *bio.Bcache
	started atomic.Bool
}

// New attaches the configured disks. cfg must be valid.
func New(cfg config.Config) (*Kernel, error) {
	util.Debug = cfg.Debug
	vd := virtio.MkDisk()
	for _, d := range cfg.DiskList() {
		if err := vd.Open(d.Dev, d.Path, d.Blocks); err != nil {
			vd.Close()
			return nil, err
		}
	}
	k := &Kernel{
		cfg:  cfg,
		cpus: cpu.MkTable(),
		disk: vd,
	}
	k.bc = bio.MkBcache(vd)
	return k, nil
}

func (k *Kernel) Disk() *virtio.Disk {
	return k.disk
}

func (k *Kernel) Bcache() *bio.Bcache {
	return k.bc
}

// Hart returns hart id; only valid to drive it once Run has returned.
func (k *Kernel) Hart(id int) *cpu.CPU {
	return k.cpus.Get(id)
}

func (k *Kernel) NCPU() int {
	return k.cfg.NCPU
}

// Run boots every hart. Hart 0 initializes the buffer cache and then
// releases the others, which wait until it is done. Every hart then runs
// work. Run returns when all harts have finished, with the first error.
func (k *Kernel) Run(work Work) error {
	if k.started.Load() {
		panic("kernel: Run twice")
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var first error
	for id := 0; id < k.cfg.NCPU; id++ {
		wg.Add(1)
		go func(c *cpu.CPU) {
			defer wg.Done()
			err := k.hartMain(c, work)
			if err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(k.cpus.Get(id))
	}
	wg.Wait()
	return first
}

func (k *Kernel) hartMain(c *cpu.CPU, work Work) error {
	if c.Id() == 0 {
		util.DPrintf(1, "rvbio kernel is booting with %d harts\n", k.cfg.NCPU)
		k.bc.Init(c)
		k.started.Store(true)
	} else {
		for !k.started.Load() {
			runtime.Gosched()
		}
		util.DPrintf(1, "%v starting\n", c)
	}
	c.IntrOn()
	if err := work(c, k.bc); err != nil {
		return fmt.Errorf("%v: %w", c, err)
	}
	if c.Noff() != 0 {
		panic(fmt.Sprintf("%v: work returned holding a spinlock", c))
	}
	return nil
}

func (k *Kernel) WriteStats(w io.Writer) {
	k.bc.WriteStats(w)
	k.disk.WriteStats(w)
}

func (k *Kernel) Shutdown() {
	k.disk.Close()
}
