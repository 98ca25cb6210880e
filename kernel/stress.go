package kernel

import (
	"fmt"
	"math/rand"

	"github.com/goose-lang/std"
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-rvbio/bio"
	"github.com/mit-pdos/go-rvbio/cpu"
	"github.com/mit-pdos/go-rvbio/param"
	"github.com/mit-pdos/go-rvbio/stamp"
)

var zeroBlock = make([]byte, param.BSIZE)

// Stress returns work that performs niter read-verify-stamp-write cycles
// on random blocks in [0, nblocks) of dev. Every block read must be
// either never written or stamped with its own address.
func Stress(dev uint32, nblocks uint64, niter int, seed int64) Work {
	return func(c *cpu.CPU, bc *bio.Bcache) error {
		rnd := rand.New(rand.NewSource(seed + int64(c.Id())))
		for i := 0; i < niter; i++ {
			blockno := common.Bnum(rnd.Uint64() % nblocks)
			if err := stampOne(c, bc, dev, blockno); err != nil {
				return err
			}
		}
		util.DPrintf(1, "%v: stress done, %d ops\n", c, niter)
		return nil
	}
}

func stampOne(c *cpu.CPU, bc *bio.Bcache, dev uint32, blockno common.Bnum) error {
	b, err := bc.Read(c, dev, blockno)
	if err != nil {
		return err
	}
	defer b.Release(c)

	data := b.Data()
	var seq uint64
	if !std.BytesEqual(data[:], zeroBlock) {
		s, ok := stamp.Verify(data[:], dev, blockno)
		if !ok {
			return fmt.Errorf("block %d/%d: bad stamp %+v", dev, blockno, s)
		}
		seq = s.Seq + 1
	}
	copy(data[:], stamp.Encode(stamp.Stamp{Dev: dev, Blockno: blockno, Seq: seq}, param.BSIZE))
	return b.Write()
}
