package bio

import (
	"io"

	"github.com/mit-pdos/go-rvbio/util/stats"
)

type statOp = stats.Op

const (
	hitOp int = iota
	missOp
	readOp
	writeOp
	releaseOp
	nOps
)

var opNames = []string{"bget.hit", "bget.miss", "bread.disk", "bwrite", "brelse"}

type Stats struct {
	Hits     uint32
	Misses   uint32
	Reads    uint32
	Writes   uint32
	Releases uint32
}

func (bc *Bcache) Stats() Stats {
	return Stats{
		Hits:     bc.ops[hitOp].Count(),
		Misses:   bc.ops[missOp].Count(),
		Reads:    bc.ops[readOp].Count(),
		Writes:   bc.ops[writeOp].Count(),
		Releases: bc.ops[releaseOp].Count(),
	}
}

func (bc *Bcache) WriteStats(w io.Writer) {
	stats.WriteTable(opNames, bc.ops[:], w)
}

func (bc *Bcache) ResetStats() {
	for i := range bc.ops {
		bc.ops[i].Reset()
	}
}
