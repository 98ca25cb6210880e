package param

import "github.com/tchajed/goose/machine/disk"

// maximum number of harts
const NCPU int = 8

// harts started when nothing else is configured
const NSMP int = 3

// size of the buffer cache
const NBUF int = 30

// size of a cache block; one cache block is one device block
const BSIZE uint64 = disk.BlockSize

// maximum number of block devices
const NDEV uint32 = 4

const ROOTDEV uint32 = 1
