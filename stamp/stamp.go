package stamp

import (
	"github.com/goose-lang/std"
	"github.com/mit-pdos/go-journal/common"
	"github.com/tchajed/marshal"
)

//
// A stamped block carries its own address and a sequence number in a
// small header, followed by a payload that is a function of the header.
// Reading back a block whose stamp does not match where it was read from
// exposes lost or misdirected writes.
//

const HDRSZ uint64 = 4 + 8 + 8

type Stamp struct {
	Dev     uint32
	Blockno common.Bnum
	Seq     uint64
}

func payload(s Stamp, n uint64) []byte {
	p := make([]byte, n)
	x := uint64(s.Dev)<<56 ^ uint64(s.Blockno)<<20 ^ s.Seq
	for i := range p {
		x = x*6364136223846793005 + 1442695040888963407
		p[i] = byte(x >> 56)
	}
	return p
}

// Encode fills a block of sz bytes with stamp s.
func Encode(s Stamp, sz uint64) []byte {
	if sz < HDRSZ {
		panic("stamp: block too small")
	}
	enc := marshal.NewEnc(sz)
	enc.PutInt32(s.Dev)
	enc.PutInt(uint64(s.Blockno))
	enc.PutInt(s.Seq)
	enc.PutBytes(payload(s, sz-HDRSZ))
	return enc.Finish()
}

// Decode returns the stamp in blk and whether the rest of blk is the
// payload that stamp implies.
func Decode(blk []byte) (Stamp, bool) {
	if uint64(len(blk)) < HDRSZ {
		return Stamp{}, false
	}
	dec := marshal.NewDec(blk)
	var s Stamp
	s.Dev = dec.GetInt32()
	s.Blockno = common.Bnum(dec.GetInt())
	s.Seq = dec.GetInt()
	rest := dec.GetBytes(uint64(len(blk)) - HDRSZ)
	return s, std.BytesEqual(rest, payload(s, uint64(len(rest))))
}

// Verify reports whether blk holds a well-formed stamp for (dev, blockno).
func Verify(blk []byte, dev uint32, blockno common.Bnum) (Stamp, bool) {
	s, ok := Decode(blk)
	return s, ok && s.Dev == dev && s.Blockno == blockno
}
