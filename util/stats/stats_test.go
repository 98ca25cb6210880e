package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndReset(t *testing.T) {
	assert := assert.New(t)
	var op Op
	op.Record(time.Now().Add(-2 * time.Millisecond))
	op.Record(time.Now())
	assert.Equal(uint32(2), op.Count())
	assert.Greater(op.MicrosPerOp(), 0.0)

	op.Reset()
	assert.Equal(uint32(0), op.Count())
	assert.Equal(0.0, op.MicrosPerOp())
}

func TestFormatTable(t *testing.T) {
	assert := assert.New(t)
	ops := make([]Op, 2)
	ops[0].Record(time.Now())
	s := FormatTable([]string{"hit", "miss"}, ops)
	assert.Contains(s, "hit")
	assert.Contains(s, "miss")
	assert.Contains(s, "total")
}

func TestMismatchedNames(t *testing.T) {
	assert.Panics(t, func() { FormatTable([]string{"a"}, nil) })
}
