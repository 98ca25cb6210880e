package virtio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-rvbio/param"
)

func mkBlock(b byte) []byte {
	data := make([]byte, disk.BlockSize)
	for i := range data {
		data[i] = b
	}
	return data
}

func TestReadWrite(t *testing.T) {
	assert := assert.New(t)
	vd := MkDisk()
	require.NoError(t, vd.Open(1, "", 16))

	assert.NoError(vd.Rw(mkBlock(3), 1, 5, true))
	got := make([]byte, disk.BlockSize)
	assert.NoError(vd.Rw(got, 1, 5, false))
	assert.Equal(mkBlock(3), got)

	assert.Equal(uint32(1), vd.Reads(1))
	assert.Equal(uint32(1), vd.Writes(1))
	assert.Equal(uint64(16), vd.Size(1))
}

func TestErrors(t *testing.T) {
	assert := assert.New(t)
	vd := MkDisk()
	require.NoError(t, vd.Open(0, "", 4))

	buf := make([]byte, disk.BlockSize)
	assert.ErrorIs(vd.Rw(buf, 2, 0, false), ErrNoDevice)
	assert.ErrorIs(vd.Rw(buf, 0, 4, false), ErrOutOfRange)
	assert.ErrorIs(vd.Rw(buf[:10], 0, 0, false), ErrBadBuffer)
	assert.ErrorIs(vd.Attach(param.NDEV, disk.NewMemDisk(1)), ErrNoDevice)
	assert.Error(vd.Open(0, "", 4), "double attach")
	assert.Equal(uint64(0), vd.Size(3))
}

func TestFailNextIsOneShot(t *testing.T) {
	assert := assert.New(t)
	vd := MkDisk()
	require.NoError(t, vd.Open(1, "", 4))
	buf := make([]byte, disk.BlockSize)

	vd.FailNext(1, false)
	assert.NoError(vd.Rw(buf, 1, 0, true), "fault is for reads only")
	assert.ErrorIs(vd.Rw(buf, 1, 0, false), ErrInjected)
	assert.NoError(vd.Rw(buf, 1, 0, false))
}

func TestFileDisk(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "fs.img")

	vd := MkDisk()
	require.NoError(t, vd.Open(1, path, 8))
	assert.NoError(vd.Rw(mkBlock(0xaa), 1, 7, true))
	vd.Close()

	_, err := os.Stat(path)
	require.NoError(t, err)

	vd = MkDisk()
	require.NoError(t, vd.Open(1, path, 8))
	defer vd.Close()
	got := make([]byte, disk.BlockSize)
	assert.NoError(vd.Rw(got, 1, 7, false))
	assert.Equal(mkBlock(0xaa), got)

	var out bytes.Buffer
	vd.WriteStats(&out)
	assert.Contains(out.String(), "dev 1")
}
