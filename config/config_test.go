package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-rvbio/param"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "rvbio.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, param.NSMP, cfg.NCPU)
	assert.Equal(t, []Disk{{Dev: param.ROOTDEV, DiskConfig: DiskConfig{Blocks: 1024}}}, cfg.DiskList())
}

func TestLoadJSONC(t *testing.T) {
	path := writeConfig(t, `{
		// two harts, two disks
		"ncpu": 2,
		"disks": {
			"1": {"blocks": 128},
			"0": {"path": "/tmp/x.img", "blocks": 64,},
		},
		"debug": 5,
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Config{
		NCPU: 2,
		Disks: map[string]DiskConfig{
			"0": {Path: "/tmp/x.img", Blocks: 64},
			"1": {Blocks: 128},
		},
		Debug: 5,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	list := cfg.DiskList()
	assert.Equal(t, uint32(0), list[0].Dev)
	assert.Equal(t, uint32(1), list[1].Dev)
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"stats_file": "out.txt"}`))
	require.NoError(t, err)
	assert.Equal(t, param.NSMP, cfg.NCPU)
	assert.Equal(t, "out.txt", cfg.StatsFile)
	assert.Len(t, cfg.Disks, 1)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":     `{"ncpu": }`,
		"ncpu":       `{"ncpu": 99}`,
		"device":     `{"disks": {"9": {"blocks": 1}}}`,
		"devicename": `{"disks": {"root": {"blocks": 1}}}`,
		"blocks":     `{"disks": {"1": {}}}`,
		"nodisks":    `{"disks": {}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}
