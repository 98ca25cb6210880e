package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/tailscale/hujson"

	"github.com/mit-pdos/go-rvbio/param"
)

var ErrInvalid = errors.New("invalid config")

type DiskConfig struct {
	Path   string `json:"path,omitempty"` // empty for MemDisk
	Blocks uint64 `json:"blocks"`
}

// Config describes the machine to boot. Disks is keyed by device number.
type Config struct {
	NCPU      int                   `json:"ncpu"`
	Disks     map[string]DiskConfig `json:"disks"`
	Debug     uint64                `json:"debug"`
	StatsFile string                `json:"stats_file,omitempty"`
}

func Default() Config {
	return Config{
		NCPU: param.NSMP,
		Disks: map[string]DiskConfig{
			strconv.FormatUint(uint64(param.ROOTDEV), 10): {Blocks: 1024},
		},
	}
}

// Load reads a JSONC config file from path and merges it over the
// defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	fileCfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg = Merge(cfg, fileCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON with comments and trailing commas.
func Parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalid, err)
	}
	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// Merge overlays the set fields of over onto base. A disks section
// replaces the base disks entirely.
func Merge(base, over Config) Config {
	if over.NCPU != 0 {
		base.NCPU = over.NCPU
	}
	if over.Disks != nil {
		base.Disks = over.Disks
	}
	if over.Debug != 0 {
		base.Debug = over.Debug
	}
	if over.StatsFile != "" {
		base.StatsFile = over.StatsFile
	}
	return base
}

func (cfg Config) Validate() error {
	if cfg.NCPU < 1 || cfg.NCPU > param.NCPU {
		return fmt.Errorf("%w: ncpu %d not in [1, %d]", ErrInvalid, cfg.NCPU, param.NCPU)
	}
	if len(cfg.Disks) == 0 {
		return fmt.Errorf("%w: no disks", ErrInvalid)
	}
	for name, d := range cfg.Disks {
		dev, err := strconv.ParseUint(name, 10, 32)
		if err != nil || uint32(dev) >= param.NDEV {
			return fmt.Errorf("%w: bad device number %q", ErrInvalid, name)
		}
		if d.Blocks == 0 {
			return fmt.Errorf("%w: disk %s has no blocks", ErrInvalid, name)
		}
	}
	return nil
}

type Disk struct {
	Dev uint32
	DiskConfig
}

// DiskList returns the configured disks ordered by device number.
// cfg must be valid.
func (cfg Config) DiskList() []Disk {
	var disks []Disk
	for name, d := range cfg.Disks {
		dev, _ := strconv.ParseUint(name, 10, 32)
		disks = append(disks, Disk{Dev: uint32(dev), DiskConfig: d})
	}
	sort.Slice(disks, func(i, j int) bool { return disks[i].Dev < disks[j].Dev })
	return disks
}
