package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/mit-pdos/go-journal/util"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/mit-pdos/go-rvbio/config"
	"github.com/mit-pdos/go-rvbio/kernel"
	"github.com/mit-pdos/go-rvbio/param"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rvbio [flags] stress|shell\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	cfgPath := flag.String("config", "", "JSONC machine config")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	ncpu := flag.Int("ncpu", 0, "number of harts (overrides config)")
	diskfile := flag.String("disk", "", "disk image for the root device (empty for MemDisk)")
	diskBlocks := flag.Uint64("blocks", 0, "size of the root device in blocks")
	debug := flag.Uint64("debug", 0, "debug level (higher is more verbose)")
	dumpStats := flag.Bool("stats", false, "dump stats to stderr at end")
	statsFile := flag.String("stats-file", "", "write stats to this file at end")
	niter := flag.Int("iters", 1000, "stress: operations per hart")
	nblocks := flag.Uint64("nblocks", 2*uint64(param.NBUF), "stress: blocks to spread operations over")
	seed := flag.Int64("seed", 1, "stress: random seed")
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	mode := flag.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvbio: %v\n", err)
		os.Exit(1)
	}
	cfg = applyFlags(cfg, *ncpu, *diskfile, *diskBlocks, *debug, *statsFile)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "rvbio: %v\n", err)
		os.Exit(1)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rvbio: %v\n", err)
			os.Exit(1)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	k, err := kernel.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvbio: %v\n", err)
		os.Exit(1)
	}
	defer k.Shutdown()

	if *dumpStats {
		statSig := make(chan os.Signal, 1)
		signal.Notify(statSig, syscall.SIGUSR1)
		go func() {
			for {
				<-statSig
				k.WriteStats(os.Stderr)
			}
		}()
	}

	switch mode {
	case "stress":
		if *nblocks == 0 || *nblocks > k.Disk().Size(param.ROOTDEV) {
			fmt.Fprintf(os.Stderr, "rvbio: nblocks must be in [1, %d]\n", k.Disk().Size(param.ROOTDEV))
			os.Exit(2)
		}
		err = k.Run(kernel.Stress(param.ROOTDEV, *nblocks, *niter, *seed))
	case "shell":
		err = k.Run(shellWork(os.Stdout))
	default:
		usage()
		os.Exit(2)
	}

	if *dumpStats {
		k.WriteStats(os.Stderr)
	}
	if cfg.StatsFile != "" {
		buf := new(bytes.Buffer)
		k.WriteStats(buf)
		if werr := atomic.WriteFile(cfg.StatsFile, buf); werr != nil {
			fmt.Fprintf(os.Stderr, "rvbio: write stats: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvbio: %v\n", err)
		k.Shutdown()
		os.Exit(1)
	}
	util.DPrintf(1, "rvbio: %s done\n", mode)
}

// applyFlags overrides cfg with the flags that were set.
func applyFlags(cfg config.Config, ncpu int, diskfile string, blocks uint64, debug uint64, statsFile string) config.Config {
	if ncpu != 0 {
		cfg.NCPU = ncpu
	}
	if flag.CommandLine.Changed("disk") || blocks != 0 {
		name := fmt.Sprint(param.ROOTDEV)
		d := cfg.Disks[name]
		if flag.CommandLine.Changed("disk") {
			d.Path = diskfile
		}
		if blocks != 0 {
			d.Blocks = blocks
		}
		disks := make(map[string]config.DiskConfig, len(cfg.Disks)+1)
		for n, dc := range cfg.Disks {
			disks[n] = dc
		}
		disks[name] = d
		cfg.Disks = disks
	}
	if debug != 0 {
		cfg.Debug = debug
	}
	if statsFile != "" {
		cfg.StatsFile = statsFile
	}
	return cfg
}
