package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mit-pdos/go-journal/common"
	"github.com/peterh/liner"

	"github.com/mit-pdos/go-rvbio/bio"
	"github.com/mit-pdos/go-rvbio/cpu"
	"github.com/mit-pdos/go-rvbio/kernel"
)

const shellHelp = `commands:
  read DEV BLK         print the first bytes of a block
  write DEV BLK TEXT   store TEXT at the start of a block and write it back
  lru                  list slots, most recently used first
  stats                print cache statistics
  check                verify the recency list
  quit`

// shellWork runs an interactive prompt on hart 0; the other harts idle.
func shellWork(out io.Writer) kernel.Work {
	return func(c *cpu.CPU, bc *bio.Bcache) error {
		if c.Id() != 0 {
			return nil
		}
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		for {
			input, err := line.Prompt("rvbio> ")
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			line.AppendHistory(input)
			if input == "quit" || input == "exit" {
				return nil
			}
			if err := runCommand(c, bc, out, input); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func parseBlock(args []string) (uint32, common.Bnum, error) {
	if len(args) < 2 {
		return 0, 0, errors.New("need DEV BLK")
	}
	dev, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad device: %w", err)
	}
	blk, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad block: %w", err)
	}
	return uint32(dev), common.Bnum(blk), nil
}

func runCommand(c *cpu.CPU, bc *bio.Bcache, out io.Writer, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "help":
		fmt.Fprintln(out, shellHelp)
	case "read":
		dev, blk, err := parseBlock(fields[1:])
		if err != nil {
			return err
		}
		b, err := bc.Read(c, dev, blk)
		if err != nil {
			return err
		}
		defer b.Release(c)
		fmt.Fprintf(out, "%d/%d: %q\n", dev, blk, strings.TrimRight(string(b.Data()[:64]), "\x00"))
	case "write":
		dev, blk, err := parseBlock(fields[1:])
		if err != nil {
			return err
		}
		text := strings.Join(fields[3:], " ")
		b, err := bc.Read(c, dev, blk)
		if err != nil {
			return err
		}
		defer b.Release(c)
		data := b.Data()
		for i := range data {
			data[i] = 0
		}
		copy(data[:], text)
		return b.Write()
	case "lru":
		for _, s := range bc.Slots(c) {
			fmt.Fprintf(out, "slot %2d  %d/%-6d ref %d valid %v\n", s.Index, s.Dev, s.Blockno, s.Refcnt, s.Valid)
		}
	case "stats":
		bc.WriteStats(out)
	case "check":
		if err := bc.Check(c); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return nil
}
