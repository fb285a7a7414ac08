package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"periph.io/x/conn/v3/physic"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
	"github.com/gentam/wbflash/w25n"
	"github.com/gentam/wbflash/w25q"
)

// deviceFlags are shared by every command that talks to the chip.
type deviceFlags struct {
	chip    string
	lines   int
	clock   physic.Frequency
	verbose bool
}

func addDeviceFlags(fs *flag.FlagSet) *deviceFlags {
	f := &deviceFlags{clock: wbflash.DefaultClock}
	fs.StringVar(&f.chip, "chip", "nor", "flash type: nand (W25N01GV) or nor (W25Q128)")
	fs.IntVar(&f.lines, "lines", 1, "data lines: 1, or 4 on a quad capable bus")
	fs.Var(&f.clock, "clock", "SPI clock frequency")
	fs.BoolVar(&f.verbose, "v", false, "log every flash operation")
	return f
}

// addrFlag registers a flag accepting decimal or 0x prefixed hex.
func addrFlag(fs *flag.FlagSet, name string, value uint32, usage string) *uint32 {
	p := new(uint32)
	*p = value
	fs.Func(name, fmt.Sprintf("%s (default 0x%X)", usage, value), func(s string) error {
		v, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return err
		}
		*p = uint32(v)
		return nil
	})
	return p
}

// access is how far open goes.
type access int

const (
	accessAdapter access = iota // adapter only, the chip is not touched
	accessRead                  // no register writes
	accessWrite                 // unprotected for program and erase
)

// target is an opened chip of either type.
type target struct {
	adapter *wbflash.Adapter
	nand    *w25n.Device
	nor     *w25q.Device
	dev     wbflash.Device
	logger  *slog.Logger
}

func (f *deviceFlags) open(acc access) *target {
	if f.chip != "nand" && f.chip != "nor" {
		fatalUsage("unknown chip %q: want nand or nor", f.chip)
	}
	lines := qspi.Lines(f.lines)
	if lines != qspi.Lines1 && lines != qspi.Lines4 {
		fatalUsage("invalid -lines %d: want 1 or 4", f.lines)
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a, err := wbflash.OpenFT2232H(f.clock)
	if err != nil {
		fatalf("%v", err)
	}
	logger.Debug("adapter opened", "bus", a.Bus, "clock", f.clock)

	t := &target{adapter: a, logger: logger}
	if acc == accessAdapter {
		return t
	}
	switch f.chip {
	case "nand":
		t.nand, t.dev, err = openNAND(a.Bus, acc, w25n.WithLogger(logger), w25n.WithDataLines(lines))
	case "nor":
		opts := []w25q.Option{w25q.WithLogger(logger), w25q.WithDataLines(lines)}
		// a chip left in deep power-down does not answer the JEDEC ID read
		err = w25q.New(a.Bus, opts...).ReleasePowerDown()
		if err == nil {
			t.nor, err = w25q.Open(a.Bus, opts...)
		}
		if err == nil {
			t.dev = t.nor.Flash()
		}
	}
	if err != nil {
		a.Close()
		fatalf("open %s flash: %v", f.chip, err)
	}
	return t
}

// openNAND opens the chip and picks the read mode. Writers switch the chip
// to buffer mode and clear the protection bits, which are all set after
// power up; readers follow the mode the chip is already in.
func openNAND(bus qspi.Bus, acc access, opts ...w25n.Option) (*w25n.Device, wbflash.Device, error) {
	d, err := w25n.Open(bus, opts...)
	if err != nil {
		return nil, nil, err
	}
	if acc == accessWrite {
		if err := d.Unprotect(); err != nil {
			return nil, nil, err
		}
		if err := d.SetBufferMode(true); err != nil {
			return nil, nil, err
		}
		return d, d.Flash(w25n.BufferRead), nil
	}
	cfg, err := d.ReadStatusRegister(w25n.RegConfig)
	if err != nil {
		return nil, nil, err
	}
	mode := w25n.ContinuousRead
	if cfg&w25n.ConfigBUF != 0 {
		mode = w25n.BufferRead
	}
	return d, d.Flash(mode), nil
}

func (t *target) Close() {
	if err := t.adapter.Close(); err != nil {
		t.logger.Warn("close adapter", "err", err)
	}
}
