package main

import "flag"

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	df := addDeviceFlags(fs)
	var chipErase bool
	addr := addrFlag(fs, "addr", 0, "start address")
	size := addrFlag(fs, "size", 0, "number of bytes to erase")
	fs.BoolVar(&chipErase, "chip-erase", false, "erase the entire flash (NOR only)")
	fs.Parse(args)

	if !chipErase && *size == 0 {
		fatalUsage("-size or -chip-erase is required")
	}

	t := df.open(accessWrite)
	defer t.Close()

	if chipErase {
		if t.nor == nil {
			fatalUsage("-chip-erase is only supported by NOR flash")
		}
		t.logger.Info("chip erase, this takes a while")
		if err := t.nor.ChipErase(); err != nil {
			fatalf("chip erase failed: %v", err)
		}
		return
	}
	if err := t.dev.EraseRange(*addr, *size); err != nil {
		fatalf("erase failed: %v", err)
	}
}
