package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/wbflash"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	df := addDeviceFlags(fs)
	var (
		nread   int
		outFile string
	)
	addr := addrFlag(fs, "addr", 0, "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	if nread <= 0 {
		fatalUsage("-n must be positive")
	}

	t := df.open(accessRead)
	defer t.Close()

	if uint64(*addr)+uint64(nread) > t.dev.Geometry().Capacity() {
		fatalf("read of %d bytes at 0x%X runs past the end of the flash", nread, *addr)
	}
	data := make([]byte, nread)
	if err := wbflash.ReadFull(t.dev, *addr, data); err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fatalf("write file failed: %v", err)
	}
}
