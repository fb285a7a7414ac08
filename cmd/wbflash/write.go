package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/wbflash"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	df := addDeviceFlags(fs)
	var (
		filename string
		noVerify bool
	)
	addr := addrFlag(fs, "addr", 0, "start address")
	fs.StringVar(&filename, "f", "", "input file")
	fs.BoolVar(&noVerify, "no-verify", false, "skip reading the image back")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	image, err := os.ReadFile(filename)
	if err != nil {
		fatalf("failed to read file: %v", err)
	}

	t := df.open(accessWrite)
	defer t.Close()

	phase := ""
	progress := func(p wbflash.Progress) {
		if p.Phase != phase {
			if phase != "" {
				fmt.Fprintln(os.Stderr)
			}
			phase = p.Phase
		}
		fmt.Fprintf(os.Stderr, "\r%-8s %3d%%", p.Phase, 100*p.Done/max(p.Total, 1))
	}
	err = wbflash.Update(t.dev, *addr, image,
		wbflash.WithProgress(progress),
		wbflash.WithUpdateLogger(t.logger),
		wbflash.WithVerify(!noVerify))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatalf("write flash failed: %v", err)
	}
}
