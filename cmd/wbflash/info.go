package main

import (
	"flag"
	"fmt"

	"periph.io/x/host/v3/ftdi"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/w25n"
	"github.com/gentam/wbflash/w25q"
)

func infoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	df := addDeviceFlags(fs)
	var adapterOnly bool
	fs.BoolVar(&adapterOnly, "a", false, "just print FTDI adapter information")
	fs.Parse(args)

	acc := accessRead
	if adapterOnly {
		acc = accessAdapter
	}
	t := df.open(acc)
	defer t.Close()
	printAdapter(t.adapter.FTDI)
	if adapterOnly {
		return
	}

	fmt.Println()
	switch {
	case t.nand != nil:
		printNAND(t.nand)
	case t.nor != nil:
		printNOR(t.nor)
	}
}

func printAdapter(ft *ftdi.FT232H) {
	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		fatalf("failed to read EEPROM: %v", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)
}

func printPart(id [3]byte) {
	p, ok := wbflash.LookupPart(id)
	if !ok {
		fmt.Printf("JEDEC ID:        %X (unknown)\n", id)
		return
	}
	fmt.Printf("JEDEC ID:        %X\n", id)
	fmt.Printf("Part:            %s\n", p.Name)
	g := p.Geometry
	fmt.Printf("Capacity:        %d bytes (%d blocks of %d pages of %d bytes)\n",
		g.Capacity(), g.Blocks, g.PagesPerBlock, g.PageSize)
}

func printNAND(d *w25n.Device) {
	id, err := d.ReadJEDEC()
	if err != nil {
		fatalf("read JEDEC ID failed: %v", err)
	}
	printPart(id)

	for _, r := range []struct {
		name string
		reg  byte
	}{
		{"Protection", w25n.RegProtection},
		{"Configuration", w25n.RegConfig},
	} {
		v, err := d.ReadStatusRegister(r.reg)
		if err != nil {
			fatalf("read %s register failed: %v", r.name, err)
		}
		fmt.Printf("%-16s %08b\n", r.name+":", byte(v))
	}
	sr, err := d.ReadStatusRegister(w25n.RegStatus)
	if err != nil {
		fatalf("read status register failed: %v", err)
	}
	fmt.Printf("Status:          %s\n", sr)

	lut, err := d.ReadBBMLUT()
	if err != nil {
		fatalf("read BBM LUT failed: %v", err)
	}
	fmt.Printf("BBM LUT:         %d of %d entries used\n", len(lut), w25n.LUTSize)
	for _, e := range lut {
		fmt.Printf("  block %4d -> %4d enabled=%t invalid=%t\n", e.Logical, e.Physical, e.Enabled, e.Invalid)
	}
}

func printNOR(d *w25q.Device) {
	id, err := d.ReadJEDEC()
	if err != nil {
		fatalf("read JEDEC ID failed: %v", err)
	}
	printPart(id)

	var sr [3]byte
	for n := range sr {
		if sr[n], err = d.ReadStatusRegister(n + 1); err != nil {
			fatalf("read status register %d failed: %v", n+1, err)
		}
	}
	fmt.Printf("Status-1:        %s\n", w25q.StatusRegister1(sr[0]))
	fmt.Printf("Status-2:        %s\n", w25q.StatusRegister2(sr[1]))
	fmt.Printf("Status-3:        %08b\n", sr[2])

	s, err := d.SFDP()
	if err != nil {
		fmt.Printf("SFDP:            %v\n", err)
		return
	}
	fmt.Printf("SFDP:            rev %d.%d, %d parameter tables\n", s.MajorRev, s.MinorRev, len(s.Parameters))
	if size, err := s.Size(); err == nil {
		fmt.Printf("  density        %d bytes\n", size)
	}
	if ps, err := s.PageSize(); err == nil {
		fmt.Printf("  page size      %d bytes\n", ps)
	}
	if types, err := s.EraseTypes(); err == nil {
		for _, e := range types {
			fmt.Printf("  erase          %6d bytes with 0x%02X\n", e.Size, e.Opcode)
		}
	}
}
