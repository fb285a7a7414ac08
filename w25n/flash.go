package w25n

import (
	"fmt"

	"github.com/gentam/wbflash"
)

// flashDevice adapts a Device to wbflash.Device.
type flashDevice struct {
	d    *Device
	mode ReadMode
}

// Flash returns d as a wbflash.Device reading in mode.
func (d *Device) Flash(mode ReadMode) wbflash.Device {
	return &flashDevice{d: d, mode: mode}
}

func (f *flashDevice) Geometry() wbflash.Geometry { return f.d.geo }
func (f *flashDevice) WaitReady() error           { return f.d.WaitReady() }

func (f *flashDevice) ReadBytes(addr uint32, buf []byte) (int, error) {
	return f.d.ReadBytes(addr, buf, f.mode)
}

// ProgramBytes splits data at page boundaries, so addr need not be page
// aligned.
func (f *flashDevice) ProgramBytes(addr uint32, data []byte) error {
	for len(data) > 0 {
		n := min(uint32(len(data)), f.d.geo.PageSize-f.d.geo.Column(addr))
		if err := f.d.PageProgram(addr, data[:n]); err != nil {
			return err
		}
		addr += n
		data = data[n:]
	}
	return nil
}

// EraseRange erases every block overlapping [addr, addr+size).
func (f *flashDevice) EraseRange(addr, size uint32) error {
	if size == 0 {
		return nil
	}
	g := f.d.geo
	if uint64(addr)+uint64(size) > g.Capacity() {
		return &wbflash.OpError{Op: "erase range", Addr: addr, Err: fmt.Errorf("%w: %d bytes", wbflash.ErrTooLarge, size)}
	}
	first := g.Block(g.Page(addr))
	last := g.Block(g.Page(addr + size - 1))
	for b := first; b <= last; b++ {
		if err := f.d.BlockErase(g.BlockToLinear(b)); err != nil {
			return err
		}
	}
	return nil
}
