package w25q

import (
	"fmt"

	"github.com/gentam/wbflash"
)

type flashDevice struct{ d *Device }

// Flash returns d as a wbflash.Device.
func (d *Device) Flash() wbflash.Device { return flashDevice{d} }

func (f flashDevice) Geometry() wbflash.Geometry { return f.d.geo }
func (f flashDevice) WaitReady() error           { return f.d.WaitReady() }

func (f flashDevice) ProgramBytes(addr uint32, data []byte) error {
	return f.d.ProgramBytes(addr, data)
}

func (f flashDevice) ReadBytes(addr uint32, buf []byte) (int, error) {
	if err := f.d.ReadBytes(addr, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// EraseRange widens the range down to a 64KB boundary so that the erase
// policy covers all of [addr, addr+size).
func (f flashDevice) EraseRange(addr, size uint32) error {
	if size == 0 {
		return nil
	}
	if uint64(addr)+uint64(size) > uint64(f.d.capacity) {
		return &wbflash.OpError{Op: "erase range", Addr: addr, Err: fmt.Errorf("%w: %d bytes", wbflash.ErrTooLarge, size)}
	}
	base := addr &^ (block64Size - 1)
	return f.d.EraseRange(base, size+addr-base)
}
