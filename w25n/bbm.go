package w25n

import (
	"encoding/binary"

	"github.com/gentam/wbflash"
	"github.com/gentam/wbflash/qspi"
)

// LUTSize is the number of bad block management link entries.
const LUTSize = 20

// LUTEntry is one link of the bad block management table.
type LUTEntry struct {
	Logical  uint16 // LBA without flag bits
	Physical uint16
	Enabled  bool // LBA bit 15
	Invalid  bool // LBA bit 14
}

// SwapBlock links the bad logical block to a good physical block in the
// device's look-up table. No replacement policy is implemented here; the
// caller picks both blocks.
func (d *Device) SwapBlock(logical, physical uint16) error {
	d.cfg.logger.Info("swap block", "logical", logical, "physical", physical)
	if err := d.writeEnable(); err != nil {
		return opError("bad block management", uint32(logical), err)
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], logical)
	binary.BigEndian.PutUint16(payload[2:], physical)
	cmd := qspi.Command{Instruction: cmdBBManagement, DataLines: qspi.Lines1}
	if err := d.bus.Transmit(cmd, payload); err != nil {
		return opError("bad block management", uint32(logical), wbflash.BusError(err))
	}
	return opError("bad block management", uint32(logical), d.waitReady(0))
}

// ReadBBMLUT returns the populated entries of the look-up table.
func (d *Device) ReadBBMLUT() ([]LUTEntry, error) {
	if err := d.waitReady(0); err != nil {
		return nil, opError("read BBM LUT", 0, err)
	}
	buf := make([]byte, 4*LUTSize)
	cmd := qspi.Command{Instruction: cmdReadBBMLUT, DummyCycles: 8, DataLines: qspi.Lines1}
	if err := d.bus.Receive(cmd, buf); err != nil {
		return nil, opError("read BBM LUT", 0, wbflash.BusError(err))
	}

	var lut []LUTEntry
	for i := 0; i < LUTSize; i++ {
		lba := binary.BigEndian.Uint16(buf[4*i:])
		pba := binary.BigEndian.Uint16(buf[4*i+2:])
		if lba == 0 && pba == 0 {
			continue
		}
		lut = append(lut, LUTEntry{
			Logical:  lba & 0x3FF,
			Physical: pba,
			Enabled:  lba&(1<<15) != 0,
			Invalid:  lba&(1<<14) != 0,
		})
	}
	return lut, nil
}

// LastECCFailurePage returns the page address of the last uncorrectable
// ECC failure during a continuous read.
func (d *Device) LastECCFailurePage() (uint16, error) {
	if err := d.waitReady(0); err != nil {
		return 0, opError("last ECC failure page", 0, err)
	}
	buf := make([]byte, 2)
	cmd := qspi.Command{Instruction: cmdLastECCFailPageAddr, DummyCycles: 8, DataLines: qspi.Lines1}
	if err := d.bus.Receive(cmd, buf); err != nil {
		return 0, opError("last ECC failure page", 0, wbflash.BusError(err))
	}
	return binary.BigEndian.Uint16(buf), nil
}
