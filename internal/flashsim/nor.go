package flashsim

import (
	"encoding/binary"
	"fmt"

	"github.com/gentam/wbflash/qspi"
)

const (
	norPageSize   = 256
	norSectorSize = 4096
)

// NOR models a W25Q128JV: a flat 24-bit address space with page program,
// 4K/32K/64K/chip erase and three status registers.
type NOR struct {
	state

	ID   [3]byte
	Size uint32
	// SFDP is served by the Read SFDP instruction.
	SFDP []byte
	// StuckQE makes writes to the QE bit of status register 2 not stick.
	StuckQE bool
	// Mapped is set once the bus entered memory-mapped mode.
	Mapped bool
	// PoweredDown is set by Power-down. The model then ignores everything
	// but Release Power-down and reads back 0xFF.
	PoweredDown bool

	sr       [3]byte
	sectors  map[uint32][]byte
	mappedTo qspi.Command
}

// NewNOR returns an erased 16MB W25Q128JV-IM.
func NewNOR() *NOR {
	return &NOR{
		ID:      [3]byte{0xEF, 0x70, 0x18},
		Size:    16 << 20,
		SFDP:    W25Q128SFDP(),
		sectors: make(map[uint32][]byte),
	}
}

// StatusRegister returns the current value of status register n (1-3).
func (m *NOR) StatusRegister(n int) byte {
	sr := m.sr[n-1]
	if n == 1 {
		sr &^= 0x03
		if m.isBusy() {
			sr |= 0x01
		}
		if m.wel {
			sr |= 0x02
		}
	}
	return sr
}

func (m *NOR) sector(addr uint32, alloc bool) []byte {
	base := addr &^ (norSectorSize - 1)
	s, ok := m.sectors[base]
	if !ok && alloc {
		s = make([]byte, norSectorSize)
		for i := range s {
			s[i] = 0xFF
		}
		m.sectors[base] = s
	}
	return s
}

// ReadAt copies flash contents at addr into p.
func (m *NOR) ReadAt(addr uint32, p []byte) {
	for i := range p {
		a := (addr + uint32(i)) % m.Size
		if s := m.sector(a, false); s != nil {
			p[i] = s[a%norSectorSize]
		} else {
			p[i] = 0xFF
		}
	}
}

// Fill writes p at addr without going through the command set.
func (m *NOR) Fill(addr uint32, p []byte) {
	for i, b := range p {
		a := (addr + uint32(i)) % m.Size
		m.sector(a, true)[a%norSectorSize] = b
	}
}

func (m *NOR) erase(addr, size uint32) {
	base := addr &^ (size - 1)
	for a := base; a < base+size; a += norSectorSize {
		delete(m.sectors, a%m.Size)
	}
}

// Command implements qspi.Bus.
func (m *NOR) Command(cmd qspi.Command) error {
	if err := m.record(KindCommand, cmd, 0); err != nil {
		return err
	}
	if cmd.Instruction == 0xAB { // Release Power-down
		m.PoweredDown = false
		return nil
	}
	if m.PoweredDown {
		return nil
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0xB9: // Power-down
		m.PoweredDown = true
	case 0x06: // Write Enable
		m.writeEnable()
	case 0x04: // Write Disable
		m.wel = false
	case 0x66, 0x99: // Enable Reset, Reset Device
		m.wel = false
	case 0x20, 0x52, 0xD8: // Sector, 32KB and 64KB Block Erase
		if !m.wel {
			return nil
		}
		size := map[byte]uint32{0x20: 4 << 10, 0x52: 32 << 10, 0xD8: 64 << 10}[cmd.Instruction]
		m.erase(cmd.Address, size)
		m.startOp()
	case 0xC7, 0x60: // Chip Erase
		if !m.wel {
			return nil
		}
		clear(m.sectors)
		m.startOp()
	default:
		return fmt.Errorf("flashsim: unknown NOR command %s", cmd)
	}
	return nil
}

// Transmit implements qspi.Bus.
func (m *NOR) Transmit(cmd qspi.Command, data []byte) error {
	if err := m.record(KindTransmit, cmd, len(data)); err != nil {
		return err
	}
	if m.PoweredDown {
		return nil
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0x01, 0x31, 0x11: // Write Status Register 1-3
		if !m.wel || len(data) == 0 {
			return nil
		}
		n := map[byte]int{0x01: 0, 0x31: 1, 0x11: 2}[cmd.Instruction]
		v := data[0]
		if n == 1 && m.StuckQE {
			v &^= 0x02
		}
		m.sr[n] = v
		m.startOp()
	case 0x02, 0x32: // Page Program, Quad Input Page Program
		if !m.wel {
			return nil
		}
		page := cmd.Address &^ (norPageSize - 1)
		col := cmd.Address % norPageSize
		for i, b := range data {
			// the address wraps within the page
			a := page + (col+uint32(i))%norPageSize
			s := m.sector(a%m.Size, true)
			s[a%norSectorSize] &= b
		}
		m.startOp()
	default:
		return fmt.Errorf("flashsim: unknown NOR transmit %s", cmd)
	}
	return nil
}

// Receive implements qspi.Bus.
func (m *NOR) Receive(cmd qspi.Command, buf []byte) error {
	if err := m.record(KindReceive, cmd, len(buf)); err != nil {
		return err
	}
	if m.PoweredDown {
		for i := range buf {
			buf[i] = 0xFF
		}
		return nil
	}
	switch cmd.Instruction {
	case 0x05: // Read Status Register-1
		busy := m.pollBusy()
		if len(buf) > 0 {
			buf[0] = m.StatusRegister(1) &^ 0x01
			if busy {
				buf[0] |= 0x01
			}
		}
		return nil
	case 0x35, 0x15: // Read Status Register-2, 3
		if len(buf) > 0 {
			buf[0] = m.StatusRegister(map[byte]int{0x35: 2, 0x15: 3}[cmd.Instruction])
		}
		return nil
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0x9F: // JEDEC ID
		copy(buf, m.ID[:])
	case 0x03, 0x0B, 0xEB: // Read Data, Fast Read, Fast Read Quad I/O
		m.ReadAt(cmd.Address, buf)
	case 0x5A: // Read SFDP Register
		for i := range buf {
			a := int(cmd.Address) + i
			if a < len(m.SFDP) {
				buf[i] = m.SFDP[a]
			} else {
				buf[i] = 0xFF
			}
		}
	default:
		return fmt.Errorf("flashsim: unknown NOR receive %s", cmd)
	}
	return nil
}

// MemoryMapped implements qspi.MemoryMapper.
func (m *NOR) MemoryMapped(cmd qspi.Command) error {
	if err := m.record(KindCommand, cmd, 0); err != nil {
		return err
	}
	m.checkIdle(cmd)
	m.Mapped = true
	m.mappedTo = cmd
	return nil
}

// MappedCommand returns the command the bus replays in memory-mapped mode.
func (m *NOR) MappedCommand() qspi.Command { return m.mappedTo }

func (m *NOR) checkIdle(cmd qspi.Command) {
	if m.isBusy() {
		m.violate("%s issued while busy", cmd)
	}
	if m.Mapped {
		m.violate("%s issued in memory-mapped mode", cmd)
	}
}

// W25Q128SFDP returns an SFDP image with the header and basic parameter
// table layout of a W25Q128JV.
func W25Q128SFDP() []byte {
	img := make([]byte, 0x80+16*4)
	for i := range img {
		img[i] = 0xFF
	}
	copy(img, []byte{
		'S', 'F', 'D', 'P', 0x05, 0x01, 0x00, 0xFF, // rev 1.5, one parameter header
		0x00, 0x05, 0x01, 0x10, 0x80, 0x00, 0x00, 0xFF, // basic table, 16 dwords at 0x80
	})
	basic := []uint32{
		0xFFF920E5, // 4KB erase with 0x20, fast reads supported
		0x07FFFFFF, // 128Mbit
		0x6B08EB44,
		0xBB423B08,
		0xFFFFFFFE,
		0xFF00FFFF,
		0xEB40FFFF,
		0x520F200C, // erase types: 4KB 0x20, 32KB 0x52
		0xFF00D810, // erase types: 64KB 0xD8
		0x00A60236,
		0xEA14C280, // 256 byte pages
		0xE96376CC,
		0x7A757A75,
		0xF7A2D5C0,
		0x005CF619,
		0x00000000,
	}
	for i, d := range basic {
		binary.LittleEndian.PutUint32(img[0x80+4*i:], d)
	}
	return img
}
