package flashsim

import (
	"encoding/binary"
	"fmt"

	"github.com/gentam/wbflash/qspi"
)

const (
	nandPageSize      = 2048
	nandPagesPerBlock = 64
	nandLUTEntries    = 20
)

// NAND register addresses and status bits.
const (
	RegProtection = 0xA0
	RegConfig     = 0xB0
	RegStatus     = 0xC0

	statusBusy    = 1 << 0
	statusWEL     = 1 << 1
	statusEFail   = 1 << 2
	statusPFail   = 1 << 3
	statusLUTFull = 1 << 6

	configBUF = 1 << 3
	configECC = 1 << 4

	protBlockBits = 0x78 // BP3-0
)

// NAND models a W25N01GV: a page buffer in front of a 2048 byte page array.
// The spare area is not modeled.
type NAND struct {
	state

	ID [3]byte
	// ProgramFail and EraseFail make Program Execute and Block Erase report
	// failure in the status register.
	ProgramFail bool
	EraseFail   bool
	// ECC is reported in the status register ECC bits after Page Data Read.
	ECC byte
	// LastECCFailure is returned by the Last ECC Failure Page instruction.
	LastECCFailure uint16

	prot, config, status byte
	buffer               [nandPageSize]byte
	pages                map[uint32][]byte
	lut                  [][2]uint16
}

// NewNAND returns an erased W25N01GV with protection cleared, ECC enabled
// and buffer read mode selected.
func NewNAND() *NAND {
	m := &NAND{
		ID:     [3]byte{0xEF, 0xAA, 0x21},
		config: configECC | configBUF,
		pages:  make(map[uint32][]byte),
	}
	m.clearBuffer()
	return m
}

// Register returns the value of the register at reg.
func (m *NAND) Register(reg byte) byte {
	switch reg {
	case RegProtection:
		return m.prot
	case RegConfig:
		return m.config
	case RegStatus:
		s := m.status &^ (statusBusy | statusWEL)
		if m.isBusy() {
			s |= statusBusy
		}
		if m.wel {
			s |= statusWEL
		}
		return s
	}
	return 0xFF
}

// SetRegister writes a register directly.
func (m *NAND) SetRegister(reg, v byte) {
	switch reg {
	case RegProtection:
		m.prot = v
	case RegConfig:
		m.config = v
	case RegStatus:
		m.status = v
	}
}

// Page returns a copy of the array page.
func (m *NAND) Page(page uint32) []byte {
	out := make([]byte, nandPageSize)
	if p, ok := m.pages[page]; ok {
		copy(out, p)
	} else {
		for i := range out {
			out[i] = 0xFF
		}
	}
	return out
}

// FillPage writes data into the array page directly.
func (m *NAND) FillPage(page uint32, data []byte) {
	p := m.Page(page)
	copy(p, data)
	m.pages[page] = p
}

// LUT returns the bad block management table.
func (m *NAND) LUT() [][2]uint16 { return m.lut }

func (m *NAND) clearBuffer() {
	for i := range m.buffer {
		m.buffer[i] = 0xFF
	}
}

func (m *NAND) locked() bool { return m.prot&protBlockBits != 0 }

// Command implements qspi.Bus.
func (m *NAND) Command(cmd qspi.Command) error {
	if err := m.record(KindCommand, cmd, 0); err != nil {
		return err
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0xFF: // Device Reset
		m.wel = false
		m.status = 0
		m.config |= configBUF | configECC
		m.busy = m.BusyPolls
	case 0x06: // Write Enable
		m.writeEnable()
	case 0x04: // Write Disable
		m.wel = false
	case 0xD8: // Block Erase
		if !m.wel {
			return nil
		}
		m.status &^= statusEFail
		if m.EraseFail || m.locked() {
			m.status |= statusEFail
		} else {
			first := cmd.Address &^ (nandPagesPerBlock - 1)
			for p := first; p < first+nandPagesPerBlock; p++ {
				delete(m.pages, p)
			}
		}
		m.startOp()
	case 0x10: // Program Execute
		if !m.wel {
			return nil
		}
		m.status &^= statusPFail
		if m.ProgramFail || m.locked() {
			m.status |= statusPFail
		} else {
			p := m.Page(cmd.Address)
			for i := range p {
				p[i] &= m.buffer[i]
			}
			m.pages[cmd.Address] = p
		}
		m.startOp()
	case 0x13: // Page Data Read
		copy(m.buffer[:], m.Page(cmd.Address))
		m.status = m.status&^0x30 | (m.ECC&0x03)<<4
		m.busy = m.BusyPolls
	default:
		return fmt.Errorf("flashsim: unknown NAND command %s", cmd)
	}
	return nil
}

// Transmit implements qspi.Bus.
func (m *NAND) Transmit(cmd qspi.Command, data []byte) error {
	if err := m.record(KindTransmit, cmd, len(data)); err != nil {
		return err
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0x1F, 0x01: // Write Status Register
		if len(data) > 0 {
			m.SetRegister(byte(cmd.Address), data[0])
		}
	case 0x02, 0x32, 0x84, 0x34: // (Quad) (Random) Program Data Load
		if !m.wel {
			return nil
		}
		if cmd.Instruction == 0x02 || cmd.Instruction == 0x32 {
			m.clearBuffer()
		}
		copy(m.buffer[min(int(cmd.Address), nandPageSize):], data)
	case 0xA1: // Bad Block Management
		if len(data) < 4 {
			return fmt.Errorf("flashsim: short bad block management payload")
		}
		if !m.wel {
			return nil
		}
		m.startOp()
		if len(m.lut) >= nandLUTEntries {
			m.status |= statusLUTFull
			return nil
		}
		m.lut = append(m.lut, [2]uint16{
			binary.BigEndian.Uint16(data[0:]),
			binary.BigEndian.Uint16(data[2:]),
		})
		if len(m.lut) == nandLUTEntries {
			m.status |= statusLUTFull
		}
	default:
		return fmt.Errorf("flashsim: unknown NAND transmit %s", cmd)
	}
	return nil
}

// Receive implements qspi.Bus.
func (m *NAND) Receive(cmd qspi.Command, buf []byte) error {
	if err := m.record(KindReceive, cmd, len(buf)); err != nil {
		return err
	}
	if cmd.Instruction == 0x0F || cmd.Instruction == 0x05 { // Read Status Register
		v := m.Register(byte(cmd.Address))
		if byte(cmd.Address) == RegStatus {
			v &^= statusBusy
			if m.pollBusy() {
				v |= statusBusy
			}
		}
		if len(buf) > 0 {
			buf[0] = v
		}
		return nil
	}
	m.checkIdle(cmd)
	switch cmd.Instruction {
	case 0x9F: // JEDEC ID
		copy(buf, m.ID[:])
	case 0x03, 0x0B, 0x6B, 0xEB: // Read, Fast Read (Quad Output, Quad I/O)
		col := int(cmd.Address) % (nandPageSize * 2)
		for i := range buf {
			if col+i < nandPageSize {
				buf[i] = m.buffer[col+i]
			} else {
				buf[i] = 0xFF
			}
		}
	case 0xA5: // Read BBM LUT
		for i := range buf {
			buf[i] = 0
		}
		for i, e := range m.lut {
			if 4*i+4 > len(buf) {
				break
			}
			binary.BigEndian.PutUint16(buf[4*i:], e[0]|0x8000) // enable bit
			binary.BigEndian.PutUint16(buf[4*i+2:], e[1])
		}
	case 0xA9: // Last ECC Failure Page Address
		if len(buf) >= 2 {
			binary.BigEndian.PutUint16(buf, m.LastECCFailure)
		}
	default:
		return fmt.Errorf("flashsim: unknown NAND receive %s", cmd)
	}
	return nil
}

func (m *NAND) checkIdle(cmd qspi.Command) {
	if m.isBusy() {
		m.violate("%s issued while busy", cmd)
	}
}
