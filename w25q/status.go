package w25q

import (
	"fmt"
	"strings"
)

// StatusRegister1 is the value of status register 1.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-----------------------------------
//	7   | SRP: Status Register Protect
//	6   | SEC: Sector/Block Protect
//	5   | TB: Top/Bottom Protect
//	4:2 | BP2-BP0: Block Protect Bits
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write In Progress
type StatusRegister1 byte

func (sr StatusRegister1) WriteEnabled() bool { return sr&(1<<1) != 0 }
func (sr StatusRegister1) Busy() bool         { return sr&(1<<0) != 0 }

// BlockProtect returns BP2-BP0.
func (sr StatusRegister1) BlockProtect() byte { return byte(sr>>2) & 0x7 }

func (sr StatusRegister1) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if bp := sr.BlockProtect(); bp != 0 {
		s = append(s, fmt.Sprintf("BP=%d", bp))
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// StatusRegister2 is the value of status register 2.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-----------------------------------
//	7   | SUS: Suspend Status
//	6   | CMP: Complement Protect
//	5:3 | LB3-LB1: Security Register Lock Bits
//	2   | Reserved
//	1   | QE: Quad Enable
//	0   | SRL: Status Register Lock
type StatusRegister2 byte

const sr2QE = 1 << 1

func (sr StatusRegister2) Suspended() bool   { return sr&(1<<7) != 0 }
func (sr StatusRegister2) QuadEnabled() bool { return sr&sr2QE != 0 }

func (sr StatusRegister2) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.Suspended() {
		s = append(s, "SUS")
	}
	if sr.QuadEnabled() {
		s = append(s, "QE")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
