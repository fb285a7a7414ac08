package w25n

import (
	"fmt"
	"strings"
)

// Register addresses for the Read/Write Status Register instructions.
// [W25N01GV|7 Status Registers]
const (
	RegProtection = 0xA0 // SR-1
	RegConfig     = 0xB0 // SR-2
	RegStatus     = 0xC0 // SR-3
)

// Bits in the protection register (SR-1).
const (
	ProtSRP1 = 1 << 0
	ProtWPE  = 1 << 1
	ProtTB   = 1 << 2
	ProtBP0  = 1 << 3
	ProtBP1  = 1 << 4
	ProtBP2  = 1 << 5
	ProtBP3  = 1 << 6
	ProtSRP0 = 1 << 7
)

// Bits in the configuration register (SR-2).
const (
	ConfigBUF  = 1 << 3 // buffer read mode
	ConfigECCE = 1 << 4 // ECC enable
	ConfigSR1L = 1 << 5
	ConfigOTPE = 1 << 6
	ConfigOTPL = 1 << 7
)

// StatusRegister is the value of the status register (SR-3).
//
//	Bits| [W25N01GV|7.3 Status Register-3]
//	----+-------------------------------------
//	7   | Reserved
//	6   | LUT-F: BBM Look-up Table Full
//	5:4 | ECC-1, ECC-0: ECC Status
//	3   | P-FAIL: Program Failure
//	2   | E-FAIL: Erase Failure
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Operation In Progress
type StatusRegister byte

func (sr StatusRegister) LUTFull() bool       { return sr&(1<<6) != 0 }
func (sr StatusRegister) ProgramFailed() bool { return sr&(1<<3) != 0 }
func (sr StatusRegister) EraseFailed() bool   { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool  { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool          { return sr&(1<<0) != 0 }

// ECC returns the ECC status of the last page read.
func (sr StatusRegister) ECC() ECCStatus { return ECCStatus(sr>>4) & 0x3 }

// ECCStatus is the two bit ECC field of the status register.
type ECCStatus byte

const (
	ECCOK           ECCStatus = 0 // no errors
	ECCCorrected    ECCStatus = 1 // 1-4 bit errors corrected
	ECCUncorrected  ECCStatus = 2 // uncorrectable error in one page
	ECCUncorrectedN ECCStatus = 3 // uncorrectable errors in continuous read
)

func (e ECCStatus) String() string {
	switch e {
	case ECCOK:
		return "ok"
	case ECCCorrected:
		return "corrected"
	case ECCUncorrected:
		return "uncorrectable"
	default:
		return "uncorrectable (multiple pages)"
	}
}

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.LUTFull() {
		s = append(s, "LUT-F")
	}
	if e := sr.ECC(); e != ECCOK {
		s = append(s, "ECC="+e.String())
	}
	if sr.ProgramFailed() {
		s = append(s, "P-FAIL")
	}
	if sr.EraseFailed() {
		s = append(s, "E-FAIL")
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
