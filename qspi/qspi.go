// Package qspi defines the bus transaction primitive used by the flash
// drivers. A transaction is one chip-select cycle made of an instruction
// byte, an optional address phase, dummy cycles and an optional data phase.
package qspi

import (
	"errors"
	"fmt"
)

// Lines is the number of I/O lines used by a transaction phase. Zero means
// the phase is absent.
type Lines uint8

const (
	LinesNone Lines = 0
	Lines1    Lines = 1
	Lines4    Lines = 4
)

// AddressSize is the width of the address phase in bits.
type AddressSize uint8

const (
	AddressNone AddressSize = 0
	Address8    AddressSize = 8
	Address16   AddressSize = 16
	Address24   AddressSize = 24
	Address32   AddressSize = 32
)

// Bytes returns the number of bytes clocked out for the address phase.
func (s AddressSize) Bytes() int { return int(s) / 8 }

// ErrUnsupported is returned by a Bus that cannot build the requested
// transaction shape.
var ErrUnsupported = errors.New("qspi: unsupported transaction")

// Command describes everything but the data buffer of a transaction. The
// instruction phase is always single line.
type Command struct {
	Instruction  byte
	Address      uint32
	AddressSize  AddressSize
	AddressLines Lines // defaults to Lines1 when AddressSize is set
	DummyCycles  uint8
	DataLines    Lines
}

// HasAddress reports whether the command carries an address phase.
func (c Command) HasAddress() bool { return c.AddressSize != AddressNone }

// AddrLines returns the effective line count of the address phase.
func (c Command) AddrLines() Lines {
	if !c.HasAddress() {
		return LinesNone
	}
	if c.AddressLines == LinesNone {
		return Lines1
	}
	return c.AddressLines
}

func (c Command) String() string {
	s := fmt.Sprintf("instr=%#02x", c.Instruction)
	if c.HasAddress() {
		s += fmt.Sprintf(" addr=%#x/%d-%d", c.Address, c.AddressSize, c.AddrLines())
	}
	if c.DummyCycles > 0 {
		s += fmt.Sprintf(" dummy=%d", c.DummyCycles)
	}
	if c.DataLines != LinesNone {
		s += fmt.Sprintf(" data=%d", c.DataLines)
	}
	return s
}

// Bus issues QuadSPI transactions. Implementations are not required to be
// safe for concurrent use; at most one transaction is in flight per bus.
type Bus interface {
	// Command issues an instruction, with an address if cmd has one, and no
	// data phase.
	Command(cmd Command) error
	// Transmit issues cmd followed by a data phase writing data.
	Transmit(cmd Command, data []byte) error
	// Receive issues cmd followed by a data phase filling buf.
	Receive(cmd Command, buf []byte) error
}

// MemoryMapper is implemented by buses that can switch into direct-mapped
// read mode, where cmd is replayed by the peripheral for every access.
type MemoryMapper interface {
	MemoryMapped(cmd Command) error
}
